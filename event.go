package runhooks

import (
	"time"

	"github.com/marcus/runhooks/configtree"
)

// Kind classifies runner lifecycle events.
type Kind int

const (
	JobStart Kind = iota // job execution begins
	RunStart             // a run within the job begins
	RunEnd               // run finished
	JobEnd               // job execution finished
)

// String returns the event kind name used in logs and errors.
func (k Kind) String() string {
	switch k {
	case JobStart:
		return "job_start"
	case RunStart:
		return "run_start"
	case RunEnd:
		return "run_end"
	case JobEnd:
		return "job_end"
	default:
		return "unknown"
	}
}

// IsStart reports whether the kind is a setup event. Dispatch is
// fail-fast for setup events and best-effort for teardown events.
func (k Kind) IsStart() bool {
	return k == JobStart || k == RunStart
}

// ExitStatus carries the outcome of a job or run on *End events.
type ExitStatus struct {
	Success bool
	Message string // error message when Success is false
}

// Event carries data about a single runner lifecycle event.
type Event struct {
	Kind      Kind
	Time      time.Time
	JobID     string
	RunIndex  int              // 0-based index of the run within the job
	MultiRun  bool             // job contains more than one run (sweep)
	WorkDir   string           // working directory of the job
	Config    *configtree.Tree // resolved configuration, immutable
	Overrides []string         // raw key=value overrides for this run
	Status    *ExitStatus      // set on RunEnd and JobEnd only
}
