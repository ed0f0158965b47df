// Package runhooks provides lifecycle hooks for configuration-driven
// experiment runners. A host orchestrator dispatches job and run events
// through a Registry; each registered Hook reacts with side effects such
// as timing, version-control checks, or experiment tracking.
//
// The package defines the event model and dispatch contract only. Ready
// hooks live in the timer, gitclean, and tracking subpackages and are
// registered like any other:
//
//	reg := runhooks.NewRegistry()
//	reg.Register(timer.New())
//	reg.Register(gitclean.New(gitclean.Options{}))
//
//	if err := reg.Dispatch(ctx, runhooks.Event{Kind: runhooks.JobStart, JobID: id}); err != nil {
//	    return err
//	}
//
// Dispatch is fail-fast for start events and best-effort for end events:
// a failing setup hook aborts the run before later hooks execute, while a
// failing teardown hook is logged and never hides other hooks' cleanup.
package runhooks
