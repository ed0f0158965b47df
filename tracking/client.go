// Package tracking provides a hook that mirrors runs to an experiment
// tracking backend: a session per run, the resolved configuration and
// auxiliary log files attached as artifacts, and the exit status recorded
// on close.
package tracking

import (
	"context"
	"fmt"
	"strings"
)

// OpenRequest describes a session to open.
type OpenRequest struct {
	Name       string // human-readable run name
	Experiment string // logical grouping of sessions
	ParentID   string // parent session for nested multi-run jobs, or empty
}

// Session is a handle to an open tracking session.
type Session struct {
	ID   string
	Name string
}

// CloseRequest records the outcome when a session is closed.
type CloseRequest struct {
	Success bool
	Message string
}

// Client is the tracking backend interface. Implementations: httpClient
// for a remote tracking server, Store for a local sqlite file.
type Client interface {
	Open(ctx context.Context, req OpenRequest) (*Session, error)
	LogArtifact(ctx context.Context, sessionID, name string, content []byte) error
	LogParams(ctx context.Context, sessionID string, params map[string]string) error
	Close(ctx context.Context, sessionID string, req CloseRequest) error
}

// ServerUnavailableError indicates the tracking backend could not be
// reached or failed server-side. Fatal when raised during run setup.
type ServerUnavailableError struct {
	URI string
	Err error
}

func (e *ServerUnavailableError) Error() string {
	return fmt.Sprintf("tracking server %s unavailable: %v", e.URI, e.Err)
}

func (e *ServerUnavailableError) Unwrap() error { return e.Err }

// NewClient selects a backend from the tracking URI: http:// and https://
// use the REST client, sqlite:// and bare paths open a local store.
func NewClient(uri string) (Client, error) {
	switch {
	case uri == "":
		return nil, fmt.Errorf("tracking uri is empty")
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return newHTTPClient(uri, nil), nil
	case strings.HasPrefix(uri, "sqlite://"):
		return OpenStore(strings.TrimPrefix(uri, "sqlite://"))
	default:
		return OpenStore(uri)
	}
}
