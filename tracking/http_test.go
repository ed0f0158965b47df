package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newTestServer serves a minimal tracking API backed by maps.
func newTestServer(t *testing.T) (*httptest.Server, *fakeClient) {
	t.Helper()
	backend := newFakeClient()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req openSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		session, _ := backend.Open(r.Context(), OpenRequest{Name: req.Name, Experiment: req.Experiment, ParentID: req.ParentID})
		_ = json.NewEncoder(w).Encode(openSessionResponse{ID: session.ID})
	})
	mux.HandleFunc("POST /api/sessions/{id}/artifacts", func(w http.ResponseWriter, r *http.Request) {
		var req logArtifactRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = backend.LogArtifact(r.Context(), r.PathValue("id"), req.Name, req.Content)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/sessions/{id}/params", func(w http.ResponseWriter, r *http.Request) {
		var req logParamsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = backend.LogParams(r.Context(), r.PathValue("id"), req.Params)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/sessions/{id}/close", func(w http.ResponseWriter, r *http.Request) {
		var req closeSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = backend.Close(r.Context(), r.PathValue("id"), CloseRequest{Success: req.Success, Message: req.Message})
		w.WriteHeader(http.StatusNoContent)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, backend
}

func TestHTTPClientLifecycle(t *testing.T) {
	server, backend := newTestServer(t)
	client := NewHTTPClient(server.URL, nil)
	ctx := context.Background()

	session, err := client.Open(ctx, OpenRequest{Name: "run-1", Experiment: "exp"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if session.ID == "" {
		t.Fatal("empty session id")
	}

	if err := client.LogArtifact(ctx, session.ID, "resolved_config.yaml", []byte("a: 1\n")); err != nil {
		t.Fatalf("LogArtifact: %v", err)
	}
	if err := client.LogParams(ctx, session.ID, map[string]string{"lr": "0.1"}); err != nil {
		t.Fatalf("LogParams: %v", err)
	}
	if err := client.Close(ctx, session.ID, CloseRequest{Success: true}); err != nil {
		t.Fatalf("Close: %v", err)
	}

	arts := backend.artifacts[session.ID]
	if len(arts) != 1 || string(arts[0].Content) != "a: 1\n" {
		t.Errorf("server artifacts = %v", arts)
	}
	if backend.params[session.ID]["lr"] != "0.1" {
		t.Errorf("server params = %v", backend.params[session.ID])
	}
	if closed, ok := backend.closed[session.ID]; !ok || !closed.Success {
		t.Errorf("server close = %+v, ok=%v", closed, ok)
	}
}

func TestHTTPClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "database down", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := NewHTTPClient(server.URL, nil)
	_, err := client.Open(context.Background(), OpenRequest{Name: "run-1"})

	var unavailable *ServerUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %v, want *ServerUnavailableError", err)
	}
	if !strings.Contains(unavailable.Error(), "database down") {
		t.Errorf("error should carry the server message: %v", unavailable)
	}
}

func TestHTTPClientConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // nothing listens anymore

	client := NewHTTPClient(server.URL, nil)
	_, err := client.Open(context.Background(), OpenRequest{Name: "run-1"})

	var unavailable *ServerUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %v, want *ServerUnavailableError", err)
	}
}

func TestHTTPClientClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such session", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client := NewHTTPClient(server.URL, nil)
	err := client.LogArtifact(context.Background(), "missing", "x", []byte("y"))
	if err == nil {
		t.Fatal("expected error")
	}
	var unavailable *ServerUnavailableError
	if errors.As(err, &unavailable) {
		t.Error("4xx must not map to ServerUnavailableError")
	}
}
