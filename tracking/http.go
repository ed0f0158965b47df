package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPDoer abstracts the HTTP client used to reach the tracking server.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// httpClient talks to a tracking server over its REST API.
type httpClient struct {
	baseURL string
	client  HTTPDoer
}

// NewHTTPClient constructs a REST client for the tracking server at
// baseURL. A nil doer uses http.DefaultClient.
func NewHTTPClient(baseURL string, doer HTTPDoer) Client {
	return newHTTPClient(baseURL, doer)
}

func newHTTPClient(baseURL string, doer HTTPDoer) *httpClient {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  doer,
	}
}

type openSessionRequest struct {
	Name       string `json:"name"`
	Experiment string `json:"experiment"`
	ParentID   string `json:"parent_id,omitempty"`
}

type openSessionResponse struct {
	ID string `json:"id"`
}

type logArtifactRequest struct {
	Name    string `json:"name"`
	Content []byte `json:"content"` // base64 over the wire
}

type logParamsRequest struct {
	Params map[string]string `json:"params"`
}

type closeSessionRequest struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Open creates a session on the server.
func (c *httpClient) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	var resp openSessionResponse
	err := c.post(ctx, "/api/sessions", openSessionRequest{
		Name:       req.Name,
		Experiment: req.Experiment,
		ParentID:   req.ParentID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("tracking server returned empty session id")
	}
	return &Session{ID: resp.ID, Name: req.Name}, nil
}

// LogArtifact attaches a named artifact to the session.
func (c *httpClient) LogArtifact(ctx context.Context, sessionID, name string, content []byte) error {
	path := fmt.Sprintf("/api/sessions/%s/artifacts", sessionID)
	return c.post(ctx, path, logArtifactRequest{Name: name, Content: content}, nil)
}

// LogParams attaches key-value parameters to the session.
func (c *httpClient) LogParams(ctx context.Context, sessionID string, params map[string]string) error {
	path := fmt.Sprintf("/api/sessions/%s/params", sessionID)
	return c.post(ctx, path, logParamsRequest{Params: params}, nil)
}

// Close marks the session finished with the given outcome.
func (c *httpClient) Close(ctx context.Context, sessionID string, req CloseRequest) error {
	path := fmt.Sprintf("/api/sessions/%s/close", sessionID)
	return c.post(ctx, path, closeSessionRequest{Success: req.Success, Message: req.Message}, nil)
}

func (c *httpClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &ServerUnavailableError{URI: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		raw, _ := io.ReadAll(resp.Body)
		return &ServerUnavailableError{
			URI: c.baseURL,
			Err: fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(raw))),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("tracking server error: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
