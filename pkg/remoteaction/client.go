package remoteaction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying *http.Client used for requests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.http = c }
}

// WithHeader adds a static header to every outgoing request, e.g. for
// authentication.
func WithHeader(name, value string) ClientOption {
	return func(cl *Client) {
		if cl.headers == nil {
			cl.headers = make(http.Header)
		}
		cl.headers.Add(name, value)
	}
}

// WithBearerToken configures the client to send an Authorization Bearer
// token with every request.
func WithBearerToken(token string) ClientOption {
	return WithHeader("Authorization", "Bearer "+token)
}

// Client calls a remote collaborator's remote action REST endpoints.
// Grounded on the teacher's a2a/httpclient.Client (endpoint + *http.Client +
// static headers, one method per RPC call) adapted from JSON-RPC framing to
// plain REST verbs.
type Client struct {
	baseURL string
	http    *http.Client
	headers http.Header
}

// New constructs a Client against baseURL (for example,
// "https://collaborator.example.com").
func New(baseURL string, opts ...ClientOption) *Client {
	cl := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		headers: make(http.Header),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cl)
		}
	}
	return cl
}

// ListActions calls GET /api/v1/actions.
func (c *Client) ListActions(ctx context.Context) ([]ActionDescriptor, error) {
	var out []ActionDescriptor
	if err := c.do(ctx, http.MethodGet, "/api/v1/actions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTypes calls GET /api/v1/types.
func (c *Client) ListTypes(ctx context.Context) ([]TypeDescriptor, error) {
	var out []TypeDescriptor
	if err := c.do(ctx, http.MethodGet, "/api/v1/types", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Execute calls POST /api/v1/actions/execute, invoking the named remote
// action with inputs. Returns the action's declared outputs, or an error
// if the remote reports an execution failure.
func (c *Client) Execute(ctx context.Context, actionName string, inputs map[string]any) (map[string]any, error) {
	encodedInputs := make(map[string]json.RawMessage, len(inputs))
	for k, v := range inputs {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("remoteaction: marshaling input %q: %w", k, err)
		}
		encodedInputs[k] = data
	}
	req := ExecuteRequest{ActionName: actionName, Parameters: encodedInputs}

	var resp ExecuteResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/actions/execute", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("remoteaction: action %q failed: %s", actionName, resp.Error)
	}
	return resp.Outputs, nil
}

// Register calls POST /api/v1/remote/register, announcing this
// collaborator (selfBaseURL, actions) to the remote.
func (c *Client) Register(ctx context.Context, name, selfBaseURL string, actions []ActionDescriptor) error {
	req := RegisterRequest{Name: name, BaseURL: selfBaseURL, Actions: actions}
	var resp RegisterResponse
	return c.do(ctx, http.MethodPost, "/api/v1/remote/register", req, &resp)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remoteaction: marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("remoteaction: building request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("remoteaction: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("remoteaction: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remoteaction: decoding response from %s %s: %w", method, path, err)
	}
	return nil
}
