// Package transport sends GraphQL operations to the data service over HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	eventbus "github.com/hanpama/ghcard/internal/eventbus"
	events "github.com/hanpama/ghcard/internal/events"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// maxErrorBody caps how much of a non-2xx body is quoted in errors.
const maxErrorBody = 512

// Client executes GraphQL requests against a fixed endpoint with a fixed
// credential. It is safe for concurrent use.
type Client struct {
	endpoint string
	opts     *Options
	http     *http.Client
}

// Request is the JSON body of a GraphQL HTTP request.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// Response is the standard GraphQL envelope. The transport does not
// interpret it; Data is kept raw for the caller to decode.
type Response struct {
	Data       json.RawMessage `json:"data"`
	Errors     gqlerror.List   `json:"errors,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
}

func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, ErrNoEndpoint
	}
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	hc := o.Client
	if hc == nil {
		hc = &http.Client{Timeout: o.Timeout}
	}
	return &Client{endpoint: endpoint, opts: o, http: hc}, nil
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string { return c.endpoint }

// Execute posts {query, variables} and returns the decoded envelope. A nil
// vars map is sent as {}. operationName only labels the emitted events.
// All failures are *TransportError.
func (c *Client) Execute(ctx context.Context, operationName, query string, vars map[string]any) (resp *Response, err error) {
	start := time.Now()
	status := 0
	eventbus.Publish(ctx, events.TransportStart{OperationName: operationName, Endpoint: c.endpoint})
	defer func() {
		eventbus.Publish(ctx, events.TransportFinish{
			OperationName: operationName,
			Endpoint:      c.endpoint,
			Status:        status,
			Err:           err,
			Duration:      time.Since(start),
		})
	}()

	if vars == nil {
		vars = map[string]any{}
	}
	body, err := json.Marshal(Request{Query: query, Variables: vars})
	if err != nil {
		return nil, &TransportError{Op: "marshal", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "send", Err: err}
	}
	defer func() { _ = res.Body.Close() }()
	status = res.StatusCode

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &TransportError{
			Op:         "status",
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("unexpected status %s: %s", res.Status, bytes.TrimSpace(snippet)),
		}
	}

	var out Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, &TransportError{Op: "decode", StatusCode: res.StatusCode, Err: err}
	}
	return &out, nil
}
