package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout   = 60 * time.Second
	maxResponseBytes = 32 << 20
	maxErrorExcerpt  = 512
)

// Method is the set of HTTP methods an upstream call may use.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodDelete Method = http.MethodDelete
)

func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodDelete:
		return true
	}
	return false
}

// RawBody is sent verbatim as a POST body, e.g. a prepared multipart form.
type RawBody struct {
	ContentType string
	Data        []byte
}

// Request describes one logical upstream call. Payload is encoded per method:
// GET and DELETE put url.Values or map[string]string on the query string;
// POST form-encodes url.Values, sends RawBody as-is and JSON-encodes anything else.
type Request struct {
	Method   Method
	Endpoint string
	Headers  map[string]string
	Payload  any

	// Per-call overrides of the caller's retry budget.
	MaxAttempts  int
	InitialDelay time.Duration
}

// Response is the first successful (2xx) attempt of a call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode parses the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Caller performs HTTP calls against one named upstream with retry.
type Caller struct {
	name    string
	client  *http.Client
	retrier *Retrier
	logger  *zap.Logger
}

// NewCaller creates a Caller. A nil client gets a 60s timeout default client.
func NewCaller(name string, client *http.Client, retrier *Retrier, logger *zap.Logger) *Caller {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if retrier == nil {
		retrier = NewRetrier(RetryConfig{}, logger)
	}
	return &Caller{
		name:    name,
		client:  client,
		retrier: retrier,
		logger:  logger,
	}
}

// Name returns the upstream label used in logs and metrics.
func (c *Caller) Name() string { return c.name }

// Call sends req, retrying transport errors and non-2xx responses with
// exponential backoff, and returns the first successful response.
func (c *Caller) Call(ctx context.Context, req Request) (*Response, error) {
	if !req.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}

	config := c.retrier.config.override(req.MaxAttempts, req.InitialDelay)

	var result *Response
	err := c.retrier.run(ctx, c.name, config, func(ctx context.Context) error {
		resp, err := c.send(ctx, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{StatusCode: resp.StatusCode, Body: excerpt(body)}
		}

		result = &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Open behaves like Call but hands back the live response of the first 2xx
// attempt so the body can be streamed. The caller must close the body.
func (c *Caller) Open(ctx context.Context, req Request) (*http.Response, error) {
	if !req.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}

	config := c.retrier.config.override(req.MaxAttempts, req.InitialDelay)

	var result *http.Response
	err := c.retrier.run(ctx, c.name, config, func(ctx context.Context) error {
		resp, err := c.send(ctx, req)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorExcerpt))
			resp.Body.Close()
			return &StatusError{StatusCode: resp.StatusCode, Body: excerpt(body)}
		}
		result = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Caller) send(ctx context.Context, req Request) (*http.Response, error) {
	httpReq, err := newHTTPRequest(ctx, req)
	if err != nil {
		return nil, Permanent(err)
	}

	c.logger.Debug("Sending upstream request",
		zap.String("upstream", c.name),
		zap.String("method", string(req.Method)),
		zap.String("endpoint", redact(httpReq.URL)))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	return resp, nil
}

func newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	endpoint := req.Endpoint
	var body io.Reader
	var contentType string

	switch req.Method {
	case MethodGet, MethodDelete:
		query, err := queryValues(req.Payload)
		if err != nil {
			return nil, err
		}
		if endpoint, err = withQuery(endpoint, query); err != nil {
			return nil, err
		}
	case MethodPost:
		switch p := req.Payload.(type) {
		case nil:
		case url.Values:
			body = strings.NewReader(p.Encode())
			contentType = "application/x-www-form-urlencoded"
		case RawBody:
			body = bytes.NewReader(p.Data)
			contentType = p.ContentType
		default:
			data, err := json.Marshal(p)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request: %w", err)
			}
			body = bytes.NewReader(data)
			contentType = "application/json"
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

func queryValues(payload any) (url.Values, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return p, nil
	case map[string]string:
		values := make(url.Values, len(p))
		for k, v := range p {
			values.Set(k, v)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("query payload must be url.Values or map[string]string, got %T", payload)
	}
}

func withQuery(endpoint string, query url.Values) (string, error) {
	if len(query) == 0 {
		return endpoint, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	merged := u.Query()
	for k, vals := range query {
		for _, v := range vals {
			merged.Add(k, v)
		}
	}
	u.RawQuery = merged.Encode()
	return u.String(), nil
}

// redact drops the query string, which may carry API keys.
func redact(u *url.URL) string {
	clone := *u
	clone.RawQuery = ""
	return clone.String()
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorExcerpt {
		s = s[:maxErrorExcerpt]
	}
	return s
}
