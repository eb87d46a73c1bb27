// Package transport is the HTTP client capability used by the invocation
// pipeline. The pipeline depends only on Doer; HTTPClient is the default
// implementation on net/http.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Request is what the pipeline hands to the transport. Params and Query are
// the caller's maps passed through verbatim; they are already reflected in URL.
type Request struct {
	Method string
	URL    string
	Header http.Header
	// Body is sent as-is when it is []byte, string or io.Reader; any other
	// non-nil value is JSON-encoded.
	Body   any
	Params map[string]any
	Query  map[string]any
}

// Response is a fully read HTTP response. Non-2xx statuses are responses,
// not errors.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Doer dispatches one request.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(ctx context.Context, req *Request) (*Response, error)

func (f DoerFunc) Do(ctx context.Context, req *Request) (*Response, error) { return f(ctx, req) }

// TransportError reports a request that produced no HTTP response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type ClientOptions struct {
	// Timeout bounds a whole exchange; zero leaves it to ctx.
	Timeout   time.Duration
	UserAgent string
	Logger    zerolog.Logger
	// HTTPClient overrides the underlying client (tests, custom TLS).
	HTTPClient *http.Client
}

// HTTPClient implements Doer with net/http. It never retries.
type HTTPClient struct {
	http *http.Client
	opts ClientOptions
}

func NewHTTPClient(opts ClientOptions) *HTTPClient {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPClient{http: hc, opts: opts}
}

func (c *HTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("transport: nil request")
	}
	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	body, err := encodeBody(req.Body, header)
	if err != nil {
		return nil, fmt.Errorf("transport: encode body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), req.URL, body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL, Err: err}
	}
	httpReq.Header = header
	if c.opts.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	}

	start := time.Now()
	c.opts.Logger.Debug().Str("method", httpReq.Method).Str("url", req.URL).Msg("dispatch")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.opts.Logger.Debug().Err(err).Str("method", httpReq.Method).Str("url", req.URL).Msg("transport failure")
		return nil, &TransportError{Method: httpReq.Method, URL: req.URL, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: httpReq.Method, URL: req.URL, Err: err}
	}
	c.opts.Logger.Debug().
		Str("method", httpReq.Method).
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Int("bytes", len(data)).
		Dur("latency", time.Since(start)).
		Msg("response")

	return &Response{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: data}, nil
}

func encodeBody(body any, header http.Header) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	case io.Reader:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", "application/json")
		}
		return bytes.NewReader(data), nil
	}
}
