// Package client builds a callable client from an OpenAPI document: one
// Invoker per operation, addressable by (method, path) and by operationId.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mark3labs/oasclient/internal/resolve"
	"github.com/mark3labs/oasclient/internal/spec"
	"github.com/mark3labs/oasclient/internal/transport"
	"github.com/mark3labs/oasclient/internal/version"
)

// Settings configures a Client. It is read-only once New returns.
type Settings struct {
	// BaseURL overrides the URL derived from the document.
	BaseURL string
	// Headers are sent with every call; caller headers win.
	Headers http.Header
	Doer    transport.Doer
	Logger  zerolog.Logger
	// StrictRefs fails the build on unresolved references.
	StrictRefs bool
	// Validate runs the validation stages of the pipeline.
	Validate    bool
	IncludeTags []string
	ExcludeTags []string
	Methods     []spec.HttpMethod
	// PathPatterns and PathGlobs restrict the registry to matching paths;
	// a path must satisfy both when both are set.
	PathPatterns []string
	PathGlobs    []string
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		Headers:  http.Header{},
		Logger:   zerolog.Nop(),
		Validate: true,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithBaseURL(u string) Option                  { return func(s *Settings) { s.BaseURL = strings.TrimRight(u, "/") } }
func WithDoer(d transport.Doer) Option             { return func(s *Settings) { s.Doer = d } }
func WithLogger(l zerolog.Logger) Option           { return func(s *Settings) { s.Logger = l } }
func WithStrictRefs(strict bool) Option            { return func(s *Settings) { s.StrictRefs = strict } }
func WithValidation(enabled bool) Option           { return func(s *Settings) { s.Validate = enabled } }
func WithIncludeTags(tags []string) Option         { return func(s *Settings) { s.IncludeTags = tags } }
func WithExcludeTags(tags []string) Option         { return func(s *Settings) { s.ExcludeTags = tags } }
func WithMethods(methods []spec.HttpMethod) Option { return func(s *Settings) { s.Methods = methods } }
func WithPathPatterns(patterns []string) Option {
	return func(s *Settings) { s.PathPatterns = patterns }
}
func WithPathGlobs(globs []string) Option { return func(s *Settings) { s.PathGlobs = globs } }

// WithHeader adds a default header.
func WithHeader(key, value string) Option {
	return func(s *Settings) { s.Headers.Add(key, value) }
}

type routeKey struct {
	method spec.HttpMethod
	path   string
}

// Client is the operation registry. It is safe for concurrent use.
type Client struct {
	settings Settings
	byRoute  map[routeKey]*Invoker
	byID     map[string]*Invoker
	ordered  []*Invoker
}

// New resolves doc in place, then builds and binds one Invoker per
// operation. Any build error aborts construction, as does ctx ending
// between operations.
func New(ctx context.Context, doc *spec.Document, opts ...Option) (*Client, error) {
	if doc == nil || doc.Root == nil {
		return nil, &spec.DocumentError{Code: spec.InputError, Message: "client: nil document"}
	}
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.BaseURL == "" {
		settings.BaseURL = doc.BaseURL()
	}
	if settings.Doer == nil {
		settings.Doer = transport.NewHTTPClient(transport.ClientOptions{
			Logger:    settings.Logger,
			UserAgent: version.UserAgent(),
		})
	}

	if err := resolve.Resolve(doc.Root,
		resolve.WithStrict(settings.StrictRefs),
		resolve.WithCloneHook(doc.CopyOrder),
		resolve.WithLogger(settings.Logger),
	); err != nil {
		return nil, fmt.Errorf("resolve references: %w", err)
	}

	c := &Client{
		settings: settings,
		byRoute:  map[routeKey]*Invoker{},
		byID:     map[string]*Invoker{},
	}
	ops := spec.BuildOperations(doc,
		spec.WithIncludeTags(settings.IncludeTags),
		spec.WithExcludeTags(settings.ExcludeTags),
		spec.WithMethods(settings.Methods),
		spec.WithPathPatterns(settings.PathPatterns),
		spec.WithPathGlobs(settings.PathGlobs),
	)
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("client: build %s: %w", op.Key(), err)
		}
		inv, err := newInvoker(op, &c.settings)
		if err != nil {
			return nil, &spec.DocumentError{
				Code:        spec.ValidationError,
				Message:     fmt.Sprintf("%s: %v", op.Key(), err),
				Location:    doc.Location,
				JSONPointer: "#/paths/" + escapePointer(op.Path) + "/" + string(op.Method),
				Cause:       err,
			}
		}
		c.byRoute[routeKey{op.Method, op.Path}] = inv
		if op.OperationID != "" {
			// Duplicate ids: the last operation in document order wins.
			c.byID[op.OperationID] = inv
		}
		c.ordered = append(c.ordered, inv)
	}
	settings.Logger.Debug().
		Int("operations", len(c.ordered)).
		Str("baseURL", settings.BaseURL).
		Msg("client built")
	return c, nil
}

// BaseURL returns the effective base URL.
func (c *Client) BaseURL() string { return c.settings.BaseURL }

// Operation looks up the invoker for method and path template.
func (c *Client) Operation(method, path string) (*Invoker, bool) {
	inv, ok := c.byRoute[routeKey{spec.HttpMethod(strings.ToLower(method)), path}]
	return inv, ok
}

// ByID looks up the invoker for an operationId.
func (c *Client) ByID(operationID string) (*Invoker, bool) {
	inv, ok := c.byID[operationID]
	return inv, ok
}

// Invokers returns every invoker in document order.
func (c *Client) Invokers() []*Invoker {
	return append([]*Invoker(nil), c.ordered...)
}

// Call invokes the operation named operationID.
func (c *Client) Call(ctx context.Context, operationID string, req Request) (*transport.Response, error) {
	inv, ok := c.ByID(operationID)
	if !ok {
		return nil, fmt.Errorf("%w: operationId %q", ErrUnknownOperation, operationID)
	}
	return inv.Invoke(ctx, req)
}

// Do invokes the operation bound to method and path template.
func (c *Client) Do(ctx context.Context, method, path string, req Request) (*transport.Response, error) {
	inv, ok := c.Operation(method, path)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrUnknownOperation, strings.ToUpper(method), path)
	}
	return inv.Invoke(ctx, req)
}

// RequireOperationIDs returns *MissingOperationIdError when any operation
// lacks an operationId.
func (c *Client) RequireOperationIDs() error {
	return RequireOperationIDs(c.operations())
}

func (c *Client) operations() []spec.Operation {
	out := make([]spec.Operation, 0, len(c.ordered))
	for _, inv := range c.ordered {
		out = append(out, inv.op)
	}
	return out
}

// RequireOperationIDs checks ops for missing operationIds.
func RequireOperationIDs(ops []spec.Operation) error {
	var missing []string
	for _, op := range ops {
		if op.OperationID == "" {
			missing = append(missing, op.Key())
		}
	}
	if len(missing) > 0 {
		return &MissingOperationIdError{Operations: missing}
	}
	return nil
}

func escapePointer(token string) string {
	return strings.ReplaceAll(strings.ReplaceAll(token, "~", "~0"), "/", "~1")
}
