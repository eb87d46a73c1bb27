package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/oasclient/internal/opschema"
	"github.com/mark3labs/oasclient/internal/spec"
	"github.com/mark3labs/oasclient/internal/transport"
)

// Request is the caller's input to one invocation.
type Request struct {
	// Params fills `{name}` placeholders of the path template.
	Params map[string]any
	Query  map[string]any
	Body   any
	// Headers override client defaults. A Content-Type here selects the
	// body encoding.
	Headers http.Header
}

// Invoker is bound to one operation. Its schemas are compiled once and only
// read afterwards, so concurrent calls are safe.
type Invoker struct {
	op       spec.Operation
	set      opschema.Set
	settings *Settings

	query *openapi3.Schema
	path  *openapi3.Schema
	body  *openapi3.Schema
	// media holds the compiled request body schema per declared content type.
	media map[string]*openapi3.Schema
}

func newInvoker(op spec.Operation, settings *Settings) (*Invoker, error) {
	inv := &Invoker{
		op:       op,
		set:      opschema.Synthesize(op.Parameters),
		settings: settings,
		media:    map[string]*openapi3.Schema{},
	}
	var err error
	if inv.query, err = opschema.Compile(inv.set.Query); err != nil {
		return nil, fmt.Errorf("query schema: %w", err)
	}
	if inv.path, err = opschema.Compile(inv.set.Path); err != nil {
		return nil, fmt.Errorf("path schema: %w", err)
	}
	if inv.body, err = opschema.Compile(inv.set.Body); err != nil {
		return nil, fmt.Errorf("body schema: %w", err)
	}
	if op.RequestBody != nil {
		for _, m := range op.RequestBody.Content {
			compiled, err := opschema.Compile(m.Schema)
			if err != nil {
				return nil, fmt.Errorf("request body schema %s: %w", m.ContentType, err)
			}
			inv.media[m.ContentType] = compiled
		}
	}
	return inv, nil
}

// Operation returns the operation this invoker is bound to.
func (inv *Invoker) Operation() spec.Operation { return inv.op }

// Schemas returns the synthesized parameter schemas.
func (inv *Invoker) Schemas() opschema.Set { return inv.set }

// ContentType resolves the content type a call with the given caller
// Content-Type would use. It is empty for methods without a payload.
func (inv *Invoker) ContentType(callerContentType string) string {
	if !opschema.HasPayload(inv.op.Method) {
		return ""
	}
	var declared []string
	if inv.op.RequestBody != nil {
		declared = inv.op.RequestBody.ContentTypes()
	}
	return opschema.SelectContentType(callerContentType, declared)
}

// Invoke runs validation, content-type resolution, body encoding and URL
// building, then dispatches. Validation stops at the first failing stage.
// Transport errors are returned unchanged.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (*transport.Response, error) {
	log := inv.settings.Logger.With().Str("operation", inv.name()).Logger()
	contentType := inv.ContentType(req.Headers.Get("Content-Type"))

	if inv.settings.Validate {
		if err := inv.validate(req, contentType); err != nil {
			log.Debug().Err(err).Msg("validation failed")
			return nil, err
		}
	}

	body := req.Body
	if contentType != "" && body != nil {
		encoded, effective, err := inv.encode(body, contentType)
		if err != nil {
			return nil, fmt.Errorf("%s: encode %s body: %w", inv.name(), contentType, err)
		}
		body, contentType = encoded, effective
	}

	path, err := buildPath(inv.op.Path, req.Params)
	if err != nil {
		return nil, fmt.Errorf("%s: build path: %w", inv.name(), err)
	}
	url := joinURL(inv.settings.BaseURL, path)
	qs, err := buildQuery(req.Query)
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", inv.name(), err)
	}
	if qs != "" {
		url += "?" + qs
	}

	header := mergeHeaders(inv.settings.Headers, req.Headers)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	log.Debug().Str("url", url).Str("contentType", contentType).Msg("invoke")
	return inv.settings.Doer.Do(ctx, &transport.Request{
		Method: string(inv.op.Method),
		URL:    url,
		Header: header,
		Body:   body,
		Params: req.Params,
		Query:  req.Query,
	})
}

func (inv *Invoker) validate(req Request, contentType string) error {
	name := inv.name()
	if v := opschema.Validate(inv.query, emptyIfNil(req.Query)); len(v) > 0 {
		return newValidationError(StageQuery, name, v)
	}
	if v := opschema.Validate(inv.path, emptyIfNil(req.Params)); len(v) > 0 {
		return newValidationError(StageParams, name, v)
	}
	if v := opschema.Validate(inv.body, emptyIfNil(req.Body)); len(v) > 0 {
		return newValidationError(StageBody, name, v)
	}
	if contentType == "" || inv.op.RequestBody == nil {
		return nil
	}
	if req.Body == nil && !inv.op.RequestBody.Required {
		return nil
	}
	if v := opschema.Validate(inv.requestBodySchema(contentType), emptyIfNil(req.Body)); len(v) > 0 {
		return newValidationError(StageRequestBody, name, v)
	}
	return nil
}

func (inv *Invoker) requestBodySchema(contentType string) *openapi3.Schema {
	if m, ok := inv.op.RequestBody.Media(contentType); ok {
		return inv.media[m.ContentType]
	}
	if len(inv.op.RequestBody.Content) == 0 {
		return nil
	}
	return inv.media[inv.op.RequestBody.Content[0].ContentType]
}

// encode returns the wire body and the effective content type, which
// differs from contentType only for multipart (boundary parameter).
func (inv *Invoker) encode(body any, contentType string) (any, string, error) {
	switch opschema.EncodingFor(contentType) {
	case opschema.EncodingMultipart:
		return encodeMultipart(body)
	case opschema.EncodingURLEncoded:
		form, err := encodeForm(body)
		return form, contentType, err
	case opschema.EncodingXML:
		data, err := encodeXML(opschema.XMLRoot(inv.op, inv.set, contentType), body)
		return data, contentType, err
	default:
		return body, contentType, nil
	}
}

func (inv *Invoker) name() string {
	if inv.op.OperationID != "" {
		return inv.op.OperationID
	}
	return inv.op.Key()
}

// emptyIfNil validates missing input as an empty object. A nil map counts
// as missing even when it arrives typed inside an interface.
func emptyIfNil(v any) any {
	switch x := v.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		if x == nil {
			return map[string]any{}
		}
	}
	return v
}

func mergeHeaders(defaults, caller http.Header) http.Header {
	out := defaults.Clone()
	if out == nil {
		out = http.Header{}
	}
	for k, vs := range caller {
		out[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	return out
}
