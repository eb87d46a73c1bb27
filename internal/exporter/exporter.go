// Package exporter renders a standalone Go client for a document. The
// generated code runs the same validate, encode, build-URL and dispatch
// sequence as the dynamic client, using schemas synthesized by opschema and
// embedded as literals.
package exporter

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"
	"github.com/rs/zerolog"
	"github.com/stoewer/go-strcase"

	"github.com/mark3labs/oasclient/internal/client"
	"github.com/mark3labs/oasclient/internal/opschema"
	"github.com/mark3labs/oasclient/internal/resolve"
	"github.com/mark3labs/oasclient/internal/spec"
	"github.com/mark3labs/oasclient/internal/version"
)

// Capability names an external facility the generated code depends on.
type Capability string

const (
	CapHTTP       Capability = "http"
	CapValidation Capability = "validation"
	CapMultipart  Capability = "multipart"
	CapURLEncoded Capability = "urlencoded"
	CapXML        Capability = "xml"
)

// KinOpenAPI is the module the generated code imports for validation.
const (
	KinOpenAPI        = "github.com/getkin/kin-openapi"
	KinOpenAPIVersion = "v0.116.0"
	kinSchemaPkg      = KinOpenAPI + "/openapi3"
)

// Options controls rendering.
type Options struct {
	// Package is the generated package name; defaults to "apiclient".
	Package string
	// Validate embeds schemas and validates every call.
	Validate bool
	// Module also renders a go.mod for ModulePath.
	Module     bool
	ModulePath string
	// Typed adds an API interface implemented by Client.
	Typed bool
	// RequireOperationIDs rejects documents with operations lacking an id
	// instead of skipping them.
	RequireOperationIDs bool
	StrictRefs          bool
	// The filters below limit the client to matching operations; see the
	// spec.With* build options.
	IncludeTags  []string
	ExcludeTags  []string
	Methods      []spec.HttpMethod
	PathPatterns []string
	PathGlobs    []string
	Logger       zerolog.Logger
}

// Artifact is the export result. It is not modified after Export returns.
type Artifact struct {
	Manifest []Capability
	Source   []byte
	// GoMod is set in module mode.
	GoMod []byte
	// Operations lists the generated method names in emission order.
	Operations []string
	// Skipped lists "METHOD path" of operations without an operationId.
	Skipped []string
}

// Has reports whether the manifest lists c.
func (a *Artifact) Has(c Capability) bool {
	for _, m := range a.Manifest {
		if m == c {
			return true
		}
	}
	return false
}

// planned is one operation selected for emission.
type planned struct {
	op      spec.Operation
	set     opschema.Set
	method  string
	payload bool
	// defaultContentType is what SelectContentType picks with no caller header.
	defaultContentType string
	xmlRoot            string
}

// Export resolves doc (a no-op for an already resolved document) and
// renders the client. Rendering stops with ctx's error once ctx ends.
func Export(ctx context.Context, doc *spec.Document, opts Options) (*Artifact, error) {
	if doc == nil || doc.Root == nil {
		return nil, fmt.Errorf("exporter: nil document")
	}
	if strings.TrimSpace(opts.Package) == "" {
		opts.Package = "apiclient"
	}
	if opts.Module && strings.TrimSpace(opts.ModulePath) == "" {
		return nil, fmt.Errorf("exporter: module mode requires a module path")
	}
	if err := resolve.Resolve(doc.Root,
		resolve.WithStrict(opts.StrictRefs),
		resolve.WithCloneHook(doc.CopyOrder),
		resolve.WithLogger(opts.Logger),
	); err != nil {
		return nil, fmt.Errorf("resolve references: %w", err)
	}

	ops := spec.BuildOperations(doc,
		spec.WithIncludeTags(opts.IncludeTags),
		spec.WithExcludeTags(opts.ExcludeTags),
		spec.WithMethods(opts.Methods),
		spec.WithPathPatterns(opts.PathPatterns),
		spec.WithPathGlobs(opts.PathGlobs),
	)
	if opts.RequireOperationIDs {
		if err := client.RequireOperationIDs(ops); err != nil {
			return nil, err
		}
	}

	art := &Artifact{}
	plan, skipped := planOperations(ops)
	art.Skipped = skipped
	for _, key := range skipped {
		opts.Logger.Debug().Str("operation", key).Msg("skipping operation without operationId")
	}
	art.Manifest = manifest(plan, opts.Validate)

	r := &renderer{opts: opts, caps: map[Capability]bool{}}
	for _, c := range art.Manifest {
		r.caps[c] = true
	}
	src, err := r.render(ctx, plan, doc)
	if err != nil {
		return nil, err
	}
	art.Source = src
	for _, p := range plan {
		art.Operations = append(art.Operations, p.method)
	}
	if opts.Module {
		art.GoMod = renderGoMod(opts.ModulePath, art.Has(CapValidation))
	}
	opts.Logger.Debug().
		Int("operations", len(plan)).
		Int("skipped", len(skipped)).
		Interface("manifest", art.Manifest).
		Msg("export rendered")
	return art, nil
}

// planOperations keeps operations with an operationId in document order.
// Two ids mapping to the same method name: the later operation wins.
func planOperations(ops []spec.Operation) ([]planned, []string) {
	var (
		out     []planned
		skipped []string
		index   = map[string]int{}
	)
	for _, op := range ops {
		if op.OperationID == "" {
			skipped = append(skipped, op.Key())
			continue
		}
		p := planned{
			op:      op,
			set:     opschema.Synthesize(op.Parameters),
			method:  methodName(op.OperationID),
			payload: opschema.HasPayload(op.Method),
		}
		if p.payload {
			declared := op.RequestBody.ContentTypes()
			p.defaultContentType = opschema.SelectContentType("", declared)
			p.xmlRoot = opschema.XMLRoot(op, p.set, xmlContentType(declared, p.defaultContentType))
		}
		if i, ok := index[p.method]; ok {
			out[i] = p
			continue
		}
		index[p.method] = len(out)
		out = append(out, p)
	}
	return out, skipped
}

// xmlContentType is the first declared XML content type, else fallback.
func xmlContentType(declared []string, fallback string) string {
	for _, ct := range declared {
		if opschema.EncodingFor(ct) == opschema.EncodingXML {
			return ct
		}
	}
	return fallback
}

func manifest(plan []planned, validate bool) []Capability {
	out := []Capability{CapHTTP}
	if validate {
		out = append(out, CapValidation)
	}
	need := map[opschema.Encoding]bool{}
	for _, p := range plan {
		if !p.payload {
			continue
		}
		cts := p.op.RequestBody.ContentTypes()
		if len(cts) == 0 {
			cts = []string{p.defaultContentType}
		}
		for _, ct := range cts {
			need[opschema.EncodingFor(ct)] = true
		}
	}
	if need[opschema.EncodingMultipart] {
		out = append(out, CapMultipart)
	}
	if need[opschema.EncodingURLEncoded] {
		out = append(out, CapURLEncoded)
	}
	if need[opschema.EncodingXML] {
		out = append(out, CapXML)
	}
	return out
}

// methodName maps an operationId to an exported Go identifier.
func methodName(operationID string) string {
	name := strcase.UpperCamelCase(operationID)
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	name = b.String()
	if name == "" || !unicode.IsLetter([]rune(name)[0]) {
		name = "Op" + name
	}
	return name
}

func renderGoMod(modulePath string, validation bool) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "module %s\n\ngo 1.22\n", modulePath)
	if validation {
		fmt.Fprintf(&b, "\nrequire %s %s\n", KinOpenAPI, KinOpenAPIVersion)
	}
	return b.Bytes()
}

// renderer emits one file. caps gates which helpers are generated.
type renderer struct {
	opts Options
	caps map[Capability]bool
}

func (r *renderer) render(ctx context.Context, plan []planned, doc *spec.Document) ([]byte, error) {
	f := jen.NewFile(r.opts.Package)
	f.HeaderComment(fmt.Sprintf("Code generated by oasclient %s. DO NOT EDIT.", version.Version()))
	if title := doc.Title(); title != "" {
		f.PackageComment(fmt.Sprintf("Package %s is a client for %s.", r.opts.Package, title))
	}

	r.emitCore(f, doc.BaseURL())
	if r.caps[CapValidation] {
		r.emitValidation(f)
	}
	for _, p := range plan {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("exporter: render %s: %w", p.op.Key(), err)
		}
		if err := r.emitOperation(f, p); err != nil {
			return nil, fmt.Errorf("%s: %w", p.op.Key(), err)
		}
	}
	if r.opts.Typed {
		r.emitAPI(f, plan)
	}
	r.emitEncoders(f)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("render source: %w", err)
	}
	return buf.Bytes(), nil
}
