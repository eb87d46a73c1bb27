package spec

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// BuildOption configures which operations BuildOperations returns.
type BuildOption func(*buildConfig)

type buildConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
	pathRes     []*regexp.Regexp
	pathGlobs   []string
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if c.includeTags == nil {
				c.includeTags = make(map[string]struct{}, len(tags))
			}
			c.includeTags[t] = struct{}{}
		}
	}
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if c.excludeTags == nil {
				c.excludeTags = make(map[string]struct{}, len(tags))
			}
			c.excludeTags[t] = struct{}{}
		}
	}
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) BuildOption {
	return func(c *buildConfig) {
		if len(methods) == 0 {
			return
		}
		if c.methods == nil {
			c.methods = make(map[HttpMethod]struct{}, len(methods))
		}
		for _, m := range methods {
			c.methods[HttpMethod(strings.ToLower(string(m)))] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only operations whose path matches at least one of
// the provided regular expressions. An invalid pattern never matches.
func WithPathPatterns(patterns []string) BuildOption {
	return func(c *buildConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				re = regexp.MustCompile("a^$")
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// WithPathGlobs keeps only operations whose path matches at least one of the
// provided doublestar globs, e.g. "/pet/*" or "/store/**". Combined with
// WithPathPatterns, a path must satisfy both filters.
func WithPathGlobs(globs []string) BuildOption {
	return func(c *buildConfig) {
		for _, g := range globs {
			if g = strings.TrimSpace(g); g != "" {
				c.pathGlobs = append(c.pathGlobs, g)
			}
		}
	}
}

// BuildOperations walks paths × methods in document order. The document is
// expected to be resolved; parameters or request bodies that are still
// references are skipped.
func BuildOperations(doc *Document, opts ...BuildOption) []Operation {
	if doc == nil || doc.Root == nil {
		return nil
	}
	cfg := &buildConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	paths := Map(doc.Root, "paths")
	var ops []Operation
	for _, path := range doc.Keys(paths) {
		item, ok := paths[path].(map[string]any)
		if !ok {
			continue
		}
		if !cfg.pathAllowed(path) {
			continue
		}
		shared := parseParameters(item["parameters"])
		for _, key := range doc.Keys(item) {
			if !IsMethod(key) {
				continue
			}
			raw, ok := item[key].(map[string]any)
			if !ok {
				continue
			}
			op := Operation{
				Path:        path,
				Method:      HttpMethod(key),
				OperationID: strings.TrimSpace(String(raw, "operationId")),
				Summary:     String(raw, "summary"),
				Tags:        stringList(raw["tags"]),
				Parameters:  mergeParameters(shared, parseParameters(raw["parameters"])),
			}
			if !cfg.allowed(op) {
				continue
			}
			switch doc.Version {
			case 2:
				op.RequestBody = doc.consumes(raw)
			default:
				op.RequestBody = doc.requestBody(Map(raw, "requestBody"))
			}
			ops = append(ops, op)
		}
	}
	return ops
}

func (c *buildConfig) pathAllowed(path string) bool {
	return c.pathMatchesRegexp(path) && c.pathMatchesGlob(path)
}

func (c *buildConfig) pathMatchesRegexp(path string) bool {
	if len(c.pathRes) == 0 {
		return true
	}
	for _, re := range c.pathRes {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// A malformed glob never matches.
func (c *buildConfig) pathMatchesGlob(path string) bool {
	if len(c.pathGlobs) == 0 {
		return true
	}
	for _, g := range c.pathGlobs {
		if ok, err := doublestar.Match(g, path); err == nil && ok {
			return true
		}
	}
	return false
}

func (c *buildConfig) allowed(op Operation) bool {
	if c.methods != nil {
		if _, ok := c.methods[op.Method]; !ok {
			return false
		}
	}
	if c.excludeTags != nil {
		for _, t := range op.Tags {
			if _, ok := c.excludeTags[t]; ok {
				return false
			}
		}
	}
	if c.includeTags != nil {
		for _, t := range op.Tags {
			if _, ok := c.includeTags[t]; ok {
				return true
			}
		}
		return false
	}
	return true
}

func parseParameters(v any) []Parameter {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Parameter, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, isRef := m["$ref"]; isRef {
			continue
		}
		out = append(out, Parameter{
			Name:     String(m, "name"),
			In:       String(m, "in"),
			Required: Bool(m, "required"),
			Schema:   Map(m, "schema"),
			Raw:      m,
		})
	}
	return out
}

// mergeParameters overlays operation-level declarations on path-item level
// ones; a declaration with the same (name, in) replaces the shared one.
func mergeParameters(shared, own []Parameter) []Parameter {
	if len(shared) == 0 {
		return own
	}
	out := make([]Parameter, 0, len(shared)+len(own))
	for _, s := range shared {
		overridden := false
		for _, o := range own {
			if o.Name == s.Name && o.In == s.In {
				overridden = true
				break
			}
		}
		if !overridden {
			out = append(out, s)
		}
	}
	return append(out, own...)
}

func (d *Document) requestBody(raw map[string]any) *RequestBody {
	if raw == nil {
		return nil
	}
	if _, isRef := raw["$ref"]; isRef {
		return nil
	}
	rb := &RequestBody{Required: Bool(raw, "required")}
	content := Map(raw, "content")
	for _, ct := range d.Keys(content) {
		media, _ := content[ct].(map[string]any)
		rb.Content = append(rb.Content, Media{ContentType: ct, Schema: Map(media, "schema")})
	}
	return rb
}

// consumes maps v2 `consumes` (operation level, else document level) to a
// request body declaration without schemas.
func (d *Document) consumes(raw map[string]any) *RequestBody {
	types := stringList(raw["consumes"])
	if len(types) == 0 {
		types = stringList(d.Root["consumes"])
	}
	if len(types) == 0 {
		return nil
	}
	rb := &RequestBody{}
	for _, p := range parseParameters(raw["parameters"]) {
		if p.In == InBody && p.Required {
			rb.Required = true
		}
	}
	for _, ct := range types {
		rb.Content = append(rb.Content, Media{ContentType: ct})
	}
	return rb
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
