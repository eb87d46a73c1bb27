// Package opschema holds the rules shared by the dynamic client and the
// exporter: per-operation schema synthesis, content-type selection, body
// encoding kinds, and compilation into the validation engine.
package opschema

import (
	"github.com/mark3labs/oasclient/internal/spec"
)

// Set is the synthesized schema set of one operation. A nil fragment means
// no parameter was declared at that location.
type Set struct {
	Path  map[string]any
	Query map[string]any
	Body  map[string]any
	// XMLName is the `xml.name` of a legacy body parameter schema, if any.
	XMLName string
}

// Empty reports whether no fragment was synthesized.
func (s Set) Empty() bool {
	return s.Path == nil && s.Query == nil && s.Body == nil
}

// inlineSchemaKeys are the v2 parameter members that are schema keywords.
var inlineSchemaKeys = []string{
	"type", "format", "items", "enum", "default", "pattern",
	"minimum", "maximum", "exclusiveMinimum", "exclusiveMaximum",
	"minLength", "maxLength", "minItems", "maxItems", "uniqueItems",
	"multipleOf", "nullable",
}

// Synthesize groups parameter declarations by location into object schemas
// `{type: object, properties, required}`. formData and legacy body
// declarations fold into Body; header, cookie and untagged declarations are
// ignored. Within one location the last declaration of a name wins.
func Synthesize(params []spec.Parameter) Set {
	var set Set
	for _, p := range params {
		switch p.In {
		case spec.InPath:
			set.Path = addProperty(set.Path, p)
		case spec.InQuery:
			set.Query = addProperty(set.Query, p)
		case spec.InFormData:
			set.Body = addProperty(set.Body, p)
		case spec.InBody:
			set.Body, set.XMLName = mergePayload(set.Body, p)
		}
	}
	return set
}

func newFragment() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []any{},
	}
}

func addProperty(fragment map[string]any, p spec.Parameter) map[string]any {
	if p.Name == "" {
		return fragment
	}
	if fragment == nil {
		fragment = newFragment()
	}
	fragment["properties"].(map[string]any)[p.Name] = parameterSchema(p)
	if p.Required {
		fragment["required"] = appendUnique(fragment["required"].([]any), p.Name)
	}
	return fragment
}

// mergePayload folds a legacy `in: body` declaration into the body fragment:
// the declared schema describes the payload itself, so its properties and
// required list become the fragment's. A payload schema without properties
// (array, scalar) replaces the fragment.
func mergePayload(fragment map[string]any, p spec.Parameter) (map[string]any, string) {
	schema := p.Schema
	if schema == nil {
		return fragment, ""
	}
	xmlName := ""
	if x := spec.Map(schema, "xml"); x != nil {
		xmlName = spec.String(x, "name")
	}
	props := spec.Map(schema, "properties")
	if props == nil {
		return copyMap(schema), xmlName
	}
	if fragment == nil {
		fragment = newFragment()
	}
	dst, ok := fragment["properties"].(map[string]any)
	if !ok {
		// A previous payload replaced the fragment wholesale.
		fragment = newFragment()
		dst = fragment["properties"].(map[string]any)
	}
	for name, s := range props {
		dst[name] = s
	}
	if req, ok := schema["required"].([]any); ok {
		list, _ := fragment["required"].([]any)
		for _, name := range req {
			if s, ok := name.(string); ok {
				list = appendUnique(list, s)
			}
		}
		fragment["required"] = list
	}
	return fragment, xmlName
}

// parameterSchema returns the declaration's schema: its `schema` member when
// present, otherwise the v2 inline keywords lifted into a new schema.
func parameterSchema(p spec.Parameter) map[string]any {
	if p.Schema != nil {
		return p.Schema
	}
	out := map[string]any{}
	for _, k := range inlineSchemaKeys {
		if v, ok := p.Raw[k]; ok {
			out[k] = v
		}
	}
	if out["type"] == "file" {
		out["type"] = "string"
		out["format"] = "binary"
	}
	if d := spec.String(p.Raw, "description"); d != "" {
		out["description"] = d
	}
	return out
}

func appendUnique(list []any, name string) []any {
	for _, v := range list {
		if v == name {
			return list
		}
	}
	return append(list, name)
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
