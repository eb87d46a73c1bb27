package opschema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/goccy/go-json"
)

// Violation is one problem reported by the validation engine.
type Violation struct {
	// Path is a JSON pointer into the validated value ("" for the root).
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// Compile converts a schema fragment into a kin-openapi schema. The fragment
// is copied, never modified. Draft differences the engine cannot read are
// normalized first: 3.1 `type` lists, v2 string `discriminator`, boolean
// `required` and numeric exclusive bounds.
func Compile(fragment map[string]any) (*openapi3.Schema, error) {
	if fragment == nil {
		return nil, nil
	}
	data, err := json.Marshal(sanitize(fragment))
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	schema := &openapi3.Schema{}
	if err := json.Unmarshal(data, schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return schema, nil
}

// MarshalFragment renders a fragment the way Compile sees it. The exporter
// embeds this text in generated code.
func MarshalFragment(fragment map[string]any) ([]byte, error) {
	return json.Marshal(sanitize(fragment))
}

func sanitize(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			switch k {
			case "required":
				if _, isBool := val.(bool); isBool {
					continue
				}
			case "discriminator":
				if _, isString := val.(string); isString {
					continue
				}
			case "exclusiveMinimum", "exclusiveMaximum":
				if _, isBool := val.(bool); !isBool {
					bound := "minimum"
					if k == "exclusiveMaximum" {
						bound = "maximum"
					}
					if _, has := node[bound]; !has {
						out[bound] = val
					}
					out[k] = true
					continue
				}
			case "type":
				if list, isList := val.([]any); isList {
					t, nullable := collapseTypes(list)
					if t != "" {
						out["type"] = t
					}
					if nullable {
						out["nullable"] = true
					}
					continue
				}
			}
			out[k] = sanitize(val)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, val := range node {
			out[i] = sanitize(val)
		}
		return out
	default:
		return v
	}
}

func collapseTypes(list []any) (string, bool) {
	var picked string
	nullable := false
	for _, item := range list {
		s, _ := item.(string)
		switch {
		case s == "null":
			nullable = true
		case picked == "":
			picked = s
		}
	}
	return picked, nullable
}

// Normalize converts a Go value into the JSON data model the engine
// validates (map[string]any, []any, float64, string, bool, nil).
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate runs the engine and returns every violation; an empty result
// means value is valid. A nil schema accepts everything.
func Validate(schema *openapi3.Schema, value any) []Violation {
	if schema == nil {
		return nil
	}
	doc, err := Normalize(value)
	if err != nil {
		return []Violation{{Message: fmt.Sprintf("value is not JSON-encodable: %v", err)}}
	}
	if err := schema.VisitJSON(doc, openapi3.MultiErrors()); err != nil {
		return violations(err)
	}
	return nil
}

func violations(err error) []Violation {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		var out []Violation
		for _, e := range multi {
			out = append(out, violations(e)...)
		}
		return out
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		path := ""
		if parts := se.JSONPointer(); len(parts) > 0 {
			path = "/" + strings.Join(parts, "/")
		}
		msg := se.Reason
		if msg == "" {
			msg = se.Error()
		}
		return []Violation{{Path: path, Message: msg}}
	}
	return []Violation{{Message: err.Error()}}
}
