package spec

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is a parsed OpenAPI v2 or v3 description kept as a generic tree
// of map[string]any, []any and scalars. Mapping key order is recorded at parse
// time so that "first declared" rules follow the document.
//
// A Document is mutated in place by reference resolution and must not be
// resolved from several goroutines at once. After resolution it is read-only.
type Document struct {
	Root     map[string]any
	Version  int // 2 or 3
	Location string

	order map[uintptr][]string
}

// Parse decodes YAML or JSON bytes into a Document. It detects the document
// version and checks that `paths` is a mapping; it does not run structural
// validation (see Load).
func Parse(data []byte, location string) (*Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, &DocumentError{Code: ParseError, Message: fmt.Sprintf("parse document: %v", err), Location: location, Cause: err}
	}
	doc := &Document{Location: location, order: map[uintptr][]string{}}
	tree, err := doc.decode(&node)
	if err != nil {
		return nil, &DocumentError{Code: ParseError, Message: fmt.Sprintf("parse document: %v", err), Location: location, Cause: err}
	}
	root, ok := tree.(map[string]any)
	if !ok {
		return nil, &DocumentError{Code: ParseError, Message: "document root is not a mapping", Location: location}
	}
	doc.Root = root

	version, err := detectVersion(root)
	if err != nil {
		return nil, &DocumentError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}
	doc.Version = version

	if p, present := root["paths"]; !present || p == nil {
		return nil, &DocumentError{Code: ValidationError, Message: "document has no paths", Location: location, JSONPointer: "#/paths"}
	} else if _, ok := p.(map[string]any); !ok {
		return nil, &DocumentError{Code: ValidationError, Message: "paths is not a mapping", Location: location, JSONPointer: "#/paths"}
	}
	return doc, nil
}

// FromMap wraps an already decoded tree. Key order falls back to sorted order.
func FromMap(root map[string]any) (*Document, error) {
	version, err := detectVersion(root)
	if err != nil {
		return nil, &DocumentError{Code: ParseError, Message: err.Error(), Cause: err}
	}
	if _, ok := root["paths"].(map[string]any); !ok {
		return nil, &DocumentError{Code: ValidationError, Message: "paths is not a mapping", JSONPointer: "#/paths"}
	}
	return &Document{Root: root, Version: version, order: map[uintptr][]string{}}, nil
}

func (d *Document) decode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return d.decode(n.Content[0])
	case yaml.AliasNode:
		return d.decode(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		keys := make([]string, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			val, err := d.decode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			if _, dup := m[key]; !dup {
				keys = append(keys, key)
			}
			m[key] = val
		}
		d.order[mapID(m)] = keys
		return m, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			val, err := d.decode(c)
			if err != nil {
				return nil, err
			}
			list = append(list, val)
		}
		return list, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		if _, isTime := v.(time.Time); isTime {
			return n.Value, nil
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported node kind %d", n.Line, n.Kind)
}

// Keys returns the keys of m in document order. Keys unknown to the order
// table (maps built after parsing) follow in sorted order.
func (d *Document) Keys(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	var known []string
	if d != nil && d.order != nil {
		known = d.order[mapID(m)]
	}
	out := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	for _, k := range known {
		if _, ok := m[k]; ok {
			out = append(out, k)
			seen[k] = struct{}{}
		}
	}
	if len(out) == len(m) {
		return out
	}
	var rest []string
	for k := range m {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// CopyOrder records src's key order for dst. The resolver calls it for every
// mapping it clones.
func (d *Document) CopyOrder(src, dst map[string]any) {
	if d == nil || d.order == nil {
		return
	}
	if keys, ok := d.order[mapID(src)]; ok {
		d.order[mapID(dst)] = keys
		return
	}
	// dst may reuse the address of a collected map.
	delete(d.order, mapID(dst))
}

// BaseURL derives the service base URL: v2 `{scheme}://{host}{basePath}`
// (scheme defaults to http), else the first v3 server URL, else "".
func (d *Document) BaseURL() string {
	if d == nil || d.Root == nil {
		return ""
	}
	if host := String(d.Root, "host"); host != "" {
		scheme := "http"
		if schemes, ok := d.Root["schemes"].([]any); ok && len(schemes) > 0 {
			if s, _ := schemes[0].(string); s != "" {
				scheme = s
			}
		}
		return scheme + "://" + host + String(d.Root, "basePath")
	}
	if servers, ok := d.Root["servers"].([]any); ok && len(servers) > 0 {
		if srv, ok := servers[0].(map[string]any); ok {
			return strings.TrimRight(String(srv, "url"), "/")
		}
	}
	return ""
}

// Title returns info.title, or "".
func (d *Document) Title() string {
	if info, ok := d.Root["info"].(map[string]any); ok {
		return String(info, "title")
	}
	return ""
}

func detectVersion(root map[string]any) (int, error) {
	if s, ok := root["openapi"].(string); ok && strings.HasPrefix(strings.TrimSpace(s), "3.") {
		return 3, nil
	}
	switch v := root["swagger"].(type) {
	case string:
		if strings.HasPrefix(strings.TrimSpace(v), "2.") {
			return 2, nil
		}
	case float64:
		if v >= 2 && v < 3 {
			return 2, nil
		}
	}
	return 0, fmt.Errorf("spec: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

// String returns m[key] when it is a string.
func String(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// Bool returns m[key] when it is a bool.
func Bool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// Map returns m[key] when it is a mapping.
func Map(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func mapID(m map[string]any) uintptr {
	return reflect.ValueOf(m).Pointer()
}
