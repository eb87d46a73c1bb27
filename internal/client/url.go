package client

import (
	"fmt"
	"net/url"
	"strings"
)

// buildPath replaces each `{name}` placeholder with the path-escaped value
// from params. Placeholders without a value are left as written.
func buildPath(template string, params map[string]any) (string, error) {
	out := template
	for name, v := range params {
		s, err := formatValue(v)
		if err != nil {
			return "", fmt.Errorf("parameter %q: %w", name, err)
		}
		out = strings.ReplaceAll(out, "{"+name+"}", url.PathEscape(s))
	}
	return out, nil
}

// buildQuery encodes query with sorted keys; array values repeat the key.
// An empty map yields "".
func buildQuery(query map[string]any) (string, error) {
	if len(query) == 0 {
		return "", nil
	}
	values := url.Values{}
	for key, raw := range query {
		if err := addValues(values, key, raw); err != nil {
			return "", fmt.Errorf("query %q: %w", key, err)
		}
	}
	return values.Encode(), nil
}

func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
