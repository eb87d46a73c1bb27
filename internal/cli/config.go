package cli

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// configKeys lists every field a config file may carry, normalized. generate
// and call share one file; each command reads only the fields it uses.
var configKeys = map[string]bool{
	"input":           true,
	"output":          true,
	"target":          true,
	"package":         true,
	"modulepath":      true,
	"paths":           true,
	"pathpatterns":    true,
	"methods":         true,
	"includetags":     true,
	"excludetags":     true,
	"module":          true,
	"typed":           true,
	"validate":        true,
	"force":           true,
	"dryrun":          true,
	"allowmissingids": true,
	"strictrefs":      true,
	"baseurl":         true,
	"headers":         true,
	"verbose":         true,
}

// fileConfig is a parsed config file keyed by normalized field name.
type fileConfig struct {
	path   string
	fields map[string]any
	// names keeps the spelling used in the file for error messages.
	names map[string]string
}

func readConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	fc := &fileConfig{path: path, fields: map[string]any{}, names: map[string]string{}}
	for key, value := range raw {
		normalized := normalizeKey(key)
		if !configKeys[normalized] {
			return nil, newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
		fc.fields[normalized] = value
		fc.names[normalized] = key
	}
	return fc, nil
}

func (fc *fileConfig) fieldError(key string, err error) error {
	return newUsageError(fmt.Sprintf("config field %q: %v", fc.names[key], err))
}

func (fc *fileConfig) str(key string, dst *string) error {
	v, ok := fc.fields[key]
	if !ok {
		return nil
	}
	s, err := valueAsString(v)
	if err != nil {
		return fc.fieldError(key, err)
	}
	*dst = s
	return nil
}

func (fc *fileConfig) boolean(key string, dst *bool) error {
	v, ok := fc.fields[key]
	if !ok {
		return nil
	}
	b, err := valueAsBool(v)
	if err != nil {
		return fc.fieldError(key, err)
	}
	*dst = b
	return nil
}

func (fc *fileConfig) list(key string, dst *[]string) error {
	v, ok := fc.fields[key]
	if !ok {
		return nil
	}
	l, err := valueAsStringSlice(v)
	if err != nil {
		return fc.fieldError(key, err)
	}
	*dst = l
	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
