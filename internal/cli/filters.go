package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/pflag"

	"github.com/mark3labs/oasclient/internal/spec"
)

// OperationFilters narrows the operations a command builds. Filters combine:
// an operation must pass every one that is set.
type OperationFilters struct {
	IncludeTags  []string
	ExcludeTags  []string
	Methods      []string
	PathPatterns []string
	PathGlobs    []string
}

var filterFlags = map[string]func(*OperationFilters) *[]string{
	"include-tags": func(f *OperationFilters) *[]string { return &f.IncludeTags },
	"exclude-tags": func(f *OperationFilters) *[]string { return &f.ExcludeTags },
	"methods":      func(f *OperationFilters) *[]string { return &f.Methods },
	"path-pattern": func(f *OperationFilters) *[]string { return &f.PathPatterns },
	"paths":        func(f *OperationFilters) *[]string { return &f.PathGlobs },
}

func addFilterFlags(flags *pflag.FlagSet) {
	flags.StringSlice("include-tags", nil, "Only keep operations with at least one of these tags")
	flags.StringSlice("exclude-tags", nil, "Drop operations with any of these tags")
	flags.StringSlice("methods", nil, "Only keep operations using these HTTP methods (e.g. get,post)")
	flags.StringSlice("path-pattern", nil, "Only keep operations whose path matches one of these regular expressions")
	flags.StringSlice("paths", nil, "Only keep operations whose path matches one of these globs (e.g. /pet/**)")
}

func (f *OperationFilters) applyFile(fc *fileConfig) error {
	for key, dst := range map[string]*[]string{
		"includetags":  &f.IncludeTags,
		"excludetags":  &f.ExcludeTags,
		"methods":      &f.Methods,
		"pathpatterns": &f.PathPatterns,
		"paths":        &f.PathGlobs,
	} {
		if err := fc.list(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func (f *OperationFilters) applyFlags(flags *pflag.FlagSet) error {
	for name, field := range filterFlags {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		*field(f) = value
	}
	return nil
}

func (f *OperationFilters) validate(command string) error {
	for _, m := range f.Methods {
		if !spec.IsMethod(strings.ToLower(strings.TrimSpace(m))) {
			return newUsageError(fmt.Sprintf("%s: unsupported --methods value %q", command, m))
		}
	}
	for _, p := range f.PathPatterns {
		if _, err := regexp.Compile(strings.TrimSpace(p)); err != nil {
			return newUsageError(fmt.Sprintf("%s: invalid --path-pattern %q: %v", command, p, err))
		}
	}
	for _, g := range f.PathGlobs {
		if !doublestar.ValidatePattern(strings.TrimSpace(g)) {
			return newUsageError(fmt.Sprintf("%s: invalid --paths glob %q", command, g))
		}
	}
	return nil
}

// methods converts Methods to document method names.
func (f *OperationFilters) methods() []spec.HttpMethod {
	if len(f.Methods) == 0 {
		return nil
	}
	out := make([]spec.HttpMethod, 0, len(f.Methods))
	for _, m := range f.Methods {
		out = append(out, spec.HttpMethod(strings.ToLower(strings.TrimSpace(m))))
	}
	return out
}
