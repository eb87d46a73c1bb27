// Package resolve inlines internal $ref nodes of an OpenAPI document tree.
//
// Pointers are looked up in one of two root collections: the legacy
// `#/definitions/<name>` collection, or `#/components/<collection>/<name>`.
// Every resolved value is a private copy of its target with its own
// references resolved, so the output tree is acyclic even when a component
// refers to itself.
package resolve

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// ErrReference matches any *ReferenceResolutionError via errors.Is.
var ErrReference = errors.New("reference resolution failed")

// ReferenceResolutionError is returned in strict mode for a pointer that
// does not name a member of a known collection.
type ReferenceResolutionError struct {
	Ref     string
	Pointer string // location of the $ref node
}

func (e *ReferenceResolutionError) Error() string {
	return fmt.Sprintf("unresolved reference %q at %s", e.Ref, e.Pointer)
}

func (e *ReferenceResolutionError) Is(target error) bool { return target == ErrReference }

type settings struct {
	strict  bool
	onClone func(src, dst map[string]any)
	logger  zerolog.Logger
}

// Option configures Resolve.
type Option func(*settings)

// WithStrict makes unresolved references an error instead of an empty schema.
func WithStrict(strict bool) Option { return func(s *settings) { s.strict = strict } }

// WithCloneHook is called for every mapping copied during resolution.
func WithCloneHook(fn func(src, dst map[string]any)) Option {
	return func(s *settings) { s.onClone = fn }
}

// WithLogger receives a debug event per substituted reference.
func WithLogger(l zerolog.Logger) Option { return func(s *settings) { s.logger = l } }

type resolver struct {
	settings
	// pristine holds copies of the collections taken before the walk so that
	// every lookup sees the unresolved declaration regardless of walk order.
	pristine map[string]map[string]any
}

// Resolve replaces every internal reference in root, in place. Missing
// targets become `{}` unless WithStrict is set. A pointer that repeats along
// its own resolution chain is replaced by `{}`.
//
// Resolving an already resolved tree changes nothing.
func Resolve(root map[string]any, opts ...Option) error {
	s := settings{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&s)
	}
	r := &resolver{settings: s, pristine: map[string]map[string]any{}}
	if defs, ok := root["definitions"].(map[string]any); ok {
		r.pristine["definitions"] = r.clone(defs).(map[string]any)
	}
	if components, ok := root["components"].(map[string]any); ok {
		for name, coll := range components {
			if m, ok := coll.(map[string]any); ok {
				r.pristine["components/"+name] = r.clone(m).(map[string]any)
			}
		}
	}
	_, err := r.walk(root, "#", nil)
	return err
}

func (r *resolver) walk(v any, at string, chain map[string]bool) (any, error) {
	switch node := v.(type) {
	case map[string]any:
		if ref, ok := refOf(node); ok {
			return r.deref(ref, at, chain)
		}
		for _, k := range sortedKeys(node) {
			nv, err := r.walk(node[k], at+"/"+escape(k), chain)
			if err != nil {
				return nil, err
			}
			node[k] = nv
		}
		return node, nil
	case []any:
		for i := range node {
			nv, err := r.walk(node[i], fmt.Sprintf("%s/%d", at, i), chain)
			if err != nil {
				return nil, err
			}
			node[i] = nv
		}
		return node, nil
	default:
		return v, nil
	}
}

func (r *resolver) deref(ref, at string, chain map[string]bool) (any, error) {
	if chain[ref] {
		r.logger.Debug().Str("ref", ref).Str("at", at).Msg("circular reference replaced by empty schema")
		return map[string]any{}, nil
	}
	target, ok := r.lookup(ref)
	if !ok {
		if r.strict {
			return nil, &ReferenceResolutionError{Ref: ref, Pointer: at}
		}
		r.logger.Debug().Str("ref", ref).Str("at", at).Msg("unresolved reference replaced by empty schema")
		return map[string]any{}, nil
	}
	next := make(map[string]bool, len(chain)+1)
	for k := range chain {
		next[k] = true
	}
	next[ref] = true
	return r.walk(r.clone(target), at, next)
}

// lookup maps `#/definitions/X` to collection "definitions" and
// `#/components/<c>/X` to collection "components/<c>"; the member name is
// the final pointer segment.
func (r *resolver) lookup(ref string) (any, bool) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, false
	}
	segments := strings.Split(strings.TrimPrefix(ref, "#/"), "/")
	var collection string
	switch {
	case len(segments) >= 2 && segments[0] == "definitions":
		collection = "definitions"
	case len(segments) >= 3 && segments[0] == "components":
		collection = "components/" + unescape(segments[1])
	default:
		return nil, false
	}
	coll, ok := r.pristine[collection]
	if !ok {
		return nil, false
	}
	member, ok := coll[unescape(segments[len(segments)-1])]
	return member, ok
}

func (r *resolver) clone(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			out[k] = r.clone(val)
		}
		if r.onClone != nil {
			r.onClone(node, out)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, val := range node {
			out[i] = r.clone(val)
		}
		return out
	default:
		return v
	}
}

func refOf(m map[string]any) (string, bool) {
	ref, ok := m["$ref"].(string)
	return ref, ok
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// JSON pointer token escaping (RFC 6901).
func unescape(token string) string {
	return strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")
}

func escape(token string) string {
	return strings.ReplaceAll(strings.ReplaceAll(token, "~", "~0"), "/", "~1")
}
