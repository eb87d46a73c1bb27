package resolve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ref(p string) map[string]any { return map[string]any{"$ref": p} }

func TestResolve_NoReferencesIsNoop(t *testing.T) {
	t.Parallel()
	root := map[string]any{
		"paths": map[string]any{"/a": map[string]any{"get": map[string]any{"operationId": "a"}}},
	}
	want := map[string]any{
		"paths": map[string]any{"/a": map[string]any{"get": map[string]any{"operationId": "a"}}},
	}
	require.NoError(t, Resolve(root))
	assert.Equal(t, want, root)
}

func TestResolve_LegacyAndModernCollections(t *testing.T) {
	t.Parallel()
	root := map[string]any{
		"definitions": map[string]any{
			"Tag": map[string]any{"type": "string"},
			"Pet": map[string]any{
				"type":       "object",
				"properties": map[string]any{"tag": ref("#/definitions/Tag")},
			},
		},
		"components": map[string]any{
			"parameters": map[string]any{
				"limit": map[string]any{"name": "limit", "in": "query"},
			},
		},
		"paths": map[string]any{
			"/pets": map[string]any{
				"get": map[string]any{
					"parameters": []any{ref("#/components/parameters/limit")},
					"x-body":     ref("#/definitions/Pet"),
				},
			},
		},
	}
	require.NoError(t, Resolve(root))

	get := root["paths"].(map[string]any)["/pets"].(map[string]any)["get"].(map[string]any)
	assert.Equal(t, map[string]any{"name": "limit", "in": "query"}, get["parameters"].([]any)[0])
	body := get["x-body"].(map[string]any)
	assert.Equal(t, "object", body["type"])
	assert.Equal(t, map[string]any{"type": "string"}, body["properties"].(map[string]any)["tag"],
		"references inside a substituted member are resolved too")
}

func TestResolve_SubstitutionsAreIndependentCopies(t *testing.T) {
	t.Parallel()
	root := map[string]any{
		"definitions": map[string]any{"Pet": map[string]any{"type": "object"}},
		"a":           ref("#/definitions/Pet"),
		"b":           ref("#/definitions/Pet"),
	}
	require.NoError(t, Resolve(root))
	root["a"].(map[string]any)["type"] = "changed"
	assert.Equal(t, "object", root["b"].(map[string]any)["type"])
}

func TestResolve_MissingReferenceLenient(t *testing.T) {
	t.Parallel()
	root := map[string]any{
		"schema":   ref("#/definitions/Nope"),
		"external": ref("other.yaml#/Pet"),
	}
	require.NoError(t, Resolve(root))
	assert.Equal(t, map[string]any{}, root["schema"])
	assert.Equal(t, map[string]any{}, root["external"])
}

func TestResolve_MissingReferenceStrict(t *testing.T) {
	t.Parallel()
	root := map[string]any{
		"paths": map[string]any{"/x": map[string]any{"schema": ref("#/components/schemas/Nope")}},
	}
	err := Resolve(root, WithStrict(true))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReference))

	var rre *ReferenceResolutionError
	require.ErrorAs(t, err, &rre)
	assert.Equal(t, "#/components/schemas/Nope", rre.Ref)
	assert.Equal(t, "#/paths/~1x/schema", rre.Pointer)
}

func TestResolve_SelfReferenceTerminates(t *testing.T) {
	t.Parallel()
	root := map[string]any{
		"components": map[string]any{
			"schemas": map[string]any{
				"Node": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"children": map[string]any{"type": "array", "items": ref("#/components/schemas/Node")},
					},
				},
			},
		},
		"body": ref("#/components/schemas/Node"),
	}
	require.NoError(t, Resolve(root))

	body := root["body"].(map[string]any)
	items := body["properties"].(map[string]any)["children"].(map[string]any)["items"]
	assert.Equal(t, map[string]any{}, items, "a repeated pointer becomes the terminal marker")
}

func TestResolve_MutualCycle(t *testing.T) {
	t.Parallel()
	root := map[string]any{
		"definitions": map[string]any{
			"A": map[string]any{"properties": map[string]any{"b": ref("#/definitions/B")}},
			"B": map[string]any{"properties": map[string]any{"a": ref("#/definitions/A")}},
		},
		"x": ref("#/definitions/A"),
	}
	require.NoError(t, Resolve(root))
	b := root["x"].(map[string]any)["properties"].(map[string]any)["b"].(map[string]any)
	assert.Equal(t, map[string]any{}, b["properties"].(map[string]any)["a"])
}

func TestResolve_Idempotent(t *testing.T) {
	t.Parallel()
	root := map[string]any{
		"definitions": map[string]any{
			"Pet": map[string]any{"type": "object", "required": []any{"name"}},
		},
		"x": ref("#/definitions/Pet"),
		"y": []any{ref("#/definitions/Pet"), "plain"},
	}
	require.NoError(t, Resolve(root))
	first := clonePlain(root)
	require.NoError(t, Resolve(root))
	assert.Equal(t, first, root)
}

func TestResolve_EscapedPointerSegments(t *testing.T) {
	t.Parallel()
	root := map[string]any{
		"components": map[string]any{
			"schemas": map[string]any{"a/b": map[string]any{"type": "integer"}},
		},
		"x": ref("#/components/schemas/a~1b"),
	}
	require.NoError(t, Resolve(root))
	assert.Equal(t, map[string]any{"type": "integer"}, root["x"])
}

func TestResolve_CloneHookSeesEveryCopy(t *testing.T) {
	t.Parallel()
	root := map[string]any{
		"definitions": map[string]any{"Pet": map[string]any{"type": "object"}},
		"x":           ref("#/definitions/Pet"),
	}
	calls := 0
	require.NoError(t, Resolve(root, WithCloneHook(func(src, dst map[string]any) { calls++ })))
	// definitions collection + Pet when taking the pristine copy, then Pet again on substitution.
	assert.Equal(t, 3, calls)
}

func clonePlain(v any) any {
	switch n := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, val := range n {
			out[k] = clonePlain(val)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, val := range n {
			out[i] = clonePlain(val)
		}
		return out
	default:
		return v
	}
}
