package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SilentDiscards(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, Options{Silent: true, Verbose: true})
	log.Error().Msg("boom")
	assert.Zero(t, buf.Len())
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	t.Parallel()
	var quiet, loud bytes.Buffer
	info := New(&quiet, Options{})
	info.Debug().Msg("hidden")
	debug := New(&loud, Options{Verbose: true})
	debug.Debug().Msg("shown")
	assert.Zero(t, quiet.Len())
	require.Contains(t, loud.String(), `"message":"shown"`)
}

func TestNew_BufferIsNotPretty(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, Options{})
	log.Info().Str("k", "v").Msg("hello")
	assert.Contains(t, buf.String(), `"k":"v"`)

	pretty := true
	buf.Reset()
	log = New(&buf, Options{Pretty: &pretty})
	log.Info().Msg("hello")
	assert.NotContains(t, buf.String(), `"message"`)
	assert.Contains(t, buf.String(), "hello")
}
