// Package logging builds the zerolog logger shared by the CLI and the
// client. Logs always go to stderr so generated source on stdout stays clean.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

type Options struct {
	Verbose bool
	Silent  bool
	// Pretty forces the console writer; when nil it follows TTY detection.
	Pretty *bool
}

// New returns a logger writing to w. Silent wins over Verbose.
func New(w io.Writer, opts Options) zerolog.Logger {
	if opts.Silent {
		return zerolog.Nop()
	}
	pretty := isTerminal(w)
	if opts.Pretty != nil {
		pretty = *opts.Pretty
	}
	out := w
	if pretty {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
