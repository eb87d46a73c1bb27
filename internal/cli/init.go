package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/oasclient/internal/exporter"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool

	stdout io.Writer
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample oasclient configuration file",
		Long:  "Scaffold a commented oasclient configuration file that documents available options.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath: out,
				Force:      force,
				Verbose:    verbose,
				stdout:     cmd.OutOrStdout(),
			}
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("out", "oasclient.yaml", "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = "oasclient.yaml"
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"
	if err := exporter.WriteFile(absPath, []byte(content)); err != nil {
		return newUsageError(fmt.Sprintf("init: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	stdout := cfg.stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	fmt.Fprintf(stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# oasclient configuration (YAML)
# All fields are optional. Command-line flags override config values.

# Path or URL to the Swagger/OpenAPI document (http/https or local file).
# input: ./openapi.yaml

# Source file to write (must end in .go) and where to write it (file|stdout). Used by generate.
# output: ./apiclient/client.go
# target: file

# Package name of the exported client (generate).
# package: apiclient

# Also write go.mod for this module path (generate).
# module: false
# modulePath: example.com/apiclient

# Add an API interface implemented by the client (generate).
# typed: false

# Validate requests against the document's schemas (generate embeds them).
# validate: true

# Overwrite existing files (generate).
# force: false

# Operation filters; an operation must pass every filter that is set.
# Path globs:
# paths: ["/pet/**"]
# Path regular expressions:
# pathPatterns: ["^/store/"]
# HTTP methods:
# methods: [get, post]
# Tags to keep or drop:
# includeTags: [pet]
# excludeTags: [internal]

# Preview planned outputs without writing files (generate).
# dryRun: false

# Skip operations without operationId instead of failing (generate).
# allowMissingIds: false

# Fail on unresolved $ref instead of substituting an empty schema.
# strictRefs: false

# Server URL override and default headers (call).
# baseUrl: https://api.example.com/v1
# headers: ["Authorization: Bearer TOKEN"]

# Enable verbose logging.
# verbose: false
`
