package cli

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mark3labs/oasclient/internal/client"
	"github.com/mark3labs/oasclient/internal/exporter"
	"github.com/mark3labs/oasclient/internal/spec"
)

const (
	targetFile   = "file"
	targetStdout = "stdout"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input           string
	Output          string
	Target          string
	Package         string
	ModulePath      string
	ConfigPath      string
	Validate        bool
	Module          bool
	Typed           bool
	Force           bool
	DryRun          bool
	AllowMissingIDs bool
	StrictRefs      bool
	Verbose         bool
	OperationFilters

	stdout io.Writer
	logger zerolog.Logger
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Output:   "client.go",
		Target:   targetFile,
		Package:  "apiclient",
		Validate: true,
		stdout:   os.Stdout,
		logger:   zerolog.Nop(),
	}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Export a standalone Go client for an OpenAPI/Swagger document",
		Long: "Export a standalone Go client for an OpenAPI/Swagger document. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  oasclient generate --input petstore.yaml --output ./petstore/client.go --package petstore
  oasclient generate -i https://petstore3.swagger.io/api/v3/openapi.json --target stdout --validate=false
  oasclient --config oasclient.yaml generate --module --module-path example.com/petstore --force`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			cfg.stdout = cmd.OutOrStdout()
			cfg.logger = commandLogger(cmd, cfg.Verbose)
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("input", "i", "", "Path or URL to the Swagger/OpenAPI document")
	flags.StringP("output", "o", "", "Generated source file (must end in .go); defaults to client.go")
	flags.String("target", "", "Where to write the source (file|stdout); defaults to file")
	flags.String("package", "", "Package name of the generated client; defaults to apiclient")
	flags.Bool("validate", true, "Embed schemas and validate every call")
	flags.Bool("module", false, "Also write a go.mod next to the output")
	flags.String("module-path", "", "Module path for --module")
	flags.Bool("typed", false, "Add an API interface implemented by the client")
	flags.Bool("force", false, "Overwrite existing output when set")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("allow-missing-ids", false, "Skip operations without operationId instead of failing")
	flags.Bool("strict-refs", false, "Fail on unresolved $ref instead of substituting an empty schema")
	addFilterFlags(flags)

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		fc, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := applyGenerateConfigFromFile(&cfg, fc); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, fc *fileConfig) error {
	for _, apply := range []func() error{
		func() error { return fc.str("input", &cfg.Input) },
		func() error { return fc.str("output", &cfg.Output) },
		func() error { return fc.str("target", &cfg.Target) },
		func() error { return fc.str("package", &cfg.Package) },
		func() error { return fc.str("modulepath", &cfg.ModulePath) },
		func() error { return fc.boolean("validate", &cfg.Validate) },
		func() error { return fc.boolean("module", &cfg.Module) },
		func() error { return fc.boolean("typed", &cfg.Typed) },
		func() error { return fc.boolean("force", &cfg.Force) },
		func() error { return fc.boolean("dryrun", &cfg.DryRun) },
		func() error { return fc.boolean("allowmissingids", &cfg.AllowMissingIDs) },
		func() error { return fc.boolean("strictrefs", &cfg.StrictRefs) },
		func() error { return fc.boolean("verbose", &cfg.Verbose) },
	} {
		if err := apply(); err != nil {
			return err
		}
	}
	return cfg.OperationFilters.applyFile(fc)
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := map[string]*string{
		"input":       &cfg.Input,
		"output":      &cfg.Output,
		"target":      &cfg.Target,
		"package":     &cfg.Package,
		"module-path": &cfg.ModulePath,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	if err := cfg.OperationFilters.applyFlags(flags); err != nil {
		return err
	}

	bools := map[string]*bool{
		"validate":          &cfg.Validate,
		"module":            &cfg.Module,
		"typed":             &cfg.Typed,
		"force":             &cfg.Force,
		"dry-run":           &cfg.DryRun,
		"allow-missing-ids": &cfg.AllowMissingIDs,
		"strict-refs":       &cfg.StrictRefs,
		"verbose":           &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Output = strings.TrimSpace(c.Output)
	c.Target = strings.ToLower(strings.TrimSpace(c.Target))
	c.Package = strings.TrimSpace(c.Package)
	c.ModulePath = strings.TrimSpace(c.ModulePath)
	if c.Target == "" {
		c.Target = targetFile
	}
	if c.Package == "" {
		c.Package = "apiclient"
	}
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag or config file)")
	}

	switch c.Target {
	case targetFile:
		if c.Output == "" {
			return newUsageError("generate: --output is required for --target file")
		}
		if filepath.Ext(c.Output) != ".go" {
			return newUsageError(fmt.Sprintf("generate: --output %q must end in .go", c.Output))
		}
	case targetStdout:
		if c.DryRun {
			return newUsageError("generate: --dry-run needs --target file")
		}
		if c.Module {
			return newUsageError("generate: --module writes go.mod and needs --target file")
		}
	default:
		return newUsageError(fmt.Sprintf("generate: unsupported --target %q (allowed: file, stdout)", c.Target))
	}

	if !token.IsIdentifier(c.Package) {
		return newUsageError(fmt.Sprintf("generate: --package %q is not a valid Go identifier", c.Package))
	}
	if c.Module && c.ModulePath == "" {
		return newUsageError("generate: --module requires --module-path")
	}

	return c.OperationFilters.validate("generate")
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	log := cfg.logger

	// 1) Load the document (file or http/https URL) with structural validation
	doc, err := spec.Load(ctx, cfg.Input)
	if err != nil {
		return documentError(err)
	}
	log.Debug().Str("input", doc.Location).Int("version", doc.Version).Msg("document loaded")

	// 2) Render the client
	art, err := exporter.Export(ctx, doc, exporter.Options{
		Package:             cfg.Package,
		Validate:            cfg.Validate,
		Module:              cfg.Module,
		ModulePath:          cfg.ModulePath,
		Typed:               cfg.Typed,
		RequireOperationIDs: !cfg.AllowMissingIDs,
		StrictRefs:          cfg.StrictRefs,
		IncludeTags:         cfg.IncludeTags,
		ExcludeTags:         cfg.ExcludeTags,
		Methods:             cfg.methods(),
		PathPatterns:        cfg.PathPatterns,
		PathGlobs:           cfg.PathGlobs,
		Logger:              log,
	})
	if err != nil {
		if errors.Is(err, client.ErrMissingOperationID) {
			return wrapUsage(fmt.Sprintf("generate: %v\nHint: add operationIds or pass --allow-missing-ids to skip them.", err), err)
		}
		return fmt.Errorf("generate: %w", err)
	}
	for _, key := range art.Skipped {
		log.Warn().Str("operation", key).Msg("skipped operation without operationId")
	}
	log.Info().
		Int("operations", len(art.Operations)).
		Interface("manifest", art.Manifest).
		Msg("client rendered")

	// 3) Write it
	if cfg.Target == targetStdout {
		_, err := cfg.stdout.Write(art.Source)
		return err
	}
	if cfg.DryRun {
		printPlan(cfg.stdout, exporter.Plan(cfg.Output, art))
		return nil
	}
	written, err := exporter.WriteArtifact(cfg.Output, art, cfg.Force)
	if err != nil {
		if errors.Is(err, exporter.ErrExists) {
			return wrapUsage(fmt.Sprintf("generate: %v", err), err)
		}
		return wrapOutputError(err, cfg.Output)
	}
	for _, p := range written {
		fmt.Fprintf(cfg.stdout, "Wrote %s\n", p)
	}
	return nil
}

func printPlan(w io.Writer, planned []exporter.PlannedFile) {
	fmt.Fprintf(w, "Planned writes (%d files):\n", len(planned))
	for _, p := range planned {
		fmt.Fprintf(w, "- %s (%d bytes)\n", p.Path, p.Size)
	}
}

// documentError maps structured document errors into friendly messages.
func documentError(err error) error {
	var de *spec.DocumentError
	if !errors.As(err, &de) {
		return err
	}
	msg := fmt.Sprintf("document: %s", de.Message)
	if de.Location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, de.Location)
	}
	if de.JSONPointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, de.JSONPointer)
	}
	return wrapUsage(msg, err)
}

func wrapOutputError(err error, output string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") {
		return wrapUsage(fmt.Sprintf("output error for %s: %s\nHint: choose a different --output or use --force when appropriate.", output, msg), err)
	}
	return err
}
