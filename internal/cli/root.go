package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mark3labs/oasclient/internal/logging"
	"github.com/mark3labs/oasclient/internal/version"
)

// Execute runs the oasclient CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// ExecuteContext runs the CLI with ctx available to every command.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oasclient",
		Short: "Call and export clients for Swagger/OpenAPI documents",
		Long: "oasclient turns a Swagger 2.0 or OpenAPI 3.x document into a client: " +
			"call any operation directly, or export a self-contained Go client.",
		Version:       version.Version(),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Convert Cobra flag errors (like unknown flags) into friendly usage errors
	// that also show the command's help text.
	flagErr := func(c *cobra.Command, err error) error {
		return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
	}
	cmd.SetFlagErrorFunc(flagErr)

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")
	cmd.PersistentFlags().BoolP("silent", "s", false, "Disable logging output")

	for _, sub := range []*cobra.Command{newGenerateCmd(), newCallCmd(), newInitCmd(), newVersionCmd()} {
		sub.SetFlagErrorFunc(flagErr)
		cmd.AddCommand(sub)
	}

	return cmd
}

// commandLogger builds the stderr logger from the root logging flags.
func commandLogger(cmd *cobra.Command, verbose bool) zerolog.Logger {
	silent, _ := cmd.Flags().GetBool("silent")
	return logging.New(cmd.ErrOrStderr(), logging.Options{Verbose: verbose, Silent: silent})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the oasclient version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "oasclient %s\n%s\n", version.Version(), version.UserAgent())
			return nil
		},
	}
}
