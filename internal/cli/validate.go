package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keissar/entrant/internal/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file without running anything",
		Long: `Check the config file against the embedded schema: field types,
value ranges and required fields. No network calls are made.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts)
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, opts *RootOptions) error {
	raw, err := os.ReadFile(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}

	if err := config.Validate(raw); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "✗ config invalid")
		return WrapExitError(ExitFailure, "config validation failed", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ config valid")
	return nil
}
