package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/keissar/entrant/internal/bili"
	"github.com/keissar/entrant/internal/config"
	"github.com/keissar/entrant/internal/history"
	"github.com/keissar/entrant/internal/wincheck"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Scan account inboxes for win notifications",
		Long: `Pull the @-mention, reply and private-message feeds of every enabled
account and report messages matching the configured win keywords.
Messages already inspected in an earlier check are skipped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, rootOpts)
		},
	}
	return cmd
}

func runCheck(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if len(cfg.WinKeywords) == 0 {
		return NewExitError(ExitCommandError, "no win_keywords configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create state dir", err)
	}

	checker := wincheck.New(cfg.WinKeywords, slog.Default())
	out := cmd.OutOrStdout()
	total := 0

	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		if !acc.IsEnabled() {
			continue
		}

		client := bili.New(acc.Cookie, acc.Remark)
		if err := client.Login(ctx); err != nil {
			slog.Warn("cookie validation failed, skipping account",
				"account", acc.Remark, "error", err)
			continue
		}

		store, err := history.Open(history.PathFor(cfg.StateDir, acc.Remark))
		if err != nil {
			slog.Error("cannot open history store, skipping account",
				"account", acc.Remark, "error", err)
			continue
		}

		hits, err := checker.CheckAccount(ctx, client, store)
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("error closing history store", "account", acc.Remark, "error", closeErr)
		}
		if err != nil {
			return WrapExitError(ExitFailure, "win check interrupted", err)
		}

		for _, hit := range hits {
			total++
			fmt.Fprintf(out, "possible win for %s: [%s] %s: %s\n  %s\n",
				hit.Account, hit.Message.Source, hit.Message.Nickname,
				hit.Message.Content, hit.Message.URL)
		}
	}

	if total == 0 {
		fmt.Fprintln(out, "no win messages found")
	}
	return nil
}
