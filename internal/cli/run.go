package cli

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keissar/entrant/internal/ai"
	"github.com/keissar/entrant/internal/bili"
	"github.com/keissar/entrant/internal/catalog"
	"github.com/keissar/entrant/internal/config"
	"github.com/keissar/entrant/internal/executor"
	"github.com/keissar/entrant/internal/history"
	"github.com/keissar/entrant/internal/notify"
	"github.com/keissar/entrant/internal/scheduler"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enter every pending giveaway with all enabled accounts",
		Long: `Run the full pipeline: load the target list, build each account's
backlog of not-yet-handled posts, and walk the backlogs one task at a
time until they drain. Ctrl-C stops cleanly between tasks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), rootOpts)
		},
	}
	return cmd
}

func runPipeline(parent context.Context, opts *RootOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	urls, err := catalog.LoadTargetFile(cfg.TargetFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read target file", err)
	}
	tasks, malformed := catalog.Build(urls)
	for _, m := range malformed {
		slog.Warn("dropping malformed target", "entry", m.Raw, "reason", m.Reason)
	}
	slog.Info("catalog built", "tasks", len(tasks), "dropped", len(malformed))
	if len(tasks) == 0 {
		slog.Info("nothing to do")
		return nil
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, finishing current task", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create state dir", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var generator executor.Generator
	if cfg.DeepSeek.APIKey != "" {
		generator = ai.New(cfg.DeepSeek.APIKey, cfg.DeepSeek.Model, cfg.DeepSeek.Temperature)
	}

	accounts, sessions, stores, storeFailures := buildAccounts(ctx, cfg, tasks, rng)
	defer func() {
		for _, st := range stores {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing history store", "error", closeErr)
			}
		}
	}()
	// Persistence init failing for every account is the one fatal
	// condition: without any store the run could not be idempotent.
	if len(stores) == 0 && storeFailures > 0 {
		return NewExitError(ExitCommandError, "no account has a usable history store")
	}
	if len(accounts) == 0 {
		slog.Info("no account has pending work")
		return nil
	}

	exec := executor.New(sessions, executor.Options{
		Generator:      generator,
		Rand:           rng,
		ActionDelayMin: cfg.ActionDelayMin(),
		ActionDelayMax: cfg.ActionDelayMax(),
	})

	sched := scheduler.New(exec, accounts, scheduler.Options{
		Rand:         rng,
		Breaker:      scheduler.NewBreaker(cfg.SoftBanThreshold),
		TaskDelayMin: cfg.TaskDelayMin(),
		TaskDelayMax: cfg.TaskDelayMax(),
	})

	slog.Info("run starting",
		"accounts", sched.ActiveAccounts(), "catalog", len(tasks))
	summary := sched.Run(ctx)
	slog.Info("run finished",
		"run_id", summary.RunID,
		"crawled", summary.Crawled,
		"followed", summary.Followed,
		"liked", summary.Liked,
		"commented", summary.Commented,
		"reposted", summary.Reposted,
		"failed", summary.Failed,
		"duration", summary.Duration.Round(time.Second))

	notifier := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.Enable)
	// Notification uses its own context: the run context is usually
	// already cancelled when we get here on Ctrl-C.
	notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer notifyCancel()
	if err := notifier.Send(notifyCtx, summary); err != nil {
		slog.Error("summary notification failed", "error", err)
	}

	return nil
}

// buildAccounts validates each enabled account, opens its history store
// and builds its backlog. Accounts whose cookie or store is unusable
// are skipped with a log line; the run proceeds with the rest.
func buildAccounts(ctx context.Context, cfg *config.Config, tasks []catalog.Task, rng scheduler.Rand) ([]*scheduler.Account, map[string]*executor.Session, []*history.Store, int) {
	var (
		accounts      []*scheduler.Account
		stores        []*history.Store
		storeFailures int
	)
	sessions := make(map[string]*executor.Session)

	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		if !acc.IsEnabled() {
			slog.Info("account disabled in config, skipping", "account", acc.Remark)
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
			storeFailures++
			continue
		}
		stores = append(stores, store)

		// Fail-open read: an unreadable history must not block the run,
		// the worst case is repeating already-handled tasks.
		done, err := store.ListAll(ctx)
		if err != nil {
			slog.Warn("history read failed, treating all tasks as pending",
				"account", acc.Remark, "error", err)
			done = nil
		}

		backlog := scheduler.BuildBacklog(tasks, done, rng)
		if len(backlog) == 0 {
			slog.Info("account has no pending tasks", "account", acc.Remark)
			continue
		}

		accounts = append(accounts, &scheduler.Account{
			Name:              acc.Remark,
			Enabled:           true,
			ThresholdOverride: acc.SoftBanThreshold,
			Backlog:           backlog,
			History:           store,
		})
		sessions[acc.Remark] = &executor.Session{
			Client:         client,
			Follow:         acc.FollowEnabled,
			Like:           acc.LikeEnabled,
			Comment:        acc.CommentEnabled,
			Repost:         acc.RepostEnabled,
			AIComment:      acc.AIComment,
			IncludeName:    acc.CommentAddName,
			FixedComments:  acc.FixedComments,
			Emoticons:      acc.Emoticons,
			UseFixedRepost: acc.UseFixedRepost,
			FixedReposts:   acc.FixedReposts,
		}
		slog.Info("account ready",
			"account", acc.Remark, "backlog", len(backlog),
			"store", filepath.Base(history.PathFor(cfg.StateDir, acc.Remark)))
	}

	return accounts, sessions, stores, storeFailures
}
