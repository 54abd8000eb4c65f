// Package config loads the YAML run configuration. Decoded documents
// are validated against an embedded CUE schema before use, and secret
// fields may be overridden from ENTRANT_* environment variables so
// credentials can stay out of the file.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue/cuecontext"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var configSchema string

// Account is one platform account entry.
type Account struct {
	Remark  string `yaml:"remark"`
	Cookie  string `yaml:"cookie"`
	Enabled *bool  `yaml:"enabled"` // nil means enabled

	FollowEnabled  bool `yaml:"follow_enabled"`
	LikeEnabled    bool `yaml:"like_enabled"`
	CommentEnabled bool `yaml:"comment_enabled"`
	RepostEnabled  bool `yaml:"repost_enabled"`

	AIComment      bool     `yaml:"ai_comment"`
	CommentAddName bool     `yaml:"comment_add_name"`
	FixedComments  []string `yaml:"fixed_comments"`
	Emoticons      []string `yaml:"emoticons"`
	UseFixedRepost bool     `yaml:"use_fixed_repost"`
	FixedReposts   []string `yaml:"fixed_reposts"`

	// SoftBanThreshold overrides the global threshold when positive.
	SoftBanThreshold int `yaml:"soft_ban_threshold"`
}

// IsEnabled reports whether the account participates in a run.
func (a *Account) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Telegram configures the run-summary notifier.
type Telegram struct {
	Enable   bool   `yaml:"enable"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// DeepSeek configures the comment generator.
type DeepSeek struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// Config is the full run configuration.
type Config struct {
	TargetFile string `yaml:"target_file"`
	StateDir   string `yaml:"state_dir"`

	TaskDelayMinSeconds   float64 `yaml:"task_delay_min_seconds"`
	TaskDelayMaxSeconds   float64 `yaml:"task_delay_max_seconds"`
	ActionDelayMinSeconds float64 `yaml:"action_delay_min_seconds"`
	ActionDelayMaxSeconds float64 `yaml:"action_delay_max_seconds"`

	SoftBanThreshold int `yaml:"soft_ban_threshold"`

	WinKeywords []string `yaml:"win_keywords"`

	Accounts []Account `yaml:"accounts"`
	Telegram Telegram  `yaml:"telegram"`
	DeepSeek DeepSeek  `yaml:"deepseek"`
}

// secretOverrides are the environment-sourced credentials, prefixed
// ENTRANT_ (e.g. ENTRANT_TELEGRAM_BOT_TOKEN).
type secretOverrides struct {
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	DeepseekAPIKey   string `envconfig:"DEEPSEEK_API_KEY"`
}

// Load reads, validates and decodes the configuration file, then
// applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := Validate(raw); err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	var secrets secretOverrides
	if err := envconfig.Process("entrant", &secrets); err != nil {
		return nil, fmt.Errorf("read env overrides: %w", err)
	}
	if secrets.TelegramBotToken != "" {
		cfg.Telegram.BotToken = secrets.TelegramBotToken
	}
	if secrets.DeepseekAPIKey != "" {
		cfg.DeepSeek.APIKey = secrets.DeepseekAPIKey
	}

	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a raw YAML document against the embedded schema
// without fully loading it.
func Validate(raw []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("config is empty")
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(configSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	unified := schema.Unify(ctx.Encode(doc))
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		TargetFile:            "targets.txt",
		StateDir:              "state",
		TaskDelayMinSeconds:   15,
		TaskDelayMaxSeconds:   40,
		ActionDelayMinSeconds: 3,
		ActionDelayMaxSeconds: 8,
		DeepSeek: DeepSeek{
			Model:       "deepseek-chat",
			Temperature: 1.3,
		},
	}
}

// check enforces constraints the schema cannot express.
func (c *Config) check() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("config has no accounts")
	}
	if c.TaskDelayMaxSeconds < c.TaskDelayMinSeconds {
		return fmt.Errorf("task_delay_max_seconds %v below task_delay_min_seconds %v",
			c.TaskDelayMaxSeconds, c.TaskDelayMinSeconds)
	}
	if c.ActionDelayMaxSeconds < c.ActionDelayMinSeconds {
		return fmt.Errorf("action_delay_max_seconds %v below action_delay_min_seconds %v",
			c.ActionDelayMaxSeconds, c.ActionDelayMinSeconds)
	}

	seen := make(map[string]struct{}, len(c.Accounts))
	for i := range c.Accounts {
		remark := c.Accounts[i].Remark
		if _, dup := seen[remark]; dup {
			return fmt.Errorf("duplicate account remark %q", remark)
		}
		seen[remark] = struct{}{}
	}
	return nil
}

// TaskDelayMin returns the lower bound of the pause between tasks.
func (c *Config) TaskDelayMin() time.Duration { return seconds(c.TaskDelayMinSeconds) }

// TaskDelayMax returns the upper bound of the pause between tasks.
func (c *Config) TaskDelayMax() time.Duration { return seconds(c.TaskDelayMaxSeconds) }

// ActionDelayMin returns the lower bound of the pause between actions.
func (c *Config) ActionDelayMin() time.Duration { return seconds(c.ActionDelayMinSeconds) }

// ActionDelayMax returns the upper bound of the pause between actions.
func (c *Config) ActionDelayMax() time.Duration { return seconds(c.ActionDelayMaxSeconds) }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
