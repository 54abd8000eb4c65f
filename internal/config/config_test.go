package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
target_file: targets.txt
state_dir: state
task_delay_min_seconds: 10
task_delay_max_seconds: 20
action_delay_min_seconds: 2
action_delay_max_seconds: 5
soft_ban_threshold: 3
win_keywords: ["中奖", "恭喜"]
accounts:
  - remark: 小号一号
    cookie: "SESSDATA=aaa; bili_jct=bbb"
    follow_enabled: true
    like_enabled: true
    comment_enabled: true
    repost_enabled: true
    ai_comment: true
    fixed_comments: ["恭喜恭喜"]
    emoticons: ["[保佑]"]
  - remark: 小号二号
    cookie: "SESSDATA=ccc; bili_jct=ddd"
    enabled: false
    soft_ban_threshold: 5
telegram:
  enable: true
  bot_token: tg-token
  chat_id: "10001"
deepseek:
  api_key: sk-test
  model: deepseek-chat
  temperature: 1.3
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "targets.txt", cfg.TargetFile)
	assert.Equal(t, 3, cfg.SoftBanThreshold)
	assert.Equal(t, []string{"中奖", "恭喜"}, cfg.WinKeywords)
	assert.Equal(t, 10*time.Second, cfg.TaskDelayMin())
	assert.Equal(t, 5*time.Second, cfg.ActionDelayMax())

	require.Len(t, cfg.Accounts, 2)
	first := cfg.Accounts[0]
	assert.True(t, first.IsEnabled())
	assert.True(t, first.AIComment)
	assert.Equal(t, []string{"恭喜恭喜"}, first.FixedComments)
	assert.Zero(t, first.SoftBanThreshold)

	second := cfg.Accounts[1]
	assert.False(t, second.IsEnabled())
	assert.Equal(t, 5, second.SoftBanThreshold)

	assert.Equal(t, "tg-token", cfg.Telegram.BotToken)
	assert.Equal(t, "sk-test", cfg.DeepSeek.APIKey)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
accounts:
  - remark: a1
    cookie: "SESSDATA=aaa"
`))
	require.NoError(t, err)

	assert.Equal(t, "targets.txt", cfg.TargetFile)
	assert.Equal(t, "state", cfg.StateDir)
	assert.Equal(t, 15*time.Second, cfg.TaskDelayMin())
	assert.Equal(t, 40*time.Second, cfg.TaskDelayMax())
	assert.Equal(t, "deepseek-chat", cfg.DeepSeek.Model)
	assert.Zero(t, cfg.SoftBanThreshold) // scheduler supplies its own default
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENTRANT_TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("ENTRANT_DEEPSEEK_API_KEY", "env-key")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
	assert.Equal(t, "env-key", cfg.DeepSeek.APIKey)
}

func TestLoad_SchemaViolations(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty remark", `
accounts:
  - remark: ""
    cookie: "SESSDATA=aaa"
`},
		{"negative threshold", `
soft_ban_threshold: -1
accounts:
  - remark: a1
    cookie: "SESSDATA=aaa"
`},
		{"wrong type", `
accounts:
  - remark: a1
    cookie: "SESSDATA=aaa"
    like_enabled: "yes please"
`},
		{"temperature out of range", `
accounts:
  - remark: a1
    cookie: "SESSDATA=aaa"
deepseek:
  temperature: 9.9
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config schema")
		})
	}
}

func TestLoad_SemanticErrors(t *testing.T) {
	t.Run("no accounts", func(t *testing.T) {
		_, err := Load(writeConfig(t, `accounts: []`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no accounts")
	})

	t.Run("inverted delays", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
task_delay_min_seconds: 30
task_delay_max_seconds: 10
accounts:
  - remark: a1
    cookie: "SESSDATA=aaa"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "task_delay_max_seconds")
	})

	t.Run("duplicate remark", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
accounts:
  - remark: a1
    cookie: "SESSDATA=aaa"
  - remark: a1
    cookie: "SESSDATA=bbb"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate account remark")
	})
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate_Raw(t *testing.T) {
	require.NoError(t, Validate([]byte(sampleConfig)))
	require.Error(t, Validate([]byte("")))
	require.Error(t, Validate([]byte("accounts: 42")))
}
