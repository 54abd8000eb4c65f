// Package notify sends the run summary to a Telegram chat. An
// unconfigured or disabled notifier is a no-op and a delivery error is
// never fatal to the run.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/keissar/entrant/internal/scheduler"
)

const defaultAPIBase = "https://api.telegram.org"

// maxFailureDetails bounds how many failures appear verbatim in the
// message; the rest are counted.
const maxFailureDetails = 10

// Telegram posts run summaries through the bot sendMessage API.
type Telegram struct {
	hc      *http.Client
	apiBase string
	token   string
	chatID  string
	enabled bool
	log     *slog.Logger
}

// Option configures a Telegram notifier.
type Option func(*Telegram)

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(t *Telegram) { t.hc = hc }
}

// WithAPIBase replaces the API base URL (tests).
func WithAPIBase(base string) Option {
	return func(t *Telegram) { t.apiBase = base }
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(t *Telegram) { t.log = log }
}

// NewTelegram creates a notifier. With enabled false, or a missing
// token or chat ID, Send becomes a no-op.
func NewTelegram(token, chatID string, enabled bool, opts ...Option) *Telegram {
	t := &Telegram{
		hc:      &http.Client{Timeout: 30 * time.Second},
		apiBase: defaultAPIBase,
		token:   token,
		chatID:  chatID,
		enabled: enabled,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send delivers the run summary. It returns nil when the notifier is
// disabled or unconfigured.
func (t *Telegram) Send(ctx context.Context, summary *scheduler.Summary) error {
	if !t.enabled {
		t.log.Debug("telegram notification disabled")
		return nil
	}
	if t.token == "" || t.chatID == "" {
		t.log.Warn("telegram token or chat id missing, skipping notification")
		return nil
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    t.chatID,
		Text:      FormatSummary(summary),
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("encode telegram payload: %w", err)
	}

	url := t.apiBase + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.hc.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	var parsed sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("telegram api error %d: %s", parsed.ErrorCode, parsed.Description)
	}

	t.log.Info("telegram notification sent", "message_id", parsed.Result.MessageID)
	return nil
}

// FormatSummary renders a run summary as Telegram HTML: the statistics
// block, the first failures verbatim with user-controlled text escaped,
// and a count of the remainder.
func FormatSummary(summary *scheduler.Summary) string {
	var b strings.Builder
	b.WriteString("<strong>任务报告</strong>\n\n")
	b.WriteString("📊 <b>操作统计：</b>\n")
	fmt.Fprintf(&b, "• 抓取成功：%d次\n", summary.Crawled)
	fmt.Fprintf(&b, "• 关注成功：%d次\n", summary.Followed)
	fmt.Fprintf(&b, "• 点赞成功：%d次\n", summary.Liked)
	fmt.Fprintf(&b, "• 评论成功：%d次\n", summary.Commented)
	fmt.Fprintf(&b, "• 转发成功：%d次\n", summary.Reposted)
	fmt.Fprintf(&b, "• 失败总数：%d次\n", summary.Failed)
	m := int(summary.Duration.Minutes())
	s := int(summary.Duration.Seconds()) % 60
	fmt.Fprintf(&b, "• 用时：%d分%d秒\n\n", m, s)

	if len(summary.Failures) == 0 {
		b.WriteString("所有操作都顺利完成啦！")
		return b.String()
	}

	b.WriteString("<b>需要关注的异常详情：</b>\n")
	for i, f := range summary.Failures {
		if i == maxFailureDetails {
			fmt.Fprintf(&b, "... 还有 %d 条失败详情，请查看日志。\n", len(summary.Failures)-maxFailureDetails)
			break
		}
		fmt.Fprintf(&b, "%d. [%s] 账号[%s] %s\n   ➤ 目标：%s\n   ➤ 详情：%s\n",
			i+1,
			f.Kind,
			html.EscapeString(f.Account),
			html.EscapeString(f.Reason),
			html.EscapeString(f.Target),
			html.EscapeString(clip(f.Detail, 150)))
	}
	return b.String()
}

func clip(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
