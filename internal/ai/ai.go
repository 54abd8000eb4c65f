// Package ai generates giveaway-entry comments through the DeepSeek
// chat-completions API. Responses pass through post-filters that strip
// quoting, parentheticals, @-mentions and #topic# tags before they are
// posted, so a misbehaving model cannot leak meta-text into a comment.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const defaultEndpoint = "https://api.deepseek.com/v1/chat/completions"

// Client calls the chat-completions endpoint with a fixed persona
// prompt tuned for unobtrusive giveaway comments.
type Client struct {
	hc          *http.Client
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	log         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithEndpoint replaces the API endpoint (tests).
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a generator client. The key may be empty; Generate then
// fails and callers fall back to their fixed comment text.
func New(apiKey, model string, temperature float64, opts ...Option) *Client {
	c := &Client{
		hc:          &http.Client{Timeout: 3 * time.Minute},
		endpoint:    defaultEndpoint,
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the client holds an API key.
func (c *Client) Enabled() bool { return c.apiKey != "" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// GenerateComment produces a comment for the given post content. When
// nickname is non-empty the model is asked to weave it into the text in
// first person. The returned text has already been filtered.
func (c *Client) GenerateComment(ctx context.Context, content, nickname string) (string, error) {
	raw, err := c.complete(ctx, commentSystemPrompt(nickname), content)
	if err != nil {
		return "", err
	}
	filtered := FilterComment(raw)
	if filtered == "" {
		return "", fmt.Errorf("generated comment empty after filtering: %q", raw)
	}
	return filtered, nil
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("api key not configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   150,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion: status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices in response")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	c.log.Debug("comment generated", "tokens", parsed.Usage.TotalTokens, "length", len(text))
	return text, nil
}

// commentSystemPrompt is the persona prompt. The nickname rule is
// inserted only when a nickname is supplied.
func commentSystemPrompt(nickname string) string {
	nameRule := ""
	if nickname != "" {
		nameRule = "   - 第一人称\"我\"，自然地在评论内容中带上我的昵称'" + nickname + "'\n"
	}
	return "# 身份\n" +
		"你是一名B站用户，看到喜欢的UP主发起了抽奖动态，希望留言参与\n" +
		"# 核心目标\n" +
		"生成一条自然、真诚、不暴露抽奖目的的评论\n" +
		"# 规则清单\n" +
		"1.  最高优先级：如果要求评论固定内容，则你的输出只能是该固定内容\n" +
		"2.  次优先级：如果动态中明确要求评论特定内容或回答问题，则你的评论内容需围绕该要求展开\n" +
		"3.  评论焦点：在没有明确评论要求时，只围绕动态/视频内容本身或奖品本身展开\n" +
		"4.  绝对禁止：\n" +
		"    - 禁止描述自己的任何行为，例如\"我关注了\"\"已三连\"\n" +
		"    - 禁止提及\"抽奖\"\"中奖\"\"分子\"等任何与抽奖行为相关的词语\n" +
		"    - 禁止出现emoji、表情包\n" +
		"5.  风格要求：\n" +
		nameRule +
		"    - 字数在 35-70 字之间\n" +
		"    - 结尾可自然地加上一个可爱语气词，如喵、哦、呢、啦、叭、呀\n" +
		"# 输出\n" +
		"直接输出最终评论，无需任何解释(重要)"
}

var (
	parentheticalPattern = regexp.MustCompile(`[（(].*?[)）]`)
	mentionPattern       = regexp.MustCompile(`@\S+`)
	topicTagPattern      = regexp.MustCompile(`#.*?#`)
)

// FilterComment strips model artifacts that must never appear in a
// posted comment: surrounding quotes, parenthetical asides, @-mentions
// and #topic# tags.
func FilterComment(text string) string {
	text = strings.ReplaceAll(text, `"`, "")
	text = parentheticalPattern.ReplaceAllString(text, "")
	text = mentionPattern.ReplaceAllString(text, "")
	text = topicTagPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
