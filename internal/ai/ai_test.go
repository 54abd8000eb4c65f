package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterComment(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"clean passthrough", "这期视频做得好用心，画面也太美了叭", "这期视频做得好用心，画面也太美了叭"},
		{"strips quotes", `"恭喜UP主粉丝破百万啦"`, "恭喜UP主粉丝破百万啦"},
		{"strips cjk parenthetical", "手办做得真精致（好想要）期待下期呀", "手办做得真精致期待下期呀"},
		{"strips ascii parenthetical", "内容很棒(以上为生成评论)喵", "内容很棒喵"},
		{"strips mentions", "太好看了 @张三 都该来看看", "太好看了  都该来看看"},
		{"strips topic tags", "#新年抽奖#这期企划好用心哦", "这期企划好用心哦"},
		{"trims whitespace", "  画风好治愈呢  ", "画风好治愈呢"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FilterComment(tc.in))
		})
	}
}

func newMockGenerator(t *testing.T, apiKey string) *Client {
	t.Helper()
	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)
	return New(apiKey, "deepseek-chat", 1.2, WithHTTPClient(hc))
}

func TestGenerateComment(t *testing.T) {
	c := newMockGenerator(t, "sk-test")

	httpmock.RegisterResponder("POST", defaultEndpoint,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))

			var body chatRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "deepseek-chat", body.Model)
			require.Len(t, body.Messages, 2)
			assert.Equal(t, "system", body.Messages[0].Role)
			assert.Contains(t, body.Messages[0].Content, "小号一号")
			assert.Equal(t, "新年抽奖动态正文", body.Messages[1].Content)

			return httpmock.NewStringResponse(200, `{
				"choices": [{"message": {"content": "\"这期奖品也太精致了（好想要）恭喜UP主呀\""}}],
				"usage": {"total_tokens": 88}
			}`), nil
		})

	got, err := c.GenerateComment(context.Background(), "新年抽奖动态正文", "小号一号")
	require.NoError(t, err)
	assert.Equal(t, "这期奖品也太精致了恭喜UP主呀", got)
}

func TestGenerateComment_NoKey(t *testing.T) {
	c := newMockGenerator(t, "")
	assert.False(t, c.Enabled())

	_, err := c.GenerateComment(context.Background(), "动态正文", "")
	require.Error(t, err)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestGenerateComment_EmptyAfterFilter(t *testing.T) {
	c := newMockGenerator(t, "sk-test")
	httpmock.RegisterResponder("POST", defaultEndpoint,
		httpmock.NewStringResponder(200, `{"choices": [{"message": {"content": "(无法生成)"}}]}`))

	_, err := c.GenerateComment(context.Background(), "动态正文", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty after filtering")
}

func TestGenerateComment_HTTPError(t *testing.T) {
	c := newMockGenerator(t, "sk-test")
	httpmock.RegisterResponder("POST", defaultEndpoint,
		httpmock.NewStringResponder(429, `rate limited`))

	_, err := c.GenerateComment(context.Background(), "动态正文", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestGenerateComment_NoChoices(t *testing.T) {
	c := newMockGenerator(t, "sk-test")
	httpmock.RegisterResponder("POST", defaultEndpoint,
		httpmock.NewStringResponder(200, `{"choices": []}`))

	_, err := c.GenerateComment(context.Background(), "动态正文", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
