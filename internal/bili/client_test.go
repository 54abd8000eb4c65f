package bili

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookie = "SESSDATA=abc123; bili_jct=csrf-token-value; buvid3=xyz"

func newMockClient(t *testing.T) *Client {
	t.Helper()
	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)

	return New(testCookie, "test-account",
		WithHTTPClient(hc),
		WithRetryPolicy(RetryPolicy{MaxRetries: 0, Interval: time.Millisecond}),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	)
}

func registerNav(t *testing.T) {
	t.Helper()
	httpmock.RegisterResponder("GET", urlNav,
		httpmock.NewStringResponder(200, `{
			"code": 0, "message": "0",
			"data": {
				"mid": 12345, "uname": "tester",
				"wbi_img": {
					"img_url": "https://i0.hdslb.com/bfs/wbi/7cd084941338484aae1ad9425b84077c.png",
					"sub_url": "https://i0.hdslb.com/bfs/wbi/4932caff0ff746eab6f01bf08b70ac45.png"
				},
				"level_info": {"current_level": 5}
			}
		}`))
}

func TestExtractCSRF(t *testing.T) {
	assert.Equal(t, "csrf-token-value", ExtractCSRF(testCookie))
	assert.Equal(t, "", ExtractCSRF("SESSDATA=abc"))
	assert.Equal(t, "", ExtractCSRF(""))
}

func TestKeyFromImageURL(t *testing.T) {
	assert.Equal(t, "7cd084941338484aae1ad9425b84077c",
		keyFromImageURL("https://i0.hdslb.com/bfs/wbi/7cd084941338484aae1ad9425b84077c.png"))
	assert.Equal(t, "", keyFromImageURL(""))
}

func TestLogin_Success(t *testing.T) {
	c := newMockClient(t)
	registerNav(t)

	require.NoError(t, c.Login(context.Background()))
	assert.Equal(t, int64(12345), c.Mid())
	assert.Equal(t, "tester", c.Uname())
	assert.Equal(t, "7cd084941338484aae1ad9425b84077c", c.imgKey)
	assert.Equal(t, "4932caff0ff746eab6f01bf08b70ac45", c.subKey)
}

func TestLogin_InvalidCookie(t *testing.T) {
	c := newMockClient(t)
	httpmock.RegisterResponder("GET", urlNav,
		httpmock.NewStringResponder(200, `{"code": -101, "message": "账号未登录"}`))

	err := c.Login(context.Background())
	require.Error(t, err)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, -101, ae.Code)
}

func TestFollowUser(t *testing.T) {
	c := newMockClient(t)
	httpmock.RegisterResponder("POST", urlFollow, func(req *http.Request) (*http.Response, error) {
		require.NoError(t, req.ParseForm())
		assert.Equal(t, "999", req.PostForm.Get("fid"))
		assert.Equal(t, "1", req.PostForm.Get("act"))
		assert.Equal(t, "csrf-token-value", req.PostForm.Get("csrf"))
		return httpmock.NewStringResponse(200, `{"code": 0, "message": "0"}`), nil
	})

	require.NoError(t, c.FollowUser(context.Background(), 999))
}

func TestLikeDynamic_APIError(t *testing.T) {
	c := newMockClient(t)
	httpmock.RegisterResponder("POST", urlLikeDynamic,
		httpmock.NewStringResponder(200, `{"code": 65004, "message": "已赞过"}`))

	err := c.LikeDynamic(context.Background(), "111")
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 65004, ae.Code)
	assert.Equal(t, "已赞过", ae.Message)
}

func TestCommentDynamic_RefusedWithoutKeys(t *testing.T) {
	c := newMockClient(t)
	// No Login: the session holds no WBI keys, so the call must be
	// refused before any request is issued.
	_, err := c.CommentDynamic(context.Background(), 1, 11, "hello")
	require.ErrorIs(t, err, ErrKeysUnavailable)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestCommentDynamic_SignedRequest(t *testing.T) {
	c := newMockClient(t)
	registerNav(t)
	require.NoError(t, c.Login(context.Background()))

	httpmock.RegisterResponder("POST", `=~^https://api\.bilibili\.com/x/v2/reply/add`,
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			assert.Equal(t, "恭喜UP主", q.Get("message"))
			assert.Equal(t, "1700000000", q.Get("wts"))
			assert.Len(t, q.Get("w_rid"), 32)
			return httpmock.NewStringResponse(200,
				`{"code": 0, "message": "0", "data": {"rpid": 5550001}}`), nil
		})

	rpid, err := c.CommentDynamic(context.Background(), 960183791, 11, "恭喜UP主")
	require.NoError(t, err)
	assert.Equal(t, "5550001", rpid)
}

func TestCommentDynamic_Captcha(t *testing.T) {
	c := newMockClient(t)
	registerNav(t)
	require.NoError(t, c.Login(context.Background()))

	httpmock.RegisterResponder("POST", `=~^https://api\.bilibili\.com/x/v2/reply/add`,
		httpmock.NewStringResponder(200, `{"code": 12015, "message": "评论弹出验证码"}`))

	_, err := c.CommentDynamic(context.Background(), 1, 11, "hi")
	require.Error(t, err)
	assert.True(t, IsCaptcha(err))
}

func TestCheckRelation(t *testing.T) {
	c := newMockClient(t)
	httpmock.RegisterResponder("GET", `=~^https://api\.bilibili\.com/x/relation\?`,
		httpmock.NewStringResponder(200, `{"code": 0, "message": "0", "data": {"attribute": 2}}`))

	rel, err := c.CheckRelation(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, RelationFollowing, rel)
}

func TestCommentVisibility(t *testing.T) {
	cases := []struct {
		name     string
		authCode int
		anonCode int
		want     CommentStatus
	}{
		{"visible", 0, 0, CommentVisible},
		{"deleted", 12022, 12022, CommentDeleted},
		{"shadow hidden", 0, 12022, CommentShadowHidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newMockClient(t)
			httpmock.RegisterResponder("GET", `=~^https://api\.bilibili\.com/x/v2/reply/reply`,
				func(req *http.Request) (*http.Response, error) {
					code := tc.anonCode
					if req.Header.Get("Cookie") != "" {
						code = tc.authCode
					}
					if code == 0 {
						return httpmock.NewStringResponse(200, `{"code": 0, "message": "0", "data": {}}`), nil
					}
					return httpmock.NewStringResponse(200, `{"code": 12022, "message": "没有相关的回复"}`), nil
				})

			status, err := c.CommentVisibility(context.Background(), 1, 11, "5550001")
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestFetchDynamicDetail(t *testing.T) {
	c := newMockClient(t)
	httpmock.RegisterResponder("GET", `=~^https://api\.bilibili\.com/x/polymer/web-dynamic/desktop/v1/detail`,
		httpmock.NewStringResponder(200, `{
			"code": 0, "message": "0",
			"data": {"item": {"modules": [
				{"module_type": "MODULE_TYPE_AUTHOR",
				 "module_author": {"user": {"mid": 777, "name": "up主"}}},
				{"module_type": "MODULE_TYPE_DESC",
				 "module_desc": {"rich_text_nodes": [
					{"type": "RICH_TEXT_NODE_TYPE_LOTTERY", "text": "互动抽奖"},
					{"type": "RICH_TEXT_NODE_TYPE_TEXT", "text": " 转发关注抽一位"}
				 ]}},
				{"module_type": "MODULE_TYPE_STAT",
				 "module_stat": {"comment": {"comment_id": 880011, "comment_type": 17}}}
			]}}
		}`))

	detail, err := c.FetchDynamicDetail(context.Background(), "960183791")
	require.NoError(t, err)
	assert.Equal(t, int64(777), detail.AuthorMid)
	assert.Equal(t, "up主", detail.AuthorName)
	assert.Equal(t, "互动抽奖 转发关注抽一位", detail.Text)
	assert.True(t, detail.IsLottery)
	assert.False(t, detail.IsVideo)
	assert.Equal(t, int64(880011), detail.CommentOID)
	assert.Equal(t, 17, detail.CommentType)
}

func TestFetchVideoDetail(t *testing.T) {
	c := newMockClient(t)
	httpmock.RegisterResponder("GET", `=~^https://api\.bilibili\.com/x/web-interface/view`,
		httpmock.NewStringResponder(200, `{
			"code": 0, "message": "0",
			"data": {"aid": 170001, "title": "新年抽奖视频", "desc": "关注+三连",
			         "owner": {"mid": 777, "name": "up主"}}
		}`))

	v, err := c.FetchVideoDetail(context.Background(), "BV1x54y1B7RE")
	require.NoError(t, err)
	assert.Equal(t, int64(170001), v.Aid)
	assert.Contains(t, v.Text(), "新年抽奖视频")
	assert.Contains(t, v.Text(), "关注+三连")
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)
	c := New(testCookie, "retry-account",
		WithHTTPClient(hc),
		WithRetryPolicy(RetryPolicy{MaxRetries: 2, Interval: time.Millisecond}))

	calls := 0
	httpmock.RegisterResponder("GET", urlNav, func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return httpmock.NewStringResponse(502, "bad gateway"), nil
		}
		return httpmock.NewStringResponse(200, `{"code": 0, "message": "0", "data": {"mid": 1, "uname": "u", "wbi_img": {"img_url": "", "sub_url": ""}}}`), nil
	})

	require.NoError(t, c.Login(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestMessageFeeds(t *testing.T) {
	c := newMockClient(t)
	httpmock.RegisterResponder("GET", urlMsgFeedAt,
		httpmock.NewStringResponder(200, `{
			"code": 0, "message": "0",
			"data": {"items": [{"id": 31337, "user": {"mid": 5, "nickname": "中奖姬"},
				"item": {"source_content": "恭喜中奖啦", "uri": "https://t.bilibili.com/1"}}]}
		}`))

	msgs, err := c.AtMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "31337", msgs[0].ID)
	assert.Equal(t, SourceAt, msgs[0].Source)
	assert.Equal(t, "恭喜中奖啦", msgs[0].Content)
}

func TestSessionMessages(t *testing.T) {
	c := newMockClient(t)
	httpmock.RegisterResponder("GET", `=~^https://api\.vc\.bilibili\.com/session_svr/v1/session_svr/get_sessions`,
		httpmock.NewStringResponder(200, `{
			"code": 0, "message": "0",
			"data": {"session_list": [
				{"talker_id": 42, "unread_count": 1},
				{"talker_id": 43, "unread_count": 0}
			]}
		}`))
	httpmock.RegisterResponder("GET", `=~^https://api\.vc\.bilibili\.com/svr_sync/v1/svr_sync/fetch_session_msgs`,
		httpmock.NewStringResponder(200, `{
			"code": 0, "message": "0",
			"data": {"messages": [
				{"msg_seqno": 9001, "sender_uid": 42, "msg_source": 1, "msg_type": 1,
				 "content": "{\"content\":\"恭喜您中奖了\"}"},
				{"msg_seqno": 9002, "sender_uid": 42, "msg_source": 8, "msg_type": 1,
				 "content": "{\"content\":\"system push\"}"}
			]}
		}`))

	msgs, err := c.SessionMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "9001", msgs[0].ID)
	assert.Equal(t, "恭喜您中奖了", msgs[0].Content)
	assert.Equal(t, SourceWhisper, msgs[0].Source)
	assert.Contains(t, msgs[0].URL, "mid42")
}
