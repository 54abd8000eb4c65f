package bili

// Endpoint constants for the platform web API.
const (
	urlNav           = "https://api.bilibili.com/x/web-interface/nav"
	urlFollow        = "https://api.bilibili.com/x/relation/modify"
	urlRelation      = "https://api.bilibili.com/x/relation"
	urlLikeDynamic   = "https://api.vc.bilibili.com/dynamic_like/v1/dynamic_like/thumb"
	urlRepostDynamic = "https://api.vc.bilibili.com/dynamic_repost/v1/dynamic_repost/repost"
	urlCreateDynamic = "https://api.bilibili.com/x/dynamic/feed/create/dyn"
	urlComment       = "https://api.bilibili.com/x/v2/reply/add"
	urlCommentReply  = "https://api.bilibili.com/x/v2/reply/reply"
	urlLikeVideo     = "https://api.bilibili.com/x/web-interface/archive/like"
	urlDynamicDetail = "https://api.bilibili.com/x/polymer/web-dynamic/desktop/v1/detail"
	urlVideoDetail   = "https://api.bilibili.com/x/web-interface/view"
	urlMsgFeedAt     = "https://api.bilibili.com/x/msgfeed/at"
	urlMsgFeedReply  = "https://api.bilibili.com/x/msgfeed/reply"
	urlSessions      = "https://api.vc.bilibili.com/session_svr/v1/session_svr/get_sessions"
	urlSessionMsgs   = "https://api.vc.bilibili.com/svr_sync/v1/svr_sync/fetch_session_msgs"
)

// baseHeaders mimic a desktop browser session; the API rejects bare
// clients.
var baseHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Referer":         "https://www.bilibili.com/",
	"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
	"Origin":          "https://www.bilibili.com",
}

// Well-known API status codes this client branches on.
const (
	codeOK              = 0
	codeCaptcha         = 12015 // comment rejected pending captcha
	codeReplyNotFound   = 12022 // reply invisible to the requesting session
	relationNone        = 0
	relationFollowing   = 2
	relationMutual      = 6
	relationBlacklisted = 128
)
