package bili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/keissar/entrant/internal/wbi"
)

// Relation is the follow relationship between the session account and a
// target user, as reported by the relation endpoint.
type Relation int

const (
	RelationNone        Relation = relationNone
	RelationFollowing   Relation = relationFollowing
	RelationMutual      Relation = relationMutual
	RelationBlacklisted Relation = relationBlacklisted
)

// CheckRelation returns the session's relation attribute toward the
// target user.
func (c *Client) CheckRelation(ctx context.Context, targetMid int64) (Relation, error) {
	var data struct {
		Attribute int `json:"attribute"`
	}
	params := map[string]string{
		"fid":   strconv.FormatInt(targetMid, 10),
		"mid":   strconv.FormatInt(c.mid, 10),
		"jsonp": "jsonp",
	}
	if err := c.get(ctx, urlRelation, params, false, &data); err != nil {
		return RelationNone, fmt.Errorf("check relation %d: %w", targetMid, err)
	}
	return Relation(data.Attribute), nil
}

// FollowUser follows the target user.
func (c *Client) FollowUser(ctx context.Context, targetMid int64) error {
	form := url.Values{
		"fid":    {strconv.FormatInt(targetMid, 10)},
		"act":    {"1"},
		"re_src": {"11"},
		"csrf":   {c.csrf},
	}
	if err := c.postForm(ctx, urlFollow, form, nil); err != nil {
		return fmt.Errorf("follow %d: %w", targetMid, err)
	}
	return nil
}

// LikeDynamic likes a feed post.
func (c *Client) LikeDynamic(ctx context.Context, dynamicID string) error {
	form := url.Values{
		"dynamic_id": {dynamicID},
		"optype":     {"1"},
		"csrf_token": {c.csrf},
		"csrf":       {c.csrf},
	}
	if err := c.postForm(ctx, urlLikeDynamic, form, nil); err != nil {
		return fmt.Errorf("like dynamic %s: %w", dynamicID, err)
	}
	return nil
}

// RepostDynamic reposts a feed post with the given message.
func (c *Client) RepostDynamic(ctx context.Context, dynamicID, message string) error {
	form := url.Values{
		"dynamic_id": {dynamicID},
		"content":    {message},
		"type":       {"4"},
		"csrf_token": {c.csrf},
		"csrf":       {c.csrf},
	}
	if err := c.postForm(ctx, urlRepostDynamic, form, nil); err != nil {
		return fmt.Errorf("repost dynamic %s: %w", dynamicID, err)
	}
	return nil
}

// CommentDynamic posts a comment on a feed post and returns the new
// reply ID. The comment endpoint requires WBI-signed parameters; with
// no session keys the call is refused with ErrKeysUnavailable. Code
// 12015 (captcha challenge) is surfaced as an *APIError; IsCaptcha
// identifies it.
func (c *Client) CommentDynamic(ctx context.Context, oid int64, commentType int, message string) (string, error) {
	if c.imgKey == "" || c.subKey == "" {
		return "", ErrKeysUnavailable
	}
	stats, _ := json.Marshal(map[string]any{
		"appId": 1, "platform": 3, "version": "2.38.0", "abtest": "",
	})
	params := map[string]string{
		"plat":        "1",
		"oid":         strconv.FormatInt(oid, 10),
		"type":        strconv.Itoa(commentType),
		"message":     message,
		"gaia_source": "main_web",
		"csrf":        c.csrf,
		"statistics":  string(stats),
	}

	// The add-reply endpoint takes its signed parameters in the query
	// string of a POST with an empty body.
	var data struct {
		Rpid int64 `json:"rpid"`
	}
	signedParams := make(url.Values, len(params))
	signed, err := c.signParams(params)
	if err != nil {
		return "", err
	}
	for k, v := range signed {
		signedParams.Set(k, v)
	}
	if err := c.do(ctx, "POST", urlComment+"?"+signedParams.Encode(), "", nil, true, &data); err != nil {
		return "", fmt.Errorf("comment oid %d: %w", oid, err)
	}
	return strconv.FormatInt(data.Rpid, 10), nil
}

// LikeVideo likes a video.
func (c *Client) LikeVideo(ctx context.Context, aid int64) error {
	form := url.Values{
		"aid":  {strconv.FormatInt(aid, 10)},
		"like": {"1"},
		"csrf": {c.csrf},
	}
	if err := c.postForm(ctx, urlLikeVideo, form, nil); err != nil {
		return fmt.Errorf("like video av%d: %w", aid, err)
	}
	return nil
}

// CommentVideo posts a comment under a video and returns the reply ID.
func (c *Client) CommentVideo(ctx context.Context, aid int64, message string) (string, error) {
	form := url.Values{
		"oid":     {strconv.FormatInt(aid, 10)},
		"type":    {"1"},
		"message": {message},
		"csrf":    {c.csrf},
	}
	var data struct {
		Rpid int64 `json:"rpid"`
	}
	if err := c.postForm(ctx, urlComment, form, &data); err != nil {
		return "", fmt.Errorf("comment video av%d: %w", aid, err)
	}
	return strconv.FormatInt(data.Rpid, 10), nil
}

// RepostVideo shares a video to the account's feed.
func (c *Client) RepostVideo(ctx context.Context, aid int64, message string) error {
	if message == "" {
		message = "分享视频"
	}
	payload := map[string]any{
		"dyn_req": map[string]any{
			"content": map[string]any{
				"contents": []map[string]any{{"raw_text": message, "type": 1}},
			},
			"scene": 5,
		},
		"web_repost_src": map[string]any{
			"revs_id": map[string]any{"dyn_type": 8, "rid": aid},
		},
	}
	query := url.Values{"csrf": {c.csrf}}
	if err := c.postJSON(ctx, urlCreateDynamic, query, payload, nil); err != nil {
		return fmt.Errorf("repost video av%d: %w", aid, err)
	}
	return nil
}

// CommentStatus classifies the visibility of a posted comment.
type CommentStatus int

const (
	// CommentVisible means the comment is publicly readable.
	CommentVisible CommentStatus = iota
	// CommentDeleted means the comment was removed outright.
	CommentDeleted
	// CommentShadowHidden means the comment was accepted but is only
	// visible to its author - the soft-suppression signal that feeds
	// the circuit breaker.
	CommentShadowHidden
)

// CommentVisibility probes a posted reply twice: once with the session
// cookie and once anonymously. Invisible to both means deleted;
// invisible only anonymously means shadow-hidden.
func (c *Client) CommentVisibility(ctx context.Context, oid int64, commentType int, rpid string) (CommentStatus, error) {
	params := url.Values{
		"oid":  {strconv.FormatInt(oid, 10)},
		"type": {strconv.Itoa(commentType)},
		"root": {rpid},
		"ps":   {"1"},
		"pn":   {"1"},
	}
	probeURL := urlCommentReply + "?" + params.Encode()

	if status, done, err := classifyProbe(c.do(ctx, "GET", probeURL, "", nil, true, nil), CommentDeleted); done {
		return status, err
	}
	if status, done, err := classifyProbe(c.do(ctx, "GET", probeURL, "", nil, false, nil), CommentShadowHidden); done {
		return status, err
	}
	return CommentVisible, nil
}

// classifyProbe maps a visibility probe result: reply-not-found means
// the probe's hidden status, nil means keep probing, anything else is a
// real error.
func classifyProbe(err error, hidden CommentStatus) (CommentStatus, bool, error) {
	if err == nil {
		return CommentVisible, false, nil
	}
	var ae *APIError
	if errors.As(err, &ae) && ae.Code == codeReplyNotFound {
		return hidden, true, nil
	}
	return CommentVisible, true, fmt.Errorf("comment visibility probe: %w", err)
}

// signParams signs params with the session keys; callers have already
// verified key availability.
func (c *Client) signParams(params map[string]string) (map[string]string, error) {
	if c.imgKey == "" || c.subKey == "" {
		return nil, ErrKeysUnavailable
	}
	return wbi.Sign(params, c.imgKey, c.subKey, c.now()), nil
}
