package bili

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// MessageSource distinguishes where an inbox message came from.
type MessageSource string

const (
	SourceAt      MessageSource = "at"
	SourceReply   MessageSource = "reply"
	SourceWhisper MessageSource = "message"
)

// Message is one inbox item from the at/reply/private-session feeds,
// normalized for the win check.
type Message struct {
	ID       string
	Source   MessageSource
	UID      int64
	Nickname string
	Content  string
	URL      string
}

type msgFeedData struct {
	Items []struct {
		ID   int64 `json:"id"`
		User struct {
			Mid      int64  `json:"mid"`
			Nickname string `json:"nickname"`
		} `json:"user"`
		Item struct {
			SourceContent string `json:"source_content"`
			URI           string `json:"uri"`
		} `json:"item"`
	} `json:"items"`
}

// AtMessages returns the @-mention feed.
func (c *Client) AtMessages(ctx context.Context) ([]Message, error) {
	return c.msgFeed(ctx, urlMsgFeedAt, SourceAt)
}

// ReplyMessages returns the comment-reply feed.
func (c *Client) ReplyMessages(ctx context.Context) ([]Message, error) {
	return c.msgFeed(ctx, urlMsgFeedReply, SourceReply)
}

func (c *Client) msgFeed(ctx context.Context, feedURL string, source MessageSource) ([]Message, error) {
	var data msgFeedData
	if err := c.get(ctx, feedURL, nil, false, &data); err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", source, err)
	}

	msgs := make([]Message, 0, len(data.Items))
	for _, item := range data.Items {
		msgs = append(msgs, Message{
			ID:       strconv.FormatInt(item.ID, 10),
			Source:   source,
			UID:      item.User.Mid,
			Nickname: item.User.Nickname,
			Content:  item.Item.SourceContent,
			URL:      item.Item.URI,
		})
	}
	return msgs, nil
}

// SessionMessages returns unread private messages across all sessions.
func (c *Client) SessionMessages(ctx context.Context) ([]Message, error) {
	var sessions struct {
		SessionList []struct {
			TalkerID    int64 `json:"talker_id"`
			UnreadCount int   `json:"unread_count"`
		} `json:"session_list"`
	}
	params := map[string]string{"session_type": "1"}
	if err := c.get(ctx, urlSessions, params, false, &sessions); err != nil {
		return nil, fmt.Errorf("fetch sessions: %w", err)
	}

	var msgs []Message
	for _, session := range sessions.SessionList {
		if session.UnreadCount == 0 {
			continue
		}

		var detail struct {
			Messages []struct {
				MsgSeqno  int64  `json:"msg_seqno"`
				SenderUID int64  `json:"sender_uid"`
				MsgSource int    `json:"msg_source"`
				MsgType   int    `json:"msg_type"`
				Content   string `json:"content"`
			} `json:"messages"`
		}
		msgParams := map[string]string{
			"talker_id":    strconv.FormatInt(session.TalkerID, 10),
			"session_type": "1",
			"size":         strconv.Itoa(session.UnreadCount),
		}
		if err := c.get(ctx, urlSessionMsgs, msgParams, false, &detail); err != nil {
			c.log.Warn("fetch session messages failed",
				"account", c.remark, "talker", session.TalkerID, "error", err)
			continue
		}

		for _, msg := range detail.Messages {
			// Skip system pushes and non-text payloads.
			if msg.MsgSource == 8 || msg.MsgSource == 9 || msg.MsgType != 1 {
				continue
			}
			msgs = append(msgs, Message{
				ID:       strconv.FormatInt(msg.MsgSeqno, 10),
				Source:   SourceWhisper,
				UID:      msg.SenderUID,
				Nickname: "",
				Content:  whisperText(msg.Content),
				URL:      whisperURL(session.TalkerID),
			})
		}
	}
	return msgs, nil
}

// whisperText unwraps the JSON envelope private messages arrive in;
// unparseable content passes through raw.
func whisperText(raw string) string {
	var wrapped struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil || wrapped.Content == "" {
		return raw
	}
	return wrapped.Content
}
