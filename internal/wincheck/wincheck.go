// Package wincheck scans account inboxes for giveaway win
// notifications. Messages already seen in an earlier check are skipped
// through the account's history store, so a win is reported once.
package wincheck

import (
	"context"
	"log/slog"
	"strings"

	"github.com/keissar/entrant/internal/bili"
)

// Feed is the slice of the API client the checker reads. *bili.Client
// satisfies it.
type Feed interface {
	Remark() string
	AtMessages(ctx context.Context) ([]bili.Message, error)
	ReplyMessages(ctx context.Context) ([]bili.Message, error)
	SessionMessages(ctx context.Context) ([]bili.Message, error)
}

// SeenStore persists which message IDs have been inspected.
// *history.Store satisfies it.
type SeenStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, id, kind string) error
}

// Hit is one message that matched a win keyword.
type Hit struct {
	Account string
	Keyword string
	Message bili.Message
}

// Checker matches inbox messages against the configured win keywords.
type Checker struct {
	keywords []string
	log      *slog.Logger
}

// New creates a checker for the given keywords.
func New(keywords []string, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{keywords: keywords, log: log}
}

// CheckAccount pulls the at/reply/private-message feeds for one account
// and returns the unseen messages matching a keyword. A feed that fails
// to fetch is logged and skipped; the other feeds still run. Store
// reads fail open (an unreadable store never hides a win), store writes
// are logged, so the message resurfaces on the next check.
func (c *Checker) CheckAccount(ctx context.Context, feed Feed, store SeenStore) ([]Hit, error) {
	account := feed.Remark()

	var messages []bili.Message
	for _, pull := range []func(context.Context) ([]bili.Message, error){
		feed.AtMessages, feed.ReplyMessages, feed.SessionMessages,
	} {
		batch, err := pull(ctx)
		if err != nil {
			c.log.Warn("feed fetch failed", "account", account, "error", err)
			continue
		}
		messages = append(messages, batch...)
	}

	var hits []Hit
	for _, msg := range messages {
		if ctx.Err() != nil {
			return hits, ctx.Err()
		}

		id := string(msg.Source) + ":" + msg.ID
		seen, err := store.Exists(ctx, id)
		if err != nil {
			c.log.Warn("seen lookup failed, treating as unseen",
				"account", account, "message", id, "error", err)
		}
		if seen {
			continue
		}

		if keyword := c.match(msg.Content); keyword != "" {
			c.log.Warn("possible win detected",
				"account", account, "source", msg.Source,
				"from", msg.Nickname, "uid", msg.UID,
				"keyword", keyword, "url", msg.URL)
			hits = append(hits, Hit{Account: account, Keyword: keyword, Message: msg})
		}

		if err := store.Insert(ctx, id, string(msg.Source)); err != nil {
			c.log.Warn("seen record failed, message will resurface",
				"account", account, "message", id, "error", err)
		}
	}

	if len(hits) == 0 {
		c.log.Info("no win messages", "account", account, "inspected", len(messages))
	}
	return hits, nil
}

func (c *Checker) match(content string) string {
	for _, keyword := range c.keywords {
		if keyword != "" && strings.Contains(content, keyword) {
			return keyword
		}
	}
	return ""
}
