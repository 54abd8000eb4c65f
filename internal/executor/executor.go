// Package executor performs the per-task action sequence for one
// account: crawl the target, then follow, like, comment and repost as
// the account's capability flags allow, with randomized pauses between
// actions. After a successful comment it probes the comment's public
// visibility and reports suppression to the caller.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/keissar/entrant/internal/bili"
	"github.com/keissar/entrant/internal/catalog"
	"github.com/keissar/entrant/internal/scheduler"
)

// PlatformClient is the slice of the API client the executor drives.
// *bili.Client satisfies it.
type PlatformClient interface {
	Uname() string
	FetchDynamicDetail(ctx context.Context, dynamicID string) (*bili.DynamicDetail, error)
	FetchVideoDetail(ctx context.Context, bvid string) (*bili.VideoDetail, error)
	CheckRelation(ctx context.Context, targetMid int64) (bili.Relation, error)
	FollowUser(ctx context.Context, targetMid int64) error
	LikeDynamic(ctx context.Context, dynamicID string) error
	LikeVideo(ctx context.Context, aid int64) error
	CommentDynamic(ctx context.Context, oid int64, commentType int, message string) (string, error)
	CommentVideo(ctx context.Context, aid int64, message string) (string, error)
	RepostDynamic(ctx context.Context, dynamicID, message string) error
	RepostVideo(ctx context.Context, aid int64, message string) error
	CommentVisibility(ctx context.Context, oid int64, commentType int, rpid string) (bili.CommentStatus, error)
}

// Generator produces comment text from crawled content. *ai.Client
// satisfies it.
type Generator interface {
	Enabled() bool
	GenerateComment(ctx context.Context, content, nickname string) (string, error)
}

// Session is one account's runtime state: its API client plus the
// capability flags and comment material from configuration.
type Session struct {
	Client PlatformClient

	Follow  bool
	Like    bool
	Comment bool
	Repost  bool

	AIComment      bool
	IncludeName    bool
	FixedComments  []string
	Emoticons      []string
	UseFixedRepost bool
	FixedReposts   []string
}

// Executor maps scheduler accounts to their sessions and runs the
// action sequence. It implements scheduler.Executor.
type Executor struct {
	sessions map[string]*Session
	gen      Generator
	rng      scheduler.Rand
	sleeper  scheduler.Sleeper
	delayMin time.Duration
	delayMax time.Duration
	log      *slog.Logger
}

// Options configures an Executor.
type Options struct {
	Generator Generator // nil disables AI comments entirely
	Rand      scheduler.Rand
	Sleeper   scheduler.Sleeper
	// Pause bounds between consecutive actions within one task.
	ActionDelayMin time.Duration
	ActionDelayMax time.Duration
	Logger         *slog.Logger
}

// New creates an Executor over the given sessions, keyed by account
// name.
func New(sessions map[string]*Session, opts Options) *Executor {
	e := &Executor{
		sessions: sessions,
		gen:      opts.Generator,
		rng:      opts.Rand,
		sleeper:  opts.Sleeper,
		delayMin: opts.ActionDelayMin,
		delayMax: opts.ActionDelayMax,
		log:      opts.Logger,
	}
	if e.sleeper == nil {
		e.sleeper = scheduler.NewSleeper(e.rng)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Execute runs the full action sequence for one task on one account.
func (e *Executor) Execute(ctx context.Context, task catalog.Task, account *scheduler.Account) scheduler.Outcome {
	session, ok := e.sessions[account.Name]
	if !ok {
		return scheduler.Outcome{Err: fmt.Errorf("no session for account %q", account.Name)}
	}

	switch task.Kind {
	case catalog.KindVideo:
		return e.executeVideo(ctx, task, account.Name, session)
	default:
		return e.executeDynamic(ctx, task, account.Name, session)
	}
}

func (e *Executor) executeDynamic(ctx context.Context, task catalog.Task, account string, session *Session) scheduler.Outcome {
	detail, err := session.Client.FetchDynamicDetail(ctx, task.ExternalID)
	if err != nil {
		return scheduler.Outcome{Err: fmt.Errorf("crawl dynamic %s: %w", task.ExternalID, err)}
	}

	out := scheduler.Outcome{Crawled: true, CrawlDetail: snippet(detail.Text)}
	e.log.Info("crawled dynamic",
		"account", account, "dynamic", task.ExternalID,
		"author", detail.AuthorName, "lottery", detail.IsLottery)

	if session.Follow && detail.AuthorMid != 0 {
		out.Follow = e.follow(ctx, session, detail.AuthorMid)
		e.pause(ctx)
	}

	if session.Like {
		out.Like = actionResult(session.Client.LikeDynamic(ctx, task.ExternalID), "liked")
		e.pause(ctx)
	}

	var commentText string
	if session.Comment {
		commentText = e.buildComment(ctx, session, detail.Text)
		rpid, err := session.Client.CommentDynamic(ctx, detail.CommentOID, detail.CommentType, commentText)
		out.Comment = commentOutcome(err, commentText)
		if err == nil {
			e.probe(ctx, &out, session, detail.CommentOID, detail.CommentType, rpid)
		}
		e.pause(ctx)
	}

	if session.Repost {
		text := e.repostText(session, commentText)
		out.Repost = actionResult(session.Client.RepostDynamic(ctx, task.ExternalID, text), "reposted")
		e.pause(ctx)
	}

	return out
}

func (e *Executor) executeVideo(ctx context.Context, task catalog.Task, account string, session *Session) scheduler.Outcome {
	video, err := session.Client.FetchVideoDetail(ctx, task.ExternalID)
	if err != nil {
		return scheduler.Outcome{Err: fmt.Errorf("crawl video %s: %w", task.ExternalID, err)}
	}

	out := scheduler.Outcome{Crawled: true, CrawlDetail: snippet(video.Title)}
	e.log.Info("crawled video",
		"account", account, "bvid", task.ExternalID, "author", video.AuthorName)

	if session.Follow && video.AuthorMid != 0 {
		out.Follow = e.follow(ctx, session, video.AuthorMid)
		e.pause(ctx)
	}

	if session.Like {
		out.Like = actionResult(session.Client.LikeVideo(ctx, video.Aid), "liked")
		e.pause(ctx)
	}

	var commentText string
	if session.Comment {
		commentText = e.buildComment(ctx, session, video.Text())
		rpid, err := session.Client.CommentVideo(ctx, video.Aid, commentText)
		out.Comment = commentOutcome(err, commentText)
		if err == nil {
			// Video replies live under oid=aid, type=1.
			e.probe(ctx, &out, session, video.Aid, 1, rpid)
		}
		e.pause(ctx)
	}

	if session.Repost {
		text := e.repostText(session, commentText)
		out.Repost = actionResult(session.Client.RepostVideo(ctx, video.Aid, text), "reposted")
		e.pause(ctx)
	}

	return out
}

// follow checks the current relation first: blacklisted aborts, an
// existing follow counts as done, otherwise the follow is issued.
func (e *Executor) follow(ctx context.Context, session *Session, authorMid int64) *scheduler.ActionResult {
	rel, err := session.Client.CheckRelation(ctx, authorMid)
	if err != nil {
		return &scheduler.ActionResult{Detail: err.Error()}
	}
	switch rel {
	case bili.RelationBlacklisted:
		return &scheduler.ActionResult{Detail: "blacklisted by author"}
	case bili.RelationFollowing, bili.RelationMutual:
		return &scheduler.ActionResult{Succeeded: true, Detail: "already following"}
	}
	return actionResult(session.Client.FollowUser(ctx, authorMid), "followed")
}

// buildComment assembles the comment text: AI-generated when enabled
// (falling back to a fixed comment on any failure), a random emoticon,
// and whatever topic tags or @-mentions the post demands. The result is
// NFC-normalized so platform-side comparison sees canonical text.
func (e *Executor) buildComment(ctx context.Context, session *Session, content string) string {
	base := ""
	if session.AIComment && e.gen != nil && e.gen.Enabled() {
		nickname := ""
		if session.IncludeName {
			nickname = session.Client.Uname()
		}
		generated, err := e.gen.GenerateComment(ctx, content, nickname)
		if err != nil {
			e.log.Warn("comment generation failed, using fixed comment", "error", err)
		} else {
			base = generated
		}
	}
	if base == "" {
		base = e.pick(session.FixedComments)
	}

	text := base + e.pick(session.Emoticons) + catalog.RequiredTopics(content)
	return norm.NFC.String(text)
}

func (e *Executor) repostText(session *Session, commentText string) string {
	switch {
	case commentText != "":
		return commentText
	case session.UseFixedRepost && len(session.FixedReposts) > 0:
		return e.pick(session.FixedReposts)
	default:
		return "转发动态"
	}
}

// probe checks the posted comment's public visibility and flags
// suppression on the outcome. Probe transport errors are logged only:
// an unverifiable comment is not evidence of suppression.
func (e *Executor) probe(ctx context.Context, out *scheduler.Outcome, session *Session, oid int64, commentType int, rpid string) {
	status, err := session.Client.CommentVisibility(ctx, oid, commentType, rpid)
	if err != nil {
		e.log.Warn("visibility probe failed", "rpid", rpid, "error", err)
		return
	}
	switch status {
	case bili.CommentShadowHidden:
		out.SoftFailure = true
		out.Comment.Detail = "comment shadow-hidden"
	case bili.CommentDeleted:
		out.SoftFailure = true
		out.Comment.Detail = "comment deleted"
	}
}

func (e *Executor) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	if e.rng == nil {
		return options[0]
	}
	return options[e.rng.Intn(len(options))]
}

func (e *Executor) pause(ctx context.Context) {
	if e.delayMax <= 0 {
		return
	}
	e.sleeper.Sleep(ctx, e.delayMin, e.delayMax)
}

func actionResult(err error, okDetail string) *scheduler.ActionResult {
	if err != nil {
		detail := err.Error()
		if bili.IsCaptcha(err) {
			detail = "captcha challenge: " + detail
		}
		return &scheduler.ActionResult{Detail: detail}
	}
	return &scheduler.ActionResult{Succeeded: true, Detail: okDetail}
}

func commentOutcome(err error, text string) *scheduler.ActionResult {
	if err != nil {
		if errors.Is(err, bili.ErrKeysUnavailable) {
			return &scheduler.ActionResult{Detail: "signing keys unavailable"}
		}
		return actionResult(err, "")
	}
	return &scheduler.ActionResult{Succeeded: true, Detail: text}
}

// snippet truncates crawl text for the run summary.
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= 40 {
		return text
	}
	return string(runes[:40]) + "…"
}
