// Package bili is the cookie-authenticated HTTP client for the
// platform web API: login validation, the follow/like/comment/repost
// actions, content detail fetches, the comment-visibility probe, and
// the message feeds used by the win check.
//
// Transient transport errors are retried through an injected backoff
// policy. API-level errors (code != 0) are returned as *APIError and
// never retried.
package bili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/keissar/entrant/internal/wbi"
)

// ErrKeysUnavailable reports that a signed call was refused because the
// session's WBI keys were never obtained. Signing itself is never
// attempted with empty keys.
var ErrKeysUnavailable = errors.New("wbi keys unavailable")

// APIError is a non-zero status code returned by the platform.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// IsCaptcha reports whether the error is the comment captcha challenge.
func IsCaptcha(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == codeCaptcha
}

var csrfPattern = regexp.MustCompile(`bili_jct=([^;]+)`)

// ExtractCSRF pulls the csrf token (bili_jct) out of a cookie string.
func ExtractCSRF(cookie string) string {
	if m := csrfPattern.FindStringSubmatch(cookie); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// RetryPolicy bounds transport-level retries for any single call.
type RetryPolicy struct {
	MaxRetries uint64
	Interval   time.Duration
}

// DefaultRetryPolicy retries twice with a short constant interval.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 2, Interval: 2 * time.Second}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), p.MaxRetries), ctx)
}

// Client is one account's authenticated API session.
type Client struct {
	hc     *http.Client
	cookie string
	csrf   string
	remark string
	retry  RetryPolicy
	now    func() time.Time
	log    *slog.Logger

	// Session state filled by Login.
	mid    int64
	uname  string
	imgKey string
	subKey string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithRetryPolicy replaces the transport retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithClock replaces the timestamp source for request signing (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a client for one account. Login must be called before any
// authenticated or signed call.
func New(cookie, remark string, opts ...Option) *Client {
	c := &Client{
		hc:     &http.Client{Timeout: 60 * time.Second},
		cookie: cookie,
		csrf:   ExtractCSRF(cookie),
		remark: remark,
		retry:  DefaultRetryPolicy,
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Remark returns the account identity this session belongs to.
func (c *Client) Remark() string { return c.remark }

// Mid returns the account's numeric user ID, valid after Login.
func (c *Client) Mid() int64 { return c.mid }

// Uname returns the account's display name, valid after Login.
func (c *Client) Uname() string { return c.uname }

type navData struct {
	Mid    int64  `json:"mid"`
	Uname  string `json:"uname"`
	WbiImg struct {
		ImgURL string `json:"img_url"`
		SubURL string `json:"sub_url"`
	} `json:"wbi_img"`
	LevelInfo struct {
		CurrentLevel int `json:"current_level"`
	} `json:"level_info"`
}

// Login validates the cookie against the nav endpoint and captures the
// session identity and WBI keys. An invalid cookie returns the
// *APIError the endpoint reported.
func (c *Client) Login(ctx context.Context) error {
	var data navData
	if err := c.get(ctx, urlNav, nil, false, &data); err != nil {
		return fmt.Errorf("login check: %w", err)
	}

	c.mid = data.Mid
	c.uname = data.Uname
	c.imgKey = keyFromImageURL(data.WbiImg.ImgURL)
	c.subKey = keyFromImageURL(data.WbiImg.SubURL)
	if c.imgKey == "" || c.subKey == "" {
		c.log.Warn("wbi keys missing from nav response; signed calls will be refused",
			"account", c.remark)
	}

	c.log.Info("cookie validated",
		"account", c.remark, "uname", c.uname, "mid", c.mid,
		"level", data.LevelInfo.CurrentLevel)
	return nil
}

// keyFromImageURL strips path and extension from a wbi image URL:
// "https://.../wbi/7cd0...77c.png" -> "7cd0...77c".
func keyFromImageURL(u string) string {
	base := u
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base
}

// envelope is the common response wrapper of every endpoint.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// get issues a GET, optionally WBI-signing the parameters, and decodes
// the data payload into out (out may be nil).
func (c *Client) get(ctx context.Context, rawURL string, params map[string]string, signed bool, out any) error {
	if signed {
		if c.imgKey == "" || c.subKey == "" {
			return ErrKeysUnavailable
		}
		params = wbi.Sign(params, c.imgKey, c.subKey, c.now())
	}

	full := rawURL
	if len(params) > 0 {
		vals := make(url.Values, len(params))
		for k, v := range params {
			vals.Set(k, v)
		}
		full += "?" + vals.Encode()
	}

	return c.do(ctx, http.MethodGet, full, "", nil, true, out)
}

// postForm issues an application/x-www-form-urlencoded POST.
func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values, out any) error {
	body := form.Encode()
	return c.do(ctx, http.MethodPost, rawURL, "application/x-www-form-urlencoded", strings.NewReader(body), true, out)
}

// postJSON issues a JSON POST with query parameters. Used by the
// dynamic-creation endpoint, whose payload is a JSON document while the
// csrf still travels in the query string.
func (c *Client) postJSON(ctx context.Context, rawURL string, query url.Values, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	full := rawURL
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodPost, full, "application/json", strings.NewReader(string(raw)), true, out)
}

// do performs one request with transport retries and decodes the
// response envelope. A non-zero envelope code becomes *APIError and is
// not retried. When authenticated is false the session cookie is
// omitted (the anonymous probe of the visibility check).
func (c *Client) do(ctx context.Context, method, rawURL, contentType string, body io.Reader, authenticated bool, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("read request body: %w", err)
		}
	}

	var env envelope
	op := func() error {
		var reader io.Reader
		if bodyBytes != nil {
			reader = strings.NewReader(string(bodyBytes))
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, v := range baseHeaders {
			req.Header.Set(k, v)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if authenticated {
			req.Header.Set("Cookie", c.cookie)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			c.log.Warn("transport error, will retry",
				"account", c.remark, "url", rawURL, "error", err)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			c.log.Warn("unexpected status, will retry",
				"account", c.remark, "url", rawURL, "status", resp.StatusCode)
			return fmt.Errorf("status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			// A non-JSON body is not transient.
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(op, c.retry.newBackOff(ctx)); err != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}

	if env.Code != codeOK {
		return &APIError{Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data payload: %w", err)
		}
	}
	return nil
}
