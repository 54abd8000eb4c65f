package catalog

import (
	"os"
	"regexp"
	"strings"
)

var (
	dynamicIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`bilibili\.com/(?:opus|dynamic)/(\d+)`),
		regexp.MustCompile(`t\.bilibili\.com/(\d+)`),
	}
	videoBVIDPattern = regexp.MustCompile(`bilibili\.com/video/(BV[a-zA-Z0-9]{10})`)

	// targetURLPattern selects candidate URLs out of free-form file
	// content (one file may hold URLs mixed with notes).
	targetURLPattern = regexp.MustCompile(
		`https?://(?:www\.|m\.)?bilibili\.com/(?:video/(?:BV\w+|av\d+)|opus/\d+|dynamic/\d+)\S*` +
			`|https?://t\.bilibili\.com/\d+`)
)

// CleanURL strips query string and fragment from a URL.
func CleanURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

// ExtractDynamicID pulls the numeric post ID out of a post URL.
func ExtractDynamicID(url string) (string, bool) {
	for _, p := range dynamicIDPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ExtractVideoBVID pulls the BV identifier out of a video URL.
func ExtractVideoBVID(url string) (string, bool) {
	if m := videoBVIDPattern.FindStringSubmatch(url); m != nil {
		return m[1], true
	}
	return "", false
}

// LoadTargetFile reads a target-list file and returns every candidate
// URL found in it, in order of first occurrence, duplicates removed.
// The entries still need Build to become tasks.
func LoadTargetFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var urls []string
	seen := make(map[string]struct{})
	for _, u := range targetURLPattern.FindAllString(string(content), -1) {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls, nil
}

var (
	topicPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:带话题[：:\s]*|带话题词)\s*((?:#.*?#\s*)+)`),
		regexp.MustCompile(`【(?:带|加)话题】\s*((?:#.*?#\s*)+)`),
		regexp.MustCompile(`带上双话题\s*((?:#.*?#\s*)+)`),
		regexp.MustCompile(`(?:带|加上)\s*(#.*?#)\s*话题`),
		regexp.MustCompile(`带上话题[：:\s]*\s*((?:#.*?#\s*)+)`),
		regexp.MustCompile(`带\s*(#.*?#)\s*转评`),
	}
	topicPattern   = regexp.MustCompile(`#.*?#`)
	mentionPattern = regexp.MustCompile(`并@([\w\p{Han}]+)`)
)

// RequiredTopics extracts the hashtag topics and @-mentions a giveaway
// post demands in repost/comment text. Returns the concatenated text to
// append, empty when the post demands nothing.
func RequiredTopics(content string) string {
	var ordered []string
	seen := make(map[string]struct{})
	for _, p := range topicPatterns {
		for _, m := range p.FindAllStringSubmatch(content, -1) {
			for _, topic := range topicPattern.FindAllString(m[1], -1) {
				if _, dup := seen[topic]; dup {
					continue
				}
				seen[topic] = struct{}{}
				ordered = append(ordered, topic)
			}
		}
	}

	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		ordered = append(ordered, " @"+m[1])
	}
	return strings.Join(ordered, "")
}
