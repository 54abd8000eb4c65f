// Package catalog derives the universe of candidate tasks from a raw
// list of target URLs.
//
// A Task is one (kind, external ID) unit of pending work. The catalog
// is a set: two raw entries resolving to the same identity collapse to
// one Task, keeping the first occurrence. Entries matching no known URL
// shape are dropped and reported, never fatal.
package catalog

import "fmt"

// Kind distinguishes the two target content types.
type Kind string

const (
	// KindDynamic is a feed post (opus/dynamic/t.bilibili URLs).
	KindDynamic Kind = "dynamic"
	// KindVideo is a video page (video/BV... URLs).
	KindVideo Kind = "video"
)

// Task is one unit of pending work. Immutable once created; identity is
// (Kind, ExternalID).
type Task struct {
	Kind       Kind
	ExternalID string
	SourceURL  string
}

// ID returns the stable task identifier used as the dedup store key.
func (t Task) ID() string {
	return string(t.Kind) + ":" + t.ExternalID
}

func (t Task) String() string {
	return fmt.Sprintf("%s %s (%s)", t.Kind, t.ExternalID, t.SourceURL)
}

// Malformed records a raw entry that matched no known URL shape.
type Malformed struct {
	Raw    string
	Reason string
}

// Build parses raw entries into the task catalog. Malformed entries are
// collected, not errors. Order of first occurrence is preserved.
func Build(raw []string) ([]Task, []Malformed) {
	tasks := make([]Task, 0, len(raw))
	var dropped []Malformed
	seen := make(map[string]struct{}, len(raw))

	for _, entry := range raw {
		task, ok := parseEntry(entry)
		if !ok {
			dropped = append(dropped, Malformed{Raw: entry, Reason: "no known URL shape"})
			continue
		}
		if _, dup := seen[task.ID()]; dup {
			continue
		}
		seen[task.ID()] = struct{}{}
		tasks = append(tasks, task)
	}
	return tasks, dropped
}

func parseEntry(entry string) (Task, bool) {
	cleaned := CleanURL(entry)

	if bvid, ok := ExtractVideoBVID(cleaned); ok {
		return Task{Kind: KindVideo, ExternalID: bvid, SourceURL: cleaned}, true
	}
	if id, ok := ExtractDynamicID(cleaned); ok {
		return Task{Kind: KindDynamic, ExternalID: id, SourceURL: cleaned}, true
	}
	return Task{}, false
}
