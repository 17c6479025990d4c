// Package usage parses LLM usage events from agent session logs.
package usage

import (
	"errors"
	"regexp"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Strob0t/clawkanban/internal/domain/cost"
)

// ErrNoSource is returned when the session log directory does not exist.
var ErrNoSource = errors.New("usage: session log source not found")

// RoleAssistant marks events produced by the model.
const RoleAssistant = "assistant"

// Event is one usage-bearing message record from a session log.
type Event struct {
	Role      string
	Model     string
	Timestamp int64 // epoch milliseconds
	Usage     cost.Usage
}

// Time returns the event timestamp.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// ParseLine extracts a usage event from one JSONL line. ok is false for
// invalid JSON, records that are not messages, and messages without usage.
func ParseLine(line []byte) (Event, bool) {
	if !gjson.ValidBytes(line) {
		return Event{}, false
	}
	rec := gjson.ParseBytes(line)
	if rec.Get("type").String() != "message" {
		return Event{}, false
	}
	msg := rec.Get("message")
	u := msg.Get("usage")
	if !u.IsObject() {
		return Event{}, false
	}
	return Event{
		Role:      msg.Get("role").String(),
		Model:     msg.Get("model").String(),
		Timestamp: msg.Get("timestamp").Int(),
		Usage: cost.Usage{
			Input:      u.Get("input").Int(),
			Output:     u.Get("output").Int(),
			CacheRead:  u.Get("cacheRead").Int(),
			CacheWrite: u.Get("cacheWrite").Int(),
		},
	}, true
}

var tagPattern = regexp.MustCompile(`task id: ([0-9a-f]{12})`)

// TagSet collects the distinct task ids referenced in session text.
type TagSet struct {
	ids   []string
	index map[string]struct{}
}

// Scan records every tag found in b.
func (s *TagSet) Scan(b []byte) {
	for _, m := range tagPattern.FindAllSubmatch(b, -1) {
		id := string(m[1])
		if _, dup := s.index[id]; dup {
			continue
		}
		if s.index == nil {
			s.index = make(map[string]struct{})
		}
		s.index[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
}

// IDs returns the distinct ids in first-seen order.
func (s *TagSet) IDs() []string { return s.ids }

// Len returns the number of distinct ids.
func (s *TagSet) Len() int { return len(s.ids) }
