package messagequeue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate checks that data is a BoardEvent whose event name matches the
// last segment of subject.
func Validate(subject string, data []byte) (BoardEvent, error) {
	var ev BoardEvent
	if !json.Valid(data) {
		return ev, fmt.Errorf("invalid JSON on subject %s", subject)
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	if ev.Event == "" {
		return ev, fmt.Errorf("schema validation failed for %s: missing event", subject)
	}
	i := strings.LastIndexByte(subject, '.')
	if i < 0 || subject[i+1:] != ev.Event {
		return ev, fmt.Errorf("event %q does not match subject %s", ev.Event, subject)
	}
	return ev, nil
}
