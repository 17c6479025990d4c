package messagequeue

import "encoding/json"

// BoardEvent is the payload mirrored for every live-channel event. It has the
// same {event, data} shape WebSocket subscribers receive.
type BoardEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
