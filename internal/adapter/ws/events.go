package ws

import "github.com/Strob0t/clawkanban/internal/domain/task"

// InitEvent is the snapshot sent to a subscriber on connect.
type InitEvent struct {
	Projects []string    `json:"projects"`
	Tasks    []task.Task `json:"tasks"`
}
