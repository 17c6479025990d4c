// Package fswatch defines the port for raw filesystem change notifications.
package fswatch

import "strings"

// Op is a set of filesystem operations.
type Op uint32

const (
	Create Op = 1 << iota
	Write
	Remove
	Rename
	Chmod
)

// Has reports whether o contains other.
func (o Op) Has(other Op) bool { return o&other != 0 }

func (o Op) String() string {
	var parts []string
	for _, n := range []struct {
		op   Op
		name string
	}{{Create, "CREATE"}, {Write, "WRITE"}, {Remove, "REMOVE"}, {Rename, "RENAME"}, {Chmod, "CHMOD"}} {
		if o.Has(n.op) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Event is one raw notification for a path.
type Event struct {
	Path string
	Op   Op
}

// Watcher is a cancellable subscription to changes in a set of directories.
// Closing it closes both channels.
type Watcher interface {
	Add(dir string) error
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}
