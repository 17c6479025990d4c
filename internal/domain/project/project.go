// Package project defines the Project namespace of the board.
package project

import (
	"fmt"
	"strings"

	"github.com/Strob0t/clawkanban/internal/domain"
)

// Project is a named directory of task files.
type Project struct {
	Name string `json:"name"`
}

// CreateRequest holds the fields needed to create a project.
type CreateRequest struct {
	Name string `json:"name"`
}

// Sanitize strips every character outside [A-Za-z0-9_-]. An empty result is a
// validation error.
func Sanitize(name string) (string, error) {
	safe := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-' {
			return r
		}
		return -1
	}, name)
	if safe == "" {
		return "", fmt.Errorf("invalid project name %q: %w", name, domain.ErrValidation)
	}
	return safe, nil
}
