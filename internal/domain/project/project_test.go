package project

import (
	"errors"
	"testing"

	"github.com/Strob0t/clawkanban/internal/domain"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"proj1", "proj1"},
		{"my project!", "myproject"},
		{"../../etc", "etc"},
		{"a_b-C9", "a_b-C9"},
		{"Ünïcode", "ncode"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Sanitize(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeEmpty(t *testing.T) {
	for _, in := range []string{"", "...", "/ /"} {
		if _, err := Sanitize(in); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Sanitize(%q): expected ErrValidation, got %v", in, err)
		}
	}
}
