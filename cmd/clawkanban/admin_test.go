package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Strob0t/clawkanban/internal/config"
	"github.com/Strob0t/clawkanban/internal/domain/cost"
)

func TestPrintCostsOrdersByCost(t *testing.T) {
	var buf bytes.Buffer
	costs := map[string]cost.TaskCost{
		"aaaaaaaaaaaa": {Cost: 0.5, InputTokens: 10, OutputTokens: 1, Sessions: 1},
		"bbbbbbbbbbbb": {Cost: 2.25, InputTokens: 20, OutputTokens: 2, Sessions: 2},
	}
	titles := map[string]string{"bbbbbbbbbbbb": "RedFoxParis ship it"}

	if err := printCosts(&buf, costs, titles); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, 2 rows and total, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[1], "bbbbbbbbbbbb") || !strings.Contains(lines[1], "RedFoxParis ship it") {
		t.Errorf("most expensive task should come first: %q", lines[1])
	}
	if !strings.Contains(lines[3], "$2.75") {
		t.Errorf("total row = %q, want $2.75", lines[3])
	}
}

func TestPrintCostsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := printCosts(&buf, nil, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No tagged sessions") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestPricingOverrides(t *testing.T) {
	p := pricing(config.Cost{Pricing: map[string]config.Rates{
		"local-model": {Input: 1, Output: 2, CacheRead: 0.1, CacheWrite: 1.25},
	}})
	got := p.Lookup("local-model")
	want := cost.Rates{Input: 1, Output: 2, CacheRead: 0.1, CacheWrite: 1.25}
	if got != want {
		t.Errorf("Lookup = %+v, want %+v", got, want)
	}
}

func TestRunAdminUnknownCommand(t *testing.T) {
	if err := runAdmin([]string{"frobnicate"}); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestRunAdminBackfill(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CLAWKANBAN_CONFIG", dir+"/none.yaml")
	if err := runAdmin([]string{"backfill", "--data-dir", dir, "--sessions-dir", dir}); err != nil {
		t.Fatal(err)
	}
}
