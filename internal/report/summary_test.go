package report

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSummary_Render_SingleShot(t *testing.T) {
	s := NewSummary()
	s.SetCategories([]CategoryResult{
		{ID: "unit-node", Files: 2},
		{ID: "unit-browser", Skipped: true},
		{ID: "spec", Files: 3, ExitCode: 1},
	})
	s.RecordCycle(2 * time.Second)

	var buf bytes.Buffer
	s.Render(&buf)
	out := buf.String()

	if !strings.Contains(out, "unit-node") || !strings.Contains(out, "2 files") {
		t.Errorf("missing passing category: %s", out)
	}
	if !strings.Contains(out, "no files") {
		t.Errorf("skipped category should note the empty file list: %s", out)
	}
	if !strings.Contains(out, "exit 1") {
		t.Errorf("failed category should show the exit code: %s", out)
	}
	if strings.Contains(out, "Cycles:") {
		t.Errorf("single cycle should not print cycle stats: %s", out)
	}
}

func TestSummary_Render_WatchCycles(t *testing.T) {
	s := NewSummary()
	s.SetCategories([]CategoryResult{{ID: "spec", Files: 1}})

	for i := 0; i < 10; i++ {
		s.RecordCycle(time.Duration(i+1) * 100 * time.Millisecond)
	}

	if s.Cycles() != 10 {
		t.Fatalf("cycles = %d, want 10", s.Cycles())
	}

	var buf bytes.Buffer
	s.Render(&buf)
	out := buf.String()

	if !strings.Contains(out, "Cycles: 10") {
		t.Errorf("expected cycle count: %s", out)
	}
	if !strings.Contains(out, "p50") || !strings.Contains(out, "p95") {
		t.Errorf("expected duration percentiles: %s", out)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{90 * time.Second, "00:01:30"},
		{3 * time.Hour, "03:00:00"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
