// Package report renders the end-of-run summary.
//
// The raw test output passes through the harness untouched on stdout;
// the summary goes to stderr alongside the logs.
package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/influxdata/tdigest"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// CategoryResult is the outcome of one category in the latest cycle.
type CategoryResult struct {
	ID       string
	Files    int
	Skipped  bool
	ExitCode int
}

// Summary accumulates results across run cycles. In single-shot mode
// there is exactly one cycle; watch mode keeps adding to the duration
// distribution.
type Summary struct {
	mu         sync.Mutex
	categories []CategoryResult
	durations  *tdigest.TDigest
	cycles     int
	start      time.Time
}

// NewSummary creates an empty summary.
func NewSummary() *Summary {
	return &Summary{
		durations: tdigest.NewWithCompression(100),
		start:     time.Now(),
	}
}

// SetCategories replaces the per-category results for the latest cycle.
func (s *Summary) SetCategories(results []CategoryResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = results
}

// RecordCycle adds one completed cycle's duration.
func (s *Summary) RecordCycle(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
	s.durations.Add(d.Seconds(), 1)
}

// Passed reports whether every category in the latest cycle either
// passed or was skipped.
func (s *Summary) Passed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if !c.Skipped && c.ExitCode != 0 {
			return false
		}
	}
	return true
}

// Cycles returns the number of completed cycles.
func (s *Summary) Cycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

// Render writes the human-readable summary.
func (s *Summary) Render(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Run Summary"))
	fmt.Fprintf(w, "  Elapsed: %s\n", formatDuration(time.Since(s.start)))

	for _, c := range s.categories {
		switch {
		case c.Skipped:
			fmt.Fprintf(w, "  %s %s (no files)\n", skipStyle.Render("-"), c.ID)
		case c.ExitCode == 0:
			fmt.Fprintf(w, "  %s %s (%d files)\n", passStyle.Render("✓"), c.ID, c.Files)
		default:
			fmt.Fprintf(w, "  %s %s (%d files, exit %d)\n", failStyle.Render("✗"), c.ID, c.Files, c.ExitCode)
		}
	}

	if s.cycles > 1 {
		fmt.Fprintf(w, "  Cycles: %d\n", s.cycles)
		fmt.Fprintf(w, "  Cycle duration: p50 %.2fs, p95 %.2fs, p99 %.2fs\n",
			s.durations.Quantile(0.50),
			s.durations.Quantile(0.95),
			s.durations.Quantile(0.99),
		)
	}
	fmt.Fprintln(w)
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
