// Package pipeline orchestrates the download and process commands:
// source acquisition fan-out, derivative computation, PostGIS loading
// and the end-of-run summary.
package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
)

// Status of one source or processing step.
type Status string

const (
	StatusOK      Status = "OK"
	StatusSkipped Status = "SKIPPED"
	StatusFailed  Status = "FAILED"
)

// StepResult records the outcome of one source download or one
// processing stage.
type StepResult struct {
	Name      string
	Status    Status
	Artifacts []string
	Err       error
	Note      string
}

// Summary accumulates step results across a run. Safe for the
// concurrent source downloads.
type Summary struct {
	RunID   string
	Comuna  string
	Started time.Time

	mu      sync.Mutex
	results []StepResult
	orphans int
}

func NewSummary(comuna string) *Summary {
	return &Summary{
		RunID:   uuid.NewString(),
		Comuna:  comuna,
		Started: time.Now().UTC(),
	}
}

// Add records a step outcome.
func (s *Summary) Add(r StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

// SetOrphans records the census join orphan count.
func (s *Summary) SetOrphans(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orphans = n
}

// Orphans returns the recorded census orphan count.
func (s *Summary) Orphans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orphans
}

// Results returns a copy of the recorded steps in insertion order.
func (s *Summary) Results() []StepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepResult, len(s.results))
	copy(out, s.results)
	return out
}

// Failed counts steps that ended in FAILED.
func (s *Summary) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.results {
		if r.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Artifacts returns every artifact path recorded by successful steps.
func (s *Summary) Artifacts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.results {
		out = append(out, r.Artifacts...)
	}
	return out
}

// Table renders the per-step outcome table printed at the end of a run.
func (s *Summary) Table() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "STEP\tSTATUS\tDETAIL\n")
	for _, r := range s.results {
		detail := r.Note
		switch {
		case r.Err != nil:
			detail = r.Err.Error()
		case detail == "" && len(r.Artifacts) > 0:
			detail = fmt.Sprintf("%d artifact(s)", len(r.Artifacts))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Status, detail)
	}
	if s.orphans > 0 {
		fmt.Fprintf(w, "censo orphans\t-\t%d\n", s.orphans)
	}
	w.Flush() //nolint:errcheck
	return b.String()
}
