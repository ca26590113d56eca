package usecase

import (
	"log"
	"sort"
	"time"

	"github.com/xavierca1/prospect-agent/internal/config"
	"github.com/xavierca1/prospect-agent/internal/entity"
)

// RunInput overrides a stage's configured behaviour for one run.
type RunInput struct {
	// Limit replaces the configured per-run contact limit when set.
	Limit *config.Limit `json:"limit,omitempty"`
}

func (in RunInput) limit(configured config.Limit) config.Limit {
	if in.Limit != nil {
		return *in.Limit
	}
	return configured
}

// Summary is the tally every stage run produces, even when it aborts.
type Summary struct {
	Stage      entity.Stage   `json:"stage"`
	RunID      string         `json:"run_id"`
	Limit      string         `json:"limit"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Selected   int            `json:"selected"`
	Processed  int            `json:"processed"`
	Rejected   int            `json:"rejected"`
	RolledBack int            `json:"rolled_back"`
	Skipped    int            `json:"skipped"`
	Errors     int            `json:"errors"`
	Reasons    map[string]int `json:"reasons,omitempty"`
	Aborted    string         `json:"aborted,omitempty"`
}

func newSummary(stage entity.Stage, runID string, limit config.Limit) *Summary {
	return &Summary{
		Stage:     stage,
		RunID:     runID,
		Limit:     limit.String(),
		StartedAt: time.Now().UTC(),
		Reasons:   map[string]int{},
	}
}

func (s *Summary) reason(r string) {
	s.Reasons[r]++
}

func (s *Summary) finish() *Summary {
	s.FinishedAt = time.Now().UTC()
	stageRuns.WithLabelValues(string(s.Stage)).Inc()
	return s
}

// Log prints the end-of-run recap.
func (s *Summary) Log() {
	log.Printf("[%s] --- recap ---", s.Stage)
	log.Printf("[%s] selected: %d (limit: %s)", s.Stage, s.Selected, s.Limit)
	log.Printf("[%s] processed: %d | rejected: %d | rolled back: %d | skipped: %d | errors: %d",
		s.Stage, s.Processed, s.Rejected, s.RolledBack, s.Skipped, s.Errors)

	keys := make([]string, 0, len(s.Reasons))
	for k := range s.Reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		log.Printf("[%s]   %s: %d", s.Stage, k, s.Reasons[k])
	}
	if s.Aborted != "" {
		log.Printf("[%s] ❌ aborted: %s", s.Stage, s.Aborted)
	}
}

// zeroLimit reports a run asked to process no contact at all; store queries
// treat 0 as unlimited so callers must stop before selecting.
func zeroLimit(stage entity.Stage, limit config.Limit) bool {
	if limit == 0 {
		log.Printf("[%s] limit is 0, nothing to do", stage)
		return true
	}
	return false
}
