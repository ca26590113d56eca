package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/xavierca1/prospect-agent/internal/entity"
)

// StageRunner is one independently invocable pipeline stage.
type StageRunner interface {
	Stage() entity.Stage
	Execute(ctx context.Context, in RunInput) (*Summary, error)
}

// Pipeline sequences the stage runners. Runs are serialized so the HTTP API
// and the CLI never execute two stages at once in one process.
type Pipeline struct {
	mu      sync.Mutex
	runners map[entity.Stage]StageRunner
}

func NewPipeline(runners ...StageRunner) *Pipeline {
	p := &Pipeline{runners: make(map[entity.Stage]StageRunner, len(runners))}
	for _, r := range runners {
		if r != nil {
			p.runners[r.Stage()] = r
		}
	}
	return p
}

func (p *Pipeline) Has(stage entity.Stage) bool {
	_, ok := p.runners[stage]
	return ok
}

func (p *Pipeline) RunStage(ctx context.Context, stage entity.Stage, in RunInput) (*Summary, error) {
	runner, ok := p.runners[stage]
	if !ok {
		return nil, &DomainError{Code: "unknown_stage", Message: fmt.Sprintf("stage %q is not configured", stage)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	log.Printf("[pipeline] ▶️ %s", stage)
	summary, err := runner.Execute(ctx, in)
	if summary != nil {
		summary.Log()
	}
	return summary, err
}

// RunAll runs every configured stage in pipeline order and stops at the first
// stage that aborts. in applies to every stage.
func (p *Pipeline) RunAll(ctx context.Context, in RunInput) ([]*Summary, error) {
	var summaries []*Summary
	for _, stage := range entity.Stages() {
		if !p.Has(stage) {
			continue
		}
		summary, err := p.RunStage(ctx, stage, in)
		if summary != nil {
			summaries = append(summaries, summary)
		}
		if err != nil {
			return summaries, fmt.Errorf("%s: %w", stage, err)
		}
	}
	return summaries, nil
}
