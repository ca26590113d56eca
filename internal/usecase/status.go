package usecase

import (
	"context"
	"log"
	"time"

	"github.com/xavierca1/prospect-agent/internal/entity"
	"github.com/xavierca1/prospect-agent/internal/infra/queue"
)

// moveContact commits a compare-and-set status change from c's current status
// and publishes the resulting event. A publish failure is logged, never returned.
func moveContact(
	ctx context.Context,
	contacts entity.ContactRepositoryInterface,
	events StatusPublisher,
	runID string,
	c *entity.Contact,
	stage entity.Stage,
	to entity.Status,
	patch entity.ContactPatch,
) (*entity.Contact, error) {
	from := c.Status
	updated, err := contacts.UpdateStatus(ctx, entity.StatusUpdate{
		ID:    c.ID,
		Stage: stage,
		From:  from,
		To:    to,
		Patch: patch,
	})
	if err != nil {
		return nil, err
	}
	publishStatus(ctx, events, runID, stage, from, updated)
	return updated, nil
}

func publishStatus(ctx context.Context, events StatusPublisher, runID string, stage entity.Stage, from entity.Status, c *entity.Contact) {
	statusTransitions.WithLabelValues(string(stage), string(from), string(c.Status)).Inc()
	if events == nil {
		return
	}
	event := queue.StatusEvent{
		ContactID: c.ID,
		Email:     c.Email,
		Stage:     string(stage),
		From:      string(from),
		To:        string(c.Status),
		RunID:     runID,
		At:        time.Now().UTC(),
	}
	if c.Note != nil {
		event.Note = *c.Note
	}
	if err := events.PublishStatusChange(ctx, event); err != nil {
		log.Printf("[events] ⚠️ status event for %s not published: %v", c.Email, err)
	}
}

func strPtr(s string) *string { return &s }
