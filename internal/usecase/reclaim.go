package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/xavierca1/prospect-agent/internal/config"
	"github.com/xavierca1/prospect-agent/internal/entity"
)

// ReclaimUseCase returns contacts whose dispatch lease expired to ready.
type ReclaimUseCase struct {
	Contacts entity.ContactRepositoryInterface
	Now      func() time.Time
}

func NewReclaimUseCase(contacts entity.ContactRepositoryInterface) *ReclaimUseCase {
	return &ReclaimUseCase{
		Contacts: contacts,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ReclaimUseCase) Stage() entity.Stage { return entity.StageReclaim }

func (uc *ReclaimUseCase) Reclaim(ctx context.Context) (int, error) {
	n, err := uc.Contacts.ReclaimExpired(ctx, uc.Now())
	if err != nil {
		return 0, fmt.Errorf("reclaim expired leases: %w", err)
	}
	if n > 0 {
		statusTransitions.WithLabelValues(string(entity.StageReclaim), string(entity.StatusProcessing), string(entity.StatusReady)).Add(float64(n))
	}
	return n, nil
}

func (uc *ReclaimUseCase) Execute(ctx context.Context, _ RunInput) (*Summary, error) {
	summary := newSummary(entity.StageReclaim, uuid.NewString(), config.Unlimited)
	defer summary.finish()

	n, err := uc.Reclaim(ctx)
	if err != nil {
		summary.Aborted = err.Error()
		return summary, err
	}
	summary.Selected = n
	summary.Processed = n
	log.Printf("[reclaim] %d expired lease(s) returned to ready", n)
	return summary, nil
}
