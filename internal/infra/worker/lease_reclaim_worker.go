package worker

import (
	"context"
	"log"
	"time"
)

type Reclaimer interface {
	Reclaim(ctx context.Context) (int, error)
}

// LeaseReclaimWorker periodically returns contacts with an expired dispatch
// lease to ready.
type LeaseReclaimWorker struct {
	reclaimer    Reclaimer
	tickInterval time.Duration
}

func NewLeaseReclaimWorker(r Reclaimer, every time.Duration) *LeaseReclaimWorker {
	if every <= 0 {
		every = time.Minute
	}
	return &LeaseReclaimWorker{reclaimer: r, tickInterval: every}
}

func (w *LeaseReclaimWorker) Start(ctx context.Context) {
	log.Printf("🕒 Lease reclaim worker started (every %s)", w.tickInterval)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.reclaim(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("⚠️ Lease reclaim worker stopped")
			return
		case <-ticker.C:
			w.reclaim(ctx)
		}
	}
}

func (w *LeaseReclaimWorker) reclaim(ctx context.Context) {
	n, err := w.reclaimer.Reclaim(ctx)
	if err != nil {
		log.Printf("❌ [reclaim] %v", err)
		return
	}
	if n > 0 {
		log.Printf("✅ [reclaim] %d contact(s) returned to ready", n)
	}
}
