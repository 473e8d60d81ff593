package exam

import (
	"context"
	"log"
	"time"
)

// Sweeper finalizes overdue attempts on a fixed interval. The client's
// countdown is only a convenience; a closed tab never submits, so the
// server re-derives every deadline from started_at + duration and closes
// what the client left behind.
type Sweeper struct {
	store    Store
	interval time.Duration
}

func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{store: store, interval: interval}
}

// Run blocks until ctx is done. Call it in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.store.SweepOverdue(ctx, time.Now().Unix())
			if err != nil {
				log.Printf("sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweep: closed %d overdue attempt(s)", n)
			}
		}
	}
}
