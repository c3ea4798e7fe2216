package reset

import (
	"context"
	"log"
	"time"
)

// Purger is the part of Store the janitor needs.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Janitor runs PurgeExpired on a fixed interval. It complements, and does not
// replace, the opportunistic purge done by Validate.
type Janitor struct {
	purger   Purger
	interval time.Duration
	done     chan struct{}
}

func NewJanitor(purger Purger, interval time.Duration) *Janitor {
	return &Janitor{purger: purger, interval: interval, done: make(chan struct{})}
}

// Run blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := j.purger.PurgeExpired(ctx)
			if err != nil {
				log.Printf("⚠️  Reset token purge failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("🧹 Cleaned up %d expired reset tokens", n)
			}
		}
	}
}

// Start runs the janitor in its own goroutine.
func (j *Janitor) Start(ctx context.Context) {
	go j.Run(ctx)
}

// Done is closed once Run has returned.
func (j *Janitor) Done() <-chan struct{} {
	return j.done
}
