package jobs

import (
	"context"
	"log"
	"time"
)

// Sweeper drops expired entries and reports how many it removed.
type Sweeper interface {
	Sweep() int
}

func StartCacheSweepJob(ctx context.Context, interval time.Duration, cache Sweeper) {
	if cache == nil {
		log.Printf("cache sweep job disabled: no in-process cache")
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := cache.Sweep(); removed > 0 {
					log.Printf("cache sweep job removed %d expired profiles", removed)
				}
			}
		}
	}()
}
