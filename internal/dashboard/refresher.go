package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Refresher refreshes the state on a fixed interval in the background.
type Refresher struct {
	state    *State
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRefresher starts a background refresher. Returns nil when interval is
// 0 (disabled); requests still refresh on access.
func NewRefresher(state *State, interval time.Duration) *Refresher {
	if interval <= 0 {
		return nil
	}
	r := &Refresher{
		state:    state,
		interval: interval,
		done:     make(chan struct{}),
	}
	r.wg.Add(1)
	go r.tickLoop()
	return r
}

func (r *Refresher) tickLoop() {
	defer r.wg.Done()

	// Warm the snapshot so the first request does not pay for the fetch.
	r.refresh()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.refresh()
		case <-r.done:
			return
		}
	}
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-r.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := r.state.Refresh(ctx); err != nil {
		r.state.logger.Warn("background refresh failed", zap.Error(err))
	}
}

// Stop signals the refresher to stop and waits for it to finish.
func (r *Refresher) Stop() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}
