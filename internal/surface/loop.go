package surface

import (
	"context"
	"sync"
	"time"

	"github.com/ivlev/vidcanvas/internal/clock"
)

// RenderLoop re-renders s every interval until ctx is done. It returns
// after the loop has stopped.
func RenderLoop(ctx context.Context, s Surface, sched clock.Scheduler, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second / 60
	}
	var (
		mu      sync.Mutex
		pending clock.Handle
	)
	var step func()
	step = func() {
		if ctx.Err() != nil {
			return
		}
		s.RenderOnce()
		mu.Lock()
		pending = sched.Schedule(interval, step)
		mu.Unlock()
	}
	mu.Lock()
	pending = sched.Schedule(0, step)
	mu.Unlock()

	<-ctx.Done()
	mu.Lock()
	if pending != nil {
		pending.Cancel()
	}
	mu.Unlock()
}
