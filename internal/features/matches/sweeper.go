package matches

import (
	"context"
	"time"

	"github.com/xyz-asif/blindmatch/internal/pkg/logger"
)

// Sweeper periodically runs Service.Sweep until its context is cancelled
type Sweeper struct {
	service  *Service
	interval time.Duration
	done     chan struct{}
}

func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{service: service, interval: interval, done: make(chan struct{})}
}

// Start runs the sweep loop in the background
func (sw *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(sw.done)

		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sw.runOnce(ctx)
			}
		}
	}()
}

// Done is closed once the loop has exited
func (sw *Sweeper) Done() <-chan struct{} {
	return sw.done
}

func (sw *Sweeper) runOnce(ctx context.Context) {
	expired, ended, err := sw.service.Sweep(ctx)
	if err != nil {
		logger.Error("match sweep failed: %v", err)
	}
	if expired > 0 || ended > 0 {
		logger.Info("match sweep: %d expired, %d secret chats ended", expired, ended)
	}
}
