package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is the time between ticks.
const DefaultPollInterval = 5 * time.Second

// Refresher is the work done on each tick. *Controller implements it.
type Refresher interface {
	RefreshGreeting()
	RefreshStats(ctx context.Context) error
	RefreshTasks(ctx context.Context) error
	RefreshLogs(ctx context.Context) error
}

// Poller fires the stats, tasks and logs refreshes on a fixed interval.
// Ticks are independent: a slow refresh from one tick is not cancelled by
// the next, both complete and the last writer wins.
type Poller struct {
	r        Refresher
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	loopDone chan struct{}
	inflight sync.WaitGroup
}

// NewPoller creates a stopped poller.
func NewPoller(r Refresher, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{r: r, interval: interval, logger: logger}
}

// Start refreshes everything immediately and then on every tick until Stop
// is called or ctx ends. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.loopDone = make(chan struct{})

	p.r.RefreshGreeting()
	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	go func(done chan struct{}) {
		defer close(done)
		defer ticker.Stop()
		p.logger.Info("Poller started", "interval", p.interval)

		for {
			select {
			case <-ticker.C:
				p.r.RefreshGreeting()
				p.tick(ctx)
			case <-ctx.Done():
				p.logger.Info("Poller shutting down", "reason", ctx.Err())
				return
			}
		}
	}(p.loopDone)
}

// Stop cancels in-flight refreshes and waits for them to return.
// Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.loopDone
	p.cancel, p.loopDone = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.inflight.Wait()
}

// Running reports whether the poller has been started and not stopped.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// RefreshNow runs the three refreshes concurrently and waits for them.
func (p *Poller) RefreshNow(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, fn := range p.refreshers() {
		wg.Add(1)
		go func(fn func(context.Context) error) {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(fn)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// tick fires each refresh on its own goroutine without waiting.
func (p *Poller) tick(ctx context.Context) {
	for _, fn := range p.refreshers() {
		p.inflight.Add(1)
		go func(fn func(context.Context) error) {
			defer p.inflight.Done()
			// Errors are already logged by the refresher.
			_ = fn(ctx)
		}(fn)
	}
}

func (p *Poller) refreshers() []func(context.Context) error {
	return []func(context.Context) error{p.r.RefreshStats, p.r.RefreshTasks, p.r.RefreshLogs}
}
