package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// defaultRefreshTimeout bounds one scheduled refresh.
const defaultRefreshTimeout = 30 * time.Second

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Refresher refreshes a Cache on a cron schedule.
//
// Schedules use the standard five cron fields or a descriptor such as
// "@hourly" or "@every 6h". A refresh still running when the next one is
// due is skipped.
type Refresher struct {
	cache   *Cache
	cron    *cron.Cron
	timeout time.Duration
	logger  Logger

	mu      sync.Mutex
	started bool
}

// NewRefresher validates schedule and prepares a Refresher for cache.
//
// Returns:
//   - *Refresher: Not yet started
//   - error: ErrInvalidSchedule if schedule does not parse
func NewRefresher(cache *Cache, schedule string, logger Logger) (*Refresher, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, schedule, err)
	}

	r := &Refresher{
		cache:   cache,
		timeout: defaultRefreshTimeout,
		logger:  logger,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
	if _, err := r.cron.AddFunc(schedule, r.refresh); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, schedule, err)
	}
	return r, nil
}

// refresh runs one scheduled refresh. Failures are logged; the previous
// catalog stays in place.
func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.cache.Refresh(ctx); err != nil {
		r.logger.Warn("catalog refresh failed", "error", err, "channels", r.cache.Len())
		return
	}
	r.logger.Info("catalog refreshed", "channels", r.cache.Len())
}

// Start begins the schedule. Calling Start twice has no effect.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish or
// for ctx to expire.
func (r *Refresher) Stop(ctx context.Context) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.mu.Unlock()

	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}
