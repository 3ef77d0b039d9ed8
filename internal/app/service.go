// Package service implements the dashboard poller: it refreshes the display
// regions from the upstream services on a fixed period and runs the remote
// consistency check on demand.
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/flightboard/internal/domain/banner"
	"github.com/okian/flightboard/internal/domain/display"
	"github.com/okian/flightboard/internal/domain/endpoint"
	"github.com/okian/flightboard/pkg/logger"
	"github.com/okian/flightboard/pkg/metrics"
)

// ErrStopped is returned for work submitted after Stop.
var ErrStopped = errors.New("service stopped")

// Fetcher performs one upstream call and returns the compact JSON payload.
type Fetcher interface {
	Fetch(ctx context.Context, e endpoint.Endpoint) ([]byte, error)
}

// Service is the dashboard poller/renderer.
type Service struct {
	endpoints *endpoint.Set
	fetcher   Fetcher
	board     *display.Board
	banners   *banner.Notifier

	// Configuration
	interval   time.Duration
	bannerTTL  time.Duration
	timeFormat string
	now        func() time.Time

	// State
	mu       sync.Mutex
	started  bool
	stopped  bool
	runCtx   context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	inflight sync.WaitGroup

	// Counters
	pollCycles          atomic.Int64
	fetchOK             atomic.Int64
	fetchFailed         atomic.Int64
	consistencyRuns     atomic.Int64
	consistencyFailures atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRefreshInterval sets the poll period.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBannerTTL sets how long error banners stay visible.
func WithBannerTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.bannerTTL = d
		}
	}
}

// WithTimeFormat sets the layout of the last-updated label and banner times.
func WithTimeFormat(layout string) Option {
	return func(s *Service) {
		if layout != "" {
			s.timeFormat = layout
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBoard renders into an existing board instead of a fresh one.
func WithBoard(b *display.Board) Option {
	return func(s *Service) {
		if b != nil {
			s.board = b
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service polling the endpoints in set through fetcher.
func New(set *endpoint.Set, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		endpoints:  set,
		fetcher:    fetcher,
		interval:   4 * time.Second,
		bannerTTL:  7 * time.Second,
		timeFormat: "1/2/2006, 3:04:05 PM",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	if s.board == nil {
		s.board = display.NewBoard(endpoint.Regions...)
	}
	s.banners = banner.NewNotifier(s.board,
		banner.WithTTL(s.bannerTTL),
		banner.WithClock(s.now),
		banner.WithTimeFormat(s.timeFormat),
		banner.WithLogger(s.logger.Named("banner")),
	)
	return s
}

// Board returns the display context the service renders into.
func (s *Service) Board() *display.Board {
	return s.board
}

// Start performs one refresh immediately and then one every refresh
// interval until ctx is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.loopDone = make(chan struct{})
	s.started = true
	runCtx := s.runCtx
	s.mu.Unlock()

	s.logger.Info(ctx, "dashboard poller started",
		logger.Duration("interval", s.interval),
		logger.Duration("bannerTTL", s.bannerTTL),
	)

	s.RefreshAll(runCtx)
	go s.run(runCtx)
	return nil
}

func (s *Service) run(ctx context.Context) {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RefreshAll(ctx)
		}
	}
}

// Stop ends the poll loop, waits for in-flight requests and cancels pending
// banner removals. It is safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel, loopDone := s.cancel, s.loopDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-loopDone
	}
	s.inflight.Wait()
	s.banners.Stop()
	s.logger.Info(context.Background(), "dashboard poller stopped")
}

// RefreshAll runs one poll cycle: it stamps the last-updated label and
// fetches the four read endpoints concurrently, each result landing in its
// region independently of the others. It does not wait for the requests;
// the returned channel is closed once all of them have settled.
func (s *Service) RefreshAll(ctx context.Context) <-chan struct{} {
	s.board.SetLastUpdated(s.now().Format(s.timeFormat))
	s.pollCycles.Add(1)
	metrics.RecordPollCycle()
	s.logger.Debug(ctx, "poll cycle")

	done := make(chan struct{})
	var wg sync.WaitGroup
	for _, name := range endpoint.Polled {
		e := s.endpoints.MustGet(name)
		wg.Add(1)
		if !s.spawn(func() {
			defer wg.Done()
			s.fetchInto(ctx, e)
		}) {
			wg.Done()
		}
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// RunConsistencyCheck asks the consistency service to recompute, then reads
// and displays its latest results. The update response itself is never
// displayed. Failures are shown as banners and returned.
func (s *Service) RunConsistencyCheck(ctx context.Context) error {
	s.consistencyRuns.Add(1)
	if err := s.runConsistencyCheck(ctx); err != nil {
		s.consistencyFailures.Add(1)
		metrics.RecordConsistencyCheck(metrics.OutcomeFailure)
		s.showFailure(ctx, err)
		return err
	}
	metrics.RecordConsistencyCheck(metrics.OutcomeSuccess)
	return nil
}

func (s *Service) runConsistencyCheck(ctx context.Context) error {
	update := s.endpoints.MustGet(endpoint.ConsistencyUpdate)
	result, err := s.fetcher.Fetch(ctx, update)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "consistency check update done", logger.String("result", string(result)))

	checks := s.endpoints.MustGet(endpoint.ConsistencyChecks)
	body, err := s.fetcher.Fetch(ctx, checks)
	if err != nil {
		return err
	}
	s.render(checks.Region, body)
	return nil
}

// TriggerConsistencyCheck runs the consistency check in the background on
// the service's own context, so it outlives the caller's request.
func (s *Service) TriggerConsistencyCheck() error {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.spawn(func() { _ = s.RunConsistencyCheck(ctx) }) {
		return ErrStopped
	}
	return nil
}

// ShowError displays message as a transient banner.
func (s *Service) ShowError(ctx context.Context, message string) display.Banner {
	return s.banners.Show(ctx, message)
}

// Wait blocks until every request started so far has settled.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) spawn(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		fn()
	}()
	return true
}

func (s *Service) fetchInto(ctx context.Context, e endpoint.Endpoint) {
	body, err := s.fetcher.Fetch(ctx, e)
	if err != nil {
		s.fetchFailed.Add(1)
		s.showFailure(ctx, err)
		return
	}
	s.fetchOK.Add(1)
	s.render(e.Region, body)
}

func (s *Service) render(region string, body []byte) {
	if !s.board.SetRegion(region, string(body)) {
		s.logger.Warn(context.Background(), "payload for unknown region dropped", logger.String("region", region))
		return
	}
	metrics.UpdateRegionPayloadBytes(region, len(body))
}

// showFailure turns err into a banner, except for requests aborted because
// the service is shutting down.
func (s *Service) showFailure(ctx context.Context, err error) {
	if ctx.Err() != nil {
		s.logger.Debug(ctx, "request aborted by shutdown", logger.Error(err))
		return
	}
	s.ShowError(ctx, err.Error())
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	started, stopped := s.started, s.stopped
	s.mu.Unlock()

	return map[string]interface{}{
		"started":             started && !stopped,
		"refreshInterval":     s.interval.String(),
		"bannerTTL":           s.bannerTTL.String(),
		"pollCycles":          s.pollCycles.Load(),
		"fetchSucceeded":      s.fetchOK.Load(),
		"fetchFailed":         s.fetchFailed.Load(),
		"consistencyRuns":     s.consistencyRuns.Load(),
		"consistencyFailures": s.consistencyFailures.Load(),
		"bannersActive":       s.banners.Active(),
		"subscribers":         s.board.Subscribers(),
		"lastUpdated":         s.board.LastUpdated(),
	}
}
