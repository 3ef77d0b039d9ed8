// Package banner manages transient error banners: each one is prepended to
// a sink and removed again once its TTL elapses.
package banner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/flightboard/internal/domain/display"
	"github.com/okian/flightboard/pkg/logger"
	"github.com/okian/flightboard/pkg/metrics"
)

const (
	defaultTTL        = 7 * time.Second
	defaultTimeFormat = "1/2/2006, 3:04:05 PM"
	idSuffixLen       = 8
)

// Sink receives banners. RemoveBanner must be a no-op for unknown ids.
type Sink interface {
	PrependBanner(b display.Banner)
	RemoveBanner(id string) bool
}

// Notifier creates banners and schedules their removal.
type Notifier struct {
	sink       Sink
	ttl        time.Duration
	now        func() time.Time
	timeFormat string
	logger     logger.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithTTL sets how long a banner stays before it is removed.
func WithTTL(ttl time.Duration) Option {
	return func(n *Notifier) {
		if ttl > 0 {
			n.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		if now != nil {
			n.now = now
		}
	}
}

// WithTimeFormat sets the layout used for the banner's When field.
func WithTimeFormat(layout string) Option {
	return func(n *Notifier) {
		if layout != "" {
			n.timeFormat = layout
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewNotifier creates a notifier writing into sink.
func NewNotifier(sink Sink, opts ...Option) *Notifier {
	n := &Notifier{
		sink:       sink,
		ttl:        defaultTTL,
		now:        time.Now,
		timeFormat: defaultTimeFormat,
		timers:     make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = logger.Nop()
	}
	return n
}

// Show creates a banner for message, puts it at the top of the sink and
// schedules its removal after the TTL. After Stop, Show still returns the
// entry but no longer touches the sink.
func (n *Notifier) Show(ctx context.Context, message string) display.Banner {
	created := n.now()
	b := display.Banner{
		ID:        newID(created),
		Message:   message,
		CreatedAt: created,
		When:      created.Format(n.timeFormat),
	}

	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return b
	}
	n.sink.PrependBanner(b)
	n.timers[b.ID] = time.AfterFunc(n.ttl, func() { n.expire(b.ID) })
	active := len(n.timers)
	n.mu.Unlock()

	metrics.RecordBannerShown()
	metrics.UpdateBannersActive(active)
	n.logger.Warn(ctx, "error banner shown", logger.String("id", b.ID), logger.String("message", message))
	return b
}

func (n *Notifier) expire(id string) {
	n.mu.Lock()
	delete(n.timers, id)
	active := len(n.timers)
	n.mu.Unlock()

	// The region may already be gone; RemoveBanner tolerates that.
	n.sink.RemoveBanner(id)
	metrics.UpdateBannersActive(active)
}

// Active returns the number of banners waiting for removal.
func (n *Notifier) Active() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.timers)
}

// Stop cancels all pending removals. Banners already shown stay in the sink.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped = true
	for id, t := range n.timers {
		t.Stop()
		delete(n.timers, id)
	}
	metrics.UpdateBannersActive(0)
}

// newID derives the banner id from its creation time. The random suffix
// keeps ids unique when two failures land in the same millisecond.
func newID(t time.Time) string {
	return fmt.Sprintf("error-%d-%s", t.UnixMilli(), uuid.NewString()[:idSuffixLen])
}
