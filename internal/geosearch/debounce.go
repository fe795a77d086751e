package geosearch

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDebounceDelay is the quiet period after the last keystroke before a
// lookup is issued.
const DefaultDebounceDelay = 300 * time.Millisecond

// Result is a delivered suggestion list. Err is ErrLocationNotFound when the
// lookup returned nothing, or the provider error.
type Result struct {
	Seq    uint64
	Query  string
	Places []Place
	Err    error
}

// Debouncer turns a stream of keystrokes into geocoding lookups. Only the
// most recently issued lookup may deliver; older responses are discarded
// regardless of the order in which they arrive.
type Debouncer struct {
	geocoder Geocoder
	delay    time.Duration
	deliver  func(Result)
	logger   *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending uint64 // generation of the armed timer
	issued  uint64 // sequence of the latest issued lookup
	cancel  context.CancelFunc
	closed  bool

	// held while checking freshness and delivering so a stale result can
	// never be delivered after a newer one
	deliverMu sync.Mutex
}

// NewDebouncer creates a debouncer. A non-positive delay uses
// DefaultDebounceDelay.
func NewDebouncer(geocoder Geocoder, delay time.Duration, deliver func(Result), logger *zap.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer{
		geocoder: geocoder,
		delay:    delay,
		deliver:  deliver,
		logger:   logger,
	}
}

// Query records a keystroke. Any armed timer is reset. An empty query
// cancels pending work and immediately delivers an empty suggestion list.
func (d *Debouncer) Query(query string) {
	query = strings.TrimSpace(query)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending++

	if query == "" {
		d.issued++
		seq := d.issued
		d.cancelInFlight()
		d.mu.Unlock()

		d.deliverIfLatest(Result{Seq: seq, Places: []Place{}})
		return
	}

	gen := d.pending
	d.timer = time.AfterFunc(d.delay, func() { d.issue(gen, query) })
	d.mu.Unlock()
}

// Close stops the timer and cancels any in-flight lookup. Nothing is
// delivered afterwards.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.cancelInFlight()
}

func (d *Debouncer) issue(gen uint64, query string) {
	d.mu.Lock()
	if d.closed || gen != d.pending {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.cancelInFlight()
	d.issued++
	seq := d.issued
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.mu.Unlock()

	defer cancel()

	places, err := d.geocoder.Search(ctx, query)
	if err == nil && len(places) == 0 {
		err = ErrLocationNotFound
	}
	if !d.deliverIfLatest(Result{Seq: seq, Query: query, Places: places, Err: err}) {
		d.logger.Debug("Discarding superseded location lookup",
			zap.String("query", query),
			zap.Uint64("seq", seq),
		)
	}
}

func (d *Debouncer) deliverIfLatest(res Result) bool {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	d.mu.Lock()
	latest := !d.closed && res.Seq == d.issued
	d.mu.Unlock()
	if !latest {
		return false
	}
	if d.deliver != nil {
		d.deliver(res)
	}
	return true
}

// cancelInFlight must be called with d.mu held.
func (d *Debouncer) cancelInFlight() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
