// Package poller schedules recurring active-calls fetches and owns the retry
// policy around them.
//
// Ordering guarantee: cycles are strictly sequential. A new cycle never starts
// while the previous cycle's request is pending; the previous request is
// canceled first, and a late-arriving result from a superseded cycle is
// discarded (generation counter), so stale data can never overwrite newer
// state.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pbx-console/internal/livecalls"
	"pbx-console/internal/telephony"
)

// FetchFunc retrieves the current unfiltered leg list. In production this is
// the telephony client's FetchActiveCalls; tests inject scripted functions.
type FetchFunc func(ctx context.Context) ([]livecalls.Leg, error)

type Status string

const (
	// StatusActive: polling on the regular interval (or in backoff).
	StatusActive Status = "active"
	// StatusPaused: the transient-failure retry budget is exhausted. No
	// automatic requests are issued until Resume or a successful Refresh.
	StatusPaused Status = "paused"
	// StatusFailed: a non-transient failure (authentication). Same explicit
	// recovery as Paused.
	StatusFailed Status = "failed"
)

// Snapshot is the poller's externally visible state.
type Snapshot struct {
	Legs        []livecalls.Leg
	Status      Status
	LastError   error
	Retries     int
	LastSuccess time.Time
	UpdatedAt   time.Time
}

type Options struct {
	// Interval between successful cycles. Defaults to 5s.
	Interval time.Duration
	// BackoffBase and BackoffCap bound the transient-failure delay:
	// min(base * 2^retries, cap). Defaults 1s / 30s.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// MaxRetries is the consecutive transient-failure budget. Defaults to 3.
	MaxRetries int

	// OnUpdate fires after every applied cycle result (success or failure
	// transition), never for discarded or canceled cycles.
	OnUpdate func(Snapshot)

	Logger *slog.Logger

	// now is injectable for deterministic tests.
	now func() time.Time
}

func (o Options) withDefaults() Options {
	out := o
	if out.Interval <= 0 {
		out.Interval = 5 * time.Second
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = time.Second
	}
	if out.BackoffCap <= 0 {
		out.BackoffCap = 30 * time.Second
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.now == nil {
		out.now = time.Now
	}
	return out
}

type Poller struct {
	fetch FetchFunc
	opts  Options

	mu          sync.Mutex
	snap        Snapshot
	gen         uint64
	cancelCycle context.CancelFunc
	refreshing  bool

	// resumeCh requests an immediate cycle; rescheduleCh restarts the
	// interval wait without fetching (used after a manual refresh already
	// fetched fresh data).
	resumeCh     chan struct{}
	rescheduleCh chan struct{}
}

func New(fetch FetchFunc, opts Options) *Poller {
	return &Poller{
		fetch:        fetch,
		opts:         opts.withDefaults(),
		snap:         Snapshot{Status: StatusActive},
		resumeCh:     make(chan struct{}, 1),
		rescheduleCh: make(chan struct{}, 1),
	}
}

// Run polls until ctx is done. It returns with every timer stopped and any
// in-flight request canceled.
func (p *Poller) Run(ctx context.Context) {
	defer p.cancelInflight()

	for {
		if ctx.Err() != nil {
			return
		}
		if p.Status() != StatusActive {
			// Paused or failed: no automatic requests until woken.
			select {
			case <-ctx.Done():
				return
			case <-p.resumeCh:
				continue
			}
		}

		wait := p.runCycle(ctx)
		if ctx.Err() != nil {
			return
		}
		if p.Status() != StatusActive {
			continue
		}
		if !p.sleep(ctx, wait) {
			return
		}
	}
}

// sleep waits for the next cycle. Returns false when ctx ended.
func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		case <-p.resumeCh:
			return true
		case <-p.rescheduleCh:
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			t.Reset(p.opts.Interval)
		}
	}
}

// runCycle performs one fetch and returns the delay before the next attempt.
func (p *Poller) runCycle(ctx context.Context) time.Duration {
	cctx, gen := p.beginCycle(ctx)
	legs, err := p.fetch(cctx)
	p.endCycle(gen)
	return p.apply(gen, legs, err)
}

// beginCycle cancels any in-flight request and opens a new cycle context.
func (p *Poller) beginCycle(ctx context.Context) (context.Context, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelCycle != nil {
		p.cancelCycle()
	}
	cctx, cancel := context.WithCancel(ctx)
	p.cancelCycle = cancel
	p.gen++
	return cctx, p.gen
}

func (p *Poller) endCycle(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen == gen && p.cancelCycle != nil {
		p.cancelCycle()
		p.cancelCycle = nil
	}
}

// apply folds a cycle result into the snapshot and computes the next delay.
// Results from superseded generations are discarded.
func (p *Poller) apply(gen uint64, legs []livecalls.Leg, err error) time.Duration {
	p.mu.Lock()
	if gen != p.gen {
		// A newer cycle took over while this one was in flight.
		p.mu.Unlock()
		return p.opts.Interval
	}

	now := p.opts.now()
	var fire bool

	switch {
	case err == nil:
		p.snap.Legs = legs
		p.snap.Status = StatusActive
		p.snap.LastError = nil
		p.snap.Retries = 0
		p.snap.LastSuccess = now
		p.snap.UpdatedAt = now
		fire = true

	case telephony.IsCanceled(err):
		// Not a failure: no retry accounting, nothing surfaced.

	case telephony.IsAuth(err):
		p.snap.Status = StatusFailed
		p.snap.LastError = err
		p.snap.UpdatedAt = now
		fire = true
		p.opts.Logger.Error("poll failed, credentials rejected", "err", err)

	default:
		p.snap.Retries++
		p.snap.LastError = err
		p.snap.UpdatedAt = now
		if p.snap.Retries > p.opts.MaxRetries {
			p.snap.Status = StatusPaused
			fire = true
			p.opts.Logger.Warn("retry budget exhausted, polling paused",
				"retries", p.snap.Retries, "err", err)
		} else if telephony.IsTimeout(err) {
			p.opts.Logger.Warn("poll timed out", "retries", p.snap.Retries, "err", err)
		} else {
			p.opts.Logger.Warn("poll failed", "retries", p.snap.Retries, "err", err)
		}
	}

	delay := p.opts.Interval
	if p.snap.Status == StatusActive && p.snap.Retries > 0 {
		delay = backoffDelay(p.opts.BackoffBase, p.opts.BackoffCap, p.snap.Retries)
	}
	snap := p.snapshotLocked()
	p.mu.Unlock()

	if fire && p.opts.OnUpdate != nil {
		p.opts.OnUpdate(snap)
	}
	return delay
}

// backoffDelay returns min(base * 2^retries, limit).
func backoffDelay(base, limit time.Duration, retries int) time.Duration {
	d := base
	for i := 0; i < retries; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return d
}

// Refresh performs one out-of-band fetch, canceling any in-flight automatic
// cycle first. A refresh already in progress makes this a no-op; concurrent
// operator refreshes must not stack requests.
func (p *Poller) Refresh(ctx context.Context) error {
	p.mu.Lock()
	if p.refreshing {
		p.mu.Unlock()
		return nil
	}
	p.refreshing = true
	wasActive := p.snap.Status == StatusActive
	if p.cancelCycle != nil {
		p.cancelCycle()
	}
	cctx, cancel := context.WithCancel(ctx)
	p.cancelCycle = cancel
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	legs, err := p.fetch(cctx)
	p.endCycle(gen)
	p.apply(gen, legs, err)

	p.mu.Lock()
	p.refreshing = false
	p.mu.Unlock()

	if err == nil && !wasActive {
		// A successful refresh resumes a paused (or failed) poller.
		p.wake(p.resumeCh)
		return nil
	}
	// Restart the interval wait; the loop must not double-fetch right after
	// a manual refresh.
	p.wake(p.rescheduleCh)
	if err == nil || telephony.IsCanceled(err) {
		return nil
	}
	return err
}

// Resume restarts automatic polling after the poller paused (or failed) and
// schedules an immediate cycle.
func (p *Poller) Resume() {
	p.mu.Lock()
	p.snap.Status = StatusActive
	p.snap.Retries = 0
	p.mu.Unlock()
	p.wake(p.resumeCh)
}

func (p *Poller) wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (p *Poller) cancelInflight() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelCycle != nil {
		p.cancelCycle()
		p.cancelCycle = nil
	}
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap.Status
}

// Snapshot returns a copy of the latest state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Poller) snapshotLocked() Snapshot {
	out := p.snap
	out.Legs = make([]livecalls.Leg, len(p.snap.Legs))
	copy(out.Legs, p.snap.Legs)
	return out
}
