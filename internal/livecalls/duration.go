package livecalls

import (
	"sync"
	"time"
)

// DurationTracker keeps a locally-ticking duration per channel so displayed
// counters advance smoothly between polls instead of jumping every cycle.
//
// A counter is seeded from the provider-reported duration the first time a
// channel is observed and then advances on the local clock only. It is NOT
// reseeded while the channel stays present; if the provider's own counter and
// ours drift apart over a long-lived leg, the local value wins. Counters for
// channels that disappear are dropped.
type DurationTracker struct {
	mu    sync.Mutex
	seeds map[string]seed

	// now is injectable for deterministic tests.
	now func() time.Time
}

type seed struct {
	seconds int
	at      time.Time
}

func NewDurationTracker() *DurationTracker {
	return &DurationTracker{
		seeds: make(map[string]seed),
		now:   time.Now,
	}
}

// Observe records the channels present in the latest poll. New channels get a
// counter seeded from their reported duration; absent channels are forgotten.
func (t *DurationTracker) Observe(legs []Leg) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	present := make(map[string]struct{}, len(legs))
	for _, l := range legs {
		present[l.Channel] = struct{}{}
		if _, ok := t.seeds[l.Channel]; !ok {
			t.seeds[l.Channel] = seed{seconds: l.DurationSeconds, at: now}
		}
	}
	for ch := range t.seeds {
		if _, ok := present[ch]; !ok {
			delete(t.seeds, ch)
		}
	}
}

// Seconds returns the current local duration for a channel. The second return
// is false for channels not under observation; callers should fall back to the
// provider-reported value.
func (t *DurationTracker) Seconds(channel string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.seeds[channel]
	if !ok {
		return 0, false
	}
	elapsed := int(t.now().Sub(s.at) / time.Second)
	return s.seconds + elapsed, true
}

// Tracked returns the number of channels currently under observation.
func (t *DurationTracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seeds)
}
