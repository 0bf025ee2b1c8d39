package gateway

import (
	"sync"
	"time"

	"github.com/zenithmed/registry-api/pkg/metrics"
)

type pendingMutation struct {
	echoed  chan struct{}
	started time.Time
}

// pendingTracker correlates outgoing writes with their change feed echoes.
// Tokens from other sessions resolve to nothing and are ignored.
type pendingTracker struct {
	mu      sync.Mutex
	pending map[string]*pendingMutation
	metrics *metrics.Metrics
}

func newPendingTracker(m *metrics.Metrics) *pendingTracker {
	return &pendingTracker{
		pending: make(map[string]*pendingMutation),
		metrics: m,
	}
}

func (t *pendingTracker) track(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending[token] = &pendingMutation{
		echoed:  make(chan struct{}),
		started: time.Now(),
	}
	if t.metrics != nil {
		t.metrics.PendingMutations.Set(float64(len(t.pending)))
	}
}

func (t *pendingTracker) resolve(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[token]
	if !ok {
		return
	}
	delete(t.pending, token)
	close(p.echoed)

	if t.metrics != nil {
		t.metrics.PendingMutations.Set(float64(len(t.pending)))
		t.metrics.EchoLatency.Observe(time.Since(p.started).Seconds())
	}
}

// forget removes a token that will never be resolved, typically after the
// write failed or the echo deadline passed.
func (t *pendingTracker) forget(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[token]; !ok {
		return
	}
	delete(t.pending, token)
	if t.metrics != nil {
		t.metrics.PendingMutations.Set(float64(len(t.pending)))
	}
}

func (t *pendingTracker) wait(token string) <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[token]
	if !ok {
		// already echoed (or never tracked): return a closed channel
		done := make(chan struct{})
		close(done)
		return done
	}
	return p.echoed
}
