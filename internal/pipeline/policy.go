// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"sync"

	"github.com/pdiddy/corpus-engine/internal/sources"
)

// policy tracks per-source reliability over a rolling window of call
// outcomes and decides whether a source runs. Critical sources always run;
// everything else is judged by its recent success rate.
type policy struct {
	window    int
	threshold float64
	skipLow   bool

	mu       sync.Mutex
	outcomes map[string][]bool
}

func newPolicy(window int, threshold float64, skipLow bool) *policy {
	if window <= 0 {
		window = 20
	}
	if threshold <= 0 {
		threshold = 0.2
	}
	return &policy{
		window:    window,
		threshold: threshold,
		skipLow:   skipLow,
		outcomes:  make(map[string][]bool),
	}
}

// record appends one call outcome, keeping only the last window entries.
func (p *policy) record(source string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := append(p.outcomes[source], ok)
	if len(o) > p.window {
		o = o[len(o)-p.window:]
	}
	p.outcomes[source] = o
}

// lowReliability reports whether the source's success rate over a full
// window has fallen below the threshold. A source with a partial window is
// never judged; it has not had a fair chance yet.
func (p *policy) lowReliability(source string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := p.outcomes[source]
	if len(o) < p.window {
		return false
	}
	ok := 0
	for _, v := range o {
		if v {
			ok++
		}
	}
	return float64(ok)/float64(len(o)) < p.threshold
}

// disposition says how the coordinator treats a source this round.
type disposition int

const (
	runNow disposition = iota
	runDeferred
	skipSource
)

// decide classifies a source: critical sources always run, reliable
// sources run, and low-reliability sources are either skipped outright or
// deferred behind the reliable ones depending on configuration.
func (p *policy) decide(name string, priority sources.Priority) disposition {
	if priority == sources.Critical {
		return runNow
	}
	if !p.lowReliability(name) {
		return runNow
	}
	if p.skipLow {
		return skipSource
	}
	return runDeferred
}
