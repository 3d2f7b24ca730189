package faultline

import (
	"sync"

	"golang.org/x/time/rate"
)

// FilteredMarker replaces redacted parameter values.
const FilteredMarker = "[Filtered]"

// Filter is a unit of logic that inspects or mutates a Notice and may mark
// it ignored. Stages must be stateless or synchronize their own state; the
// chain does not serialize calls across notices.
type Filter interface {
	Refine(n *Notice)
}

// FilterFunc adapts a plain function to the Filter interface.
type FilterFunc func(n *Notice)

// Refine calls f(n).
func (f FilterFunc) Refine(n *Notice) { f(n) }

// FilterChain is an ordered, mutable pipeline of filter stages applied to a
// notice before delivery. Stages run in registration order and every stage
// runs even after an earlier one marks the notice ignored.
type FilterChain struct {
	mu     sync.Mutex
	stages []Filter
}

// NewFilterChain returns an empty chain.
func NewFilterChain() *FilterChain {
	return &FilterChain{}
}

// AddFilter appends a stage. Duplicate additions are permitted and execute
// once per registration.
func (c *FilterChain) AddFilter(f Filter) {
	if f == nil {
		return
	}
	c.mu.Lock()
	// Copy-on-append so an in-flight Refine keeps iterating its snapshot.
	next := make([]Filter, len(c.stages), len(c.stages)+1)
	copy(next, c.stages)
	c.stages = append(next, f)
	c.mu.Unlock()
}

// Refine runs every registered stage, in order, against the notice.
func (c *FilterChain) Refine(n *Notice) {
	c.mu.Lock()
	stages := c.stages
	c.mu.Unlock()

	for _, f := range stages {
		f.Refine(n)
	}
}

// Len reports the number of registered stages.
func (c *FilterChain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stages)
}

// NewBlacklistFilter redacts the listed parameter keys, replacing their
// values with the FilteredMarker.
func NewBlacklistFilter(keys ...string) Filter {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return FilterFunc(func(n *Notice) {
		for k := range n.Params {
			if _, ok := set[k]; ok {
				n.Params[k] = FilteredMarker
			}
		}
	})
}

// NewWhitelistFilter redacts every parameter key that is not listed.
func NewWhitelistFilter(keys ...string) Filter {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return FilterFunc(func(n *Notice) {
		for k := range n.Params {
			if _, ok := set[k]; !ok {
				n.Params[k] = FilteredMarker
			}
		}
	})
}

// rateLimitFilter marks notices ignored once the token bucket is exhausted.
type rateLimitFilter struct {
	limiter *rate.Limiter
}

// NewRateLimitFilter returns a sampling stage that allows at most perSecond
// notices per second (burst of the same size) and marks the rest ignored.
// The limiter synchronizes its own state, so the stage is safe to share
// across concurrent capture calls.
func NewRateLimitFilter(perSecond int) Filter {
	if perSecond < 1 {
		perSecond = 1
	}
	return &rateLimitFilter{limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond)}
}

func (f *rateLimitFilter) Refine(n *Notice) {
	if !f.limiter.Allow() {
		n.Ignore()
	}
}
