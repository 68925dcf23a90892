package smtpsession

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Gate limits the number of simultaneous sessions per mail exchanger.
// A limit of 0 disables it. A host's slot set is dropped once nobody holds
// or waits for it.
type Gate struct {
	limit int64
	mu    sync.Mutex
	hosts map[string]*hostSlots
}

type hostSlots struct {
	sem  *semaphore.Weighted
	refs int // holders plus waiters
}

// NewGate creates a gate allowing limit sessions per host.
func NewGate(limit int) *Gate {
	if limit < 0 {
		limit = 0
	}
	return &Gate{
		limit: int64(limit),
		hosts: make(map[string]*hostSlots),
	}
}

// Acquire blocks until a slot for host is free or ctx is done. The returned
// release func must be called exactly once.
func (g *Gate) Acquire(ctx context.Context, host string) (func(), error) {
	if g == nil || g.limit == 0 {
		return func() {}, nil
	}

	g.mu.Lock()
	hs, ok := g.hosts[host]
	if !ok {
		hs = &hostSlots{sem: semaphore.NewWeighted(g.limit)}
		g.hosts[host] = hs
	}
	hs.refs++
	g.mu.Unlock()

	if err := hs.sem.Acquire(ctx, 1); err != nil {
		g.unref(host, hs)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			hs.sem.Release(1)
			g.unref(host, hs)
		})
	}, nil
}

func (g *Gate) unref(host string, hs *hostSlots) {
	g.mu.Lock()
	defer g.mu.Unlock()
	hs.refs--
	if hs.refs == 0 {
		delete(g.hosts, host)
	}
}

// Hosts returns the number of hosts currently tracked.
func (g *Gate) Hosts() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.hosts)
}
