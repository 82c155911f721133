package orchestrator

import (
	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/metaagentd/internal/agent"
)

// adapterPool is the parent_context_key -> *agent.Adapter map spec.md 4.5
// describes: one worker adapter per branch, reused across retries so the
// external CLI session (and its harvested session id) survives, replaced
// only when the branch itself changes identity. Entries never expire on
// their own; they live for the process's lifetime and are only dropped by
// an explicit Reset (spec.md 4.5.1 "new master").
//
// Modeled on the teacher's generic cachemanager.InMemoryCacheManager
// wrapper over the same library, specialized to *agent.Adapter instead of
// a type parameter since every entry here is the same concrete type.
type adapterPool struct {
	cache *gocache.Cache
}

func newAdapterPool() *adapterPool {
	return &adapterPool{cache: gocache.New(gocache.NoExpiration, gocache.NoExpiration)}
}

// Get returns the adapter for key, if one has been created.
func (p *adapterPool) Get(key string) (*agent.Adapter, bool) {
	v, ok := p.cache.Get(key)
	if !ok {
		return nil, false
	}
	a, ok := v.(*agent.Adapter)
	return a, ok
}

// GetOrCreate returns the existing adapter for key, or builds one via
// build and stores it.
func (p *adapterPool) GetOrCreate(key string, build func() *agent.Adapter) *agent.Adapter {
	if a, ok := p.Get(key); ok {
		return a
	}
	a := build()
	p.cache.Set(key, a, gocache.NoExpiration)
	return a
}

// All returns every pooled adapter, for tick-time draining.
func (p *adapterPool) All() map[string]*agent.Adapter {
	items := p.cache.Items()
	out := make(map[string]*agent.Adapter, len(items))
	for k, item := range items {
		if a, ok := item.Object.(*agent.Adapter); ok {
			out[k] = a
		}
	}
	return out
}

// Reset drops every pooled worker adapter (spec.md 4.5.1 "new master").
func (p *adapterPool) Reset() {
	p.cache.Flush()
}
