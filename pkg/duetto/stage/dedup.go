package stage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/randalmurphal/duetto/pkg/duetto/chain"
	"github.com/randalmurphal/duetto/pkg/duetto/dedup"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/registry"
)

// DefaultDedupCapacity is the number of IDs remembered per cache.
const DefaultDedupCapacity = 1000

// DefaultMaxSources caps the per-source caches kept in ScopeSource.
const DefaultMaxSources = 256

// Scope selects how dedup caches are partitioned.
type Scope string

const (
	// ScopeGlobal shares one cache across every source.
	ScopeGlobal Scope = "global"

	// ScopeSource keeps one cache per event source, so the same ID from
	// two producers is not a duplicate.
	ScopeSource Scope = "source"
)

// ErrMissingID is returned for events with an empty ID.
var ErrMissingID = errors.New("event has no id")

// Dedup drops events whose ID has been seen before.
type Dedup struct {
	name       string
	scope      Scope
	capacity   int
	maxSources int
	global     *dedup.Cache
	sources    *registry.Registry[string, *dedup.Cache]

	// mu guards order, the sources in cache creation order.
	mu    sync.Mutex
	order []string
}

var _ chain.Stage = (*Dedup)(nil)

// DedupOption configures a Dedup stage.
type DedupOption func(*Dedup)

// WithMaxSources bounds how many per-source caches ScopeSource keeps. When
// a new source arrives at the limit, the oldest source's cache is dropped.
// n below 1 uses DefaultMaxSources.
func WithMaxSources(n int) DedupOption {
	return func(d *Dedup) {
		if n > 0 {
			d.maxSources = n
		}
	}
}

// NewDedup creates a dedup stage. capacity below 1 uses
// DefaultDedupCapacity.
func NewDedup(name string, capacity int, scope Scope, opts ...DedupOption) (*Dedup, error) {
	if capacity < 1 {
		capacity = DefaultDedupCapacity
	}
	d := &Dedup{name: name, scope: scope, capacity: capacity, maxSources: DefaultMaxSources}
	for _, opt := range opts {
		opt(d)
	}
	switch scope {
	case ScopeGlobal, "":
		d.scope = ScopeGlobal
		d.global = dedup.New(capacity)
	case ScopeSource:
		d.sources = registry.New[string, *dedup.Cache]()
	default:
		return nil, fmt.Errorf("dedup: unknown scope %q", scope)
	}
	return d, nil
}

// Name implements chain.Stage.
func (d *Dedup) Name() string { return d.name }

// Process implements chain.Stage.
func (d *Dedup) Process(_ context.Context, evt event.Event) (chain.Outcome, error) {
	if evt.ID == "" {
		return chain.Drop("missing id"), ErrMissingID
	}
	if d.cacheFor(evt.Source).ContainsOrInsert(evt.ID) {
		return chain.Drop("duplicate"), nil
	}
	return chain.Pass(evt), nil
}

func (d *Dedup) cacheFor(source string) *dedup.Cache {
	if d.scope == ScopeGlobal {
		return d.global
	}
	if c, ok := d.sources.Lookup(source); ok {
		return c
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	created := false
	c := d.sources.GetOrCreate(source, func() *dedup.Cache {
		created = true
		return dedup.New(d.capacity)
	})
	if created {
		d.order = append(d.order, source)
		if len(d.order) > d.maxSources {
			d.sources.Delete(d.order[0])
			d.order = slices.Delete(d.order, 0, 1)
		}
	}
	return c
}

// Sources returns the sources that have a cache, in sorted order. It is
// empty for global scope.
func (d *Dedup) Sources() []string {
	if d.sources == nil {
		return nil
	}
	return d.sources.Keys()
}
