package stage

import (
	"context"
	"fmt"
	"maps"

	"github.com/randalmurphal/duetto/pkg/duetto/chain"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// Priority drops events below a minimum priority. Sources listed in
// perSource use their own minimum.
type Priority struct {
	name      string
	min       event.Priority
	perSource map[string]event.Priority
}

var _ chain.Stage = (*Priority)(nil)

// NewPriority creates a priority filter.
func NewPriority(name string, floor event.Priority, perSource map[string]event.Priority) *Priority {
	if !floor.Valid() {
		floor = event.Low
	}
	return &Priority{name: name, min: floor, perSource: maps.Clone(perSource)}
}

// Name implements chain.Stage.
func (p *Priority) Name() string { return p.name }

// MinFor returns the threshold applied to source.
func (p *Priority) MinFor(source string) event.Priority {
	if m, ok := p.perSource[source]; ok {
		return m
	}
	return p.min
}

// Process implements chain.Stage. Events with an invalid priority pass.
func (p *Priority) Process(_ context.Context, evt event.Event) (chain.Outcome, error) {
	if !evt.Priority.Valid() {
		return chain.Pass(evt), nil
	}
	floor := p.MinFor(evt.Source)
	if !evt.Priority.AtLeast(floor) {
		return chain.Drop(fmt.Sprintf("priority %s below %s", evt.Priority, floor)), nil
	}
	return chain.Pass(evt), nil
}
