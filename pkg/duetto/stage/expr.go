package stage

import (
	"context"
	"fmt"

	"github.com/randalmurphal/duetto/pkg/duetto/chain"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/expr"
)

// Expr passes events for which a compiled expression over Event.Fields is
// true.
type Expr struct {
	name string
	prog *expr.Program
}

var _ chain.Stage = (*Expr)(nil)

// NewExpr compiles when once.
func NewExpr(name, when string) (*Expr, error) {
	prog, err := expr.Compile(when)
	if err != nil {
		return nil, fmt.Errorf("expr stage %s: %w", name, err)
	}
	return &Expr{name: name, prog: prog}, nil
}

// Name implements chain.Stage.
func (e *Expr) Name() string { return e.name }

// Process implements chain.Stage.
func (e *Expr) Process(_ context.Context, evt event.Event) (chain.Outcome, error) {
	if e.prog.Eval(evt.Fields()) {
		return chain.Pass(evt), nil
	}
	return chain.Drop("expression false: " + e.prog.String()), nil
}
