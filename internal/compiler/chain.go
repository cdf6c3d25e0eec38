package compiler

import "context"

// Chain compiles with First and feeds the keymap to Second, checking that
// each compiler accepts the other's output.
type Chain struct {
	name   string
	First  Strategy
	Second Recompiler
}

// Name implements Strategy.
func (c *Chain) Name() string { return c.name }

// Run implements Strategy. Stages run strictly in order; a failed first stage
// is final.
func (c *Chain) Run(ctx context.Context, req Request, inv *Invocation) {
	first := req
	first.NeedKeymap = true
	c.First.Run(ctx, first, inv)
	if inv.Failed() {
		return
	}
	c.Second.Recompile(ctx, req, inv)
}
