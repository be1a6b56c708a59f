// Package mempool queues transactions a process has generated or received
// until block production consumes them (spec §4.7), and implements the
// simulation harness's per-process transaction-generation policies (§6.5).
package mempool

import (
	"github.com/luxfi/morpheus/types"
)

// Pool is a FIFO queue of ready transactions, analogous to the teacher's
// beam.Builder staging area but generalized from a single ProposedBlock
// assembler into a standalone queue block production drains from.
type Pool struct {
	ready []types.Transaction
}

// New constructs an empty Pool.
func New() *Pool {
	return &Pool{}
}

// Enqueue appends a transaction, making it available to the next block
// production attempt.
func (p *Pool) Enqueue(tx types.Transaction) {
	p.ready = append(p.ready, tx)
}

// Len reports the number of queued transactions.
func (p *Pool) Len() int { return len(p.ready) }

// Drain removes and returns every queued transaction, in FIFO order.
func (p *Pool) Drain() []types.Transaction {
	out := p.ready
	p.ready = nil
	return out
}

// Policy decides, on each simulation step, whether a process should
// generate a new transaction (spec §6.5): Never, Always, EveryNSteps, or
// OncePerView.
type Policy interface {
	// ShouldGenerate is called once per step with the step counter and the
	// process's current view; it returns the transaction to enqueue, if any.
	ShouldGenerate(step int, view types.View) (types.Transaction, bool)
}

// NeverPolicy never generates transactions.
type NeverPolicy struct{}

func (NeverPolicy) ShouldGenerate(int, types.View) (types.Transaction, bool) {
	return nil, false
}

// AlwaysPolicy generates one transaction every step.
type AlwaysPolicy struct {
	Payload types.Transaction
}

func (p AlwaysPolicy) ShouldGenerate(int, types.View) (types.Transaction, bool) {
	return payloadOrDefault(p.Payload), true
}

// EveryNStepsPolicy generates a transaction every N steps (step % N == 0).
type EveryNStepsPolicy struct {
	N       int
	Payload types.Transaction
}

func (p EveryNStepsPolicy) ShouldGenerate(step int, _ types.View) (types.Transaction, bool) {
	if p.N <= 0 || step%p.N != 0 {
		return nil, false
	}
	return payloadOrDefault(p.Payload), true
}

// OncePerViewPolicy generates exactly one transaction the first time it
// observes a given view, tracking the last view it generated for.
type OncePerViewPolicy struct {
	Payload  types.Transaction
	lastView types.View
	primed   bool
}

// NewOncePerViewPolicy constructs a policy that has not yet generated for
// any view.
func NewOncePerViewPolicy(payload types.Transaction) *OncePerViewPolicy {
	return &OncePerViewPolicy{Payload: payload, lastView: types.GenesisView - 1}
}

func (p *OncePerViewPolicy) ShouldGenerate(_ int, view types.View) (types.Transaction, bool) {
	if p.primed && view == p.lastView {
		return nil, false
	}
	p.lastView = view
	p.primed = true
	return payloadOrDefault(p.Payload), true
}

func payloadOrDefault(tx types.Transaction) types.Transaction {
	if tx != nil {
		return tx
	}
	return types.Transaction([]byte{1, 2, 3, 4})
}
