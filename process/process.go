// Package process wires the DAG index, the voting engine, block
// validation, view management, and block production into a single
// per-process message handler (spec §3, §5): process_message.
package process

import (
	"github.com/luxfi/log"

	"github.com/luxfi/morpheus/codec"
	"github.com/luxfi/morpheus/dag"
	"github.com/luxfi/morpheus/invariant"
	"github.com/luxfi/morpheus/keybook"
	"github.com/luxfi/morpheus/mempool"
	"github.com/luxfi/morpheus/metrics"
	"github.com/luxfi/morpheus/produce"
	"github.com/luxfi/morpheus/types"
	"github.com/luxfi/morpheus/validate"
	"github.com/luxfi/morpheus/view"
	"github.com/luxfi/morpheus/voting"
)

// Process is a single Morpheus participant's complete runtime state.
type Process struct {
	log     log.Logger
	book    keybook.KeyBook
	self    types.ProcessID
	n, f    int
	metrics metrics.Metrics

	idx       *dag.Index
	views     *view.Manager
	engine    *voting.Engine
	validator *validate.Validator
	producer  *produce.Producer
	pool      *mempool.Pool

	// CheckInvariants, when true, runs the invariant checker after every
	// processed message and panics on any violation (debug-build behavior
	// in the original reference implementation).
	CheckInvariants bool
}

// Config bundles the construction-time parameters for a Process.
type Config struct {
	Logger    log.Logger
	Book      keybook.KeyBook
	Self      types.ProcessID
	N, F      int
	Delta     int64
	GenesisQC types.QC
	Metrics   metrics.Metrics
}

// New constructs a Process seeded at the genesis block and view, with its
// leader schedule bound to view.Lead.
func New(cfg Config) *Process {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NoOp()
	}

	genesisBlock := &types.Block{Key: types.GenBlockKey, One: cfg.GenesisQC, Data: types.GenesisData{}}
	idx := dag.New(logger, cfg.GenesisQC, genesisBlock)
	views := view.NewManager(logger, cfg.Book, cfg.Self, cfg.N, cfg.F, cfg.Delta)
	engine := voting.NewEngine(logger, cfg.Book, cfg.Self, cfg.N, cfg.F, idx, views)
	pool := mempool.New()
	producer := produce.NewProducer(logger, cfg.Book, cfg.Self, cfg.N, cfg.F, idx, views, pool)
	leaderFn := func(v types.View) types.ProcessID { return view.Lead(v, cfg.N) }
	validator := validate.NewValidator(cfg.Book, cfg.N, cfg.F, cfg.GenesisQC, leaderFn)

	// Every process starts protocol execution at view 0; GenesisView (-1) is
	// a bootstrap marker only, never entered into by try_produce_blocks or
	// the vote cascade.
	views.EndView(0, idx)
	engine.MarkDirty(0)

	return &Process{
		log:       logger,
		book:      cfg.Book,
		self:      cfg.Self,
		n:         cfg.N,
		f:         cfg.F,
		metrics:   m,
		idx:       idx,
		views:     views,
		engine:    engine,
		validator: validator,
		producer:  producer,
		pool:      pool,
	}
}

// Index, Views, Engine, and Pool expose the underlying subsystems for
// inspection (tests, simulation harnesses, metrics).
func (p *Process) Index() *dag.Index       { return p.idx }
func (p *Process) Views() *view.Manager    { return p.views }
func (p *Process) Engine() *voting.Engine  { return p.engine }
func (p *Process) Pool() *mempool.Pool     { return p.pool }

// Enqueue adds a transaction to the local mempool for a future block.
func (p *Process) Enqueue(tx types.Transaction) { p.pool.Enqueue(tx) }

// Advance moves the logical clock forward, driving timeout checks and
// block production (spec §4.6, §4.7). Call this once per discrete tick.
func (p *Process) Advance(now int64) []types.Outbound {
	p.views.Advance(now)
	var out []types.Outbound
	timeouts := p.views.CheckTimeouts(p.idx)
	for _, o := range timeouts {
		if _, ok := o.Message.(types.QCMessage); ok {
			p.metrics.Complaints().Inc()
		}
	}
	out = append(out, timeouts...)
	out = append(out, p.producer.TryProduce()...)
	out = append(out, p.engine.ReevaluatePendingVotes()...)
	p.metrics.CurrentView().Set(float64(p.views.View()))
	p.metrics.CurrentPhase().Set(float64(p.views.Phase(p.views.View())))
	p.assertInvariants()
	return out
}

// ProcessMessage dispatches a single received message, mirroring
// process_message in the reference implementation. It returns any outbound
// messages the ingestion causes; an unprocessable (invalid, stale) message
// yields no outbound messages and a nil error, matching the reference's
// tolerant-of-byzantine-garbage behavior.
func (p *Process) ProcessMessage(msg types.Message, sender types.ProcessID) ([]types.Outbound, error) {
	var out []types.Outbound

	switch m := msg.(type) {
	case types.BlockMessage:
		if err := p.validator.Valid(m.Block); err != nil {
			p.log.Warn("rejected invalid block", "key", m.Block.Data.Key, "err", err)
			return nil, nil
		}
		author := m.Block.Data.Key.Author
		if voteOut, cast := p.engine.TryVote(0, m.Block.Data.Key, &author); cast {
			out = append(out, voteOut)
			p.metrics.VotesCast().WithLabelValues("0").Inc()
		}
		if p.idx.RecordBlock(m.Block.Data) {
			switch m.Block.Data.Key.Type {
			case types.BlockTransaction:
				p.engine.Enqueue("tr_1", m.Block.Data.Key)
			case types.BlockLeader:
				p.engine.Enqueue("lead_1", m.Block.Data.Key)
			}
		}
		if author == p.self {
			p.metrics.BlocksProduced().WithLabelValues(m.Block.Data.Key.Type.String()).Inc()
		}

	case types.NewVoteMessage:
		if !p.book.VerifyPartial(m.Vote.Author, codec.Canonical(m.Vote.Data), m.Vote.Signature) {
			p.log.Warn("rejected vote with invalid signature", "author", m.Vote.Author)
			return nil, nil
		}
		_, hadQC := p.idx.QC(m.Vote.Data)
		voteOut, finalized, err := p.engine.RecordVote(m.Vote)
		if err != nil {
			p.log.Warn("rejected vote", "err", err)
			return nil, nil
		}
		if _, haveQC := p.idx.QC(m.Vote.Data); haveQC && !hadQC {
			p.metrics.QCsFormed().WithLabelValues(formatZ(m.Vote.Data.Z)).Inc()
		}
		out = append(out, voteOut...)
		if len(finalized) > 0 {
			p.metrics.BlocksFinalized().Add(float64(len(finalized)))
		}

	case types.QCMessage:
		if !p.book.VerifyAggregate(p.n-p.f, codec.Canonical(m.QC.Data), m.QC.Signature) {
			p.log.Warn("rejected QC with invalid aggregate signature", "for", m.QC.Data.For)
			return nil, nil
		}
		finalized := p.idx.RecordQC(m.QC)
		if m.QC.Data.Z == 1 {
			switch m.QC.Data.For.Type {
			case types.BlockTransaction:
				p.engine.Enqueue("tr_2", m.QC.Data.For)
			case types.BlockLeader:
				p.engine.Enqueue("lead_2", m.QC.Data.For)
			}
		}
		if len(finalized) > 0 {
			p.metrics.BlocksFinalized().Add(float64(len(finalized)))
		}
		if maxView, maxViewQC := p.idx.MaxView(); maxView > p.views.View() {
			if qc, ok := p.idx.QC(maxViewQC); ok {
				out = append(out, p.jumpToView(maxView, types.Broadcast(types.QCMessage{QC: qc}))...)
			}
		}

	case types.EndViewMessage:
		if !p.book.VerifyPartial(m.EndView.Author, codec.Canonical(m.EndView.Data), m.EndView.Signature) {
			p.log.Warn("rejected end-view with invalid signature", "author", m.EndView.Author)
			return nil, nil
		}
		cert, formed, err := p.views.RecordEndView(m.EndView)
		if err != nil {
			p.log.Warn("failed aggregating end-view", "err", err)
			return nil, nil
		}
		if formed {
			out = append(out, types.Broadcast(types.EndViewCertMessage{EndViewCert: cert}))
		}

	case types.EndViewCertMessage:
		if !p.book.VerifyAggregate(p.f+1, codec.Canonical(m.EndViewCert.Data), m.EndViewCert.Signature) {
			p.log.Warn("rejected end-view cert with invalid aggregate signature")
			return nil, nil
		}
		newView := m.EndViewCert.Data + 1
		if newView >= p.views.View() {
			out = append(out, p.jumpToView(newView, types.Broadcast(m))...)
		}

	case types.StartViewMessage:
		if !p.book.VerifyPartial(m.StartView.Author, codec.Canonical(m.StartView.Data), m.StartView.Signature) {
			p.log.Warn("rejected start-view with invalid signature", "author", m.StartView.Author)
			return nil, nil
		}
		if m.StartView.Data.Max1QC.Data.Z != 1 {
			return nil, nil
		}
		p.idx.RecordQC(m.StartView.Data.Max1QC)
		switch m.StartView.Data.Max1QC.Data.For.Type {
		case types.BlockTransaction:
			p.engine.Enqueue("tr_2", m.StartView.Data.Max1QC.Data.For)
		case types.BlockLeader:
			p.engine.Enqueue("lead_2", m.StartView.Data.Max1QC.Data.For)
		}
		p.views.RecordStartView(m.StartView)
	}

	out = append(out, p.engine.ReevaluatePendingVotes()...)
	p.assertInvariants()
	return out, nil
}

// jumpToView performs the view-entry procedure for a certified or QC-implied
// jump to newView and rebroadcasts the cause alongside the resulting
// StartView/QC messages (spec §4.6).
func (p *Process) jumpToView(newView types.View, cause types.Outbound) []types.Outbound {
	out := []types.Outbound{cause}
	out = append(out, p.views.EndView(newView, p.idx)...)
	p.engine.MarkDirty(newView)
	p.metrics.ViewChanges().Inc()
	p.metrics.CurrentView().Set(float64(newView))
	return out
}

func (p *Process) assertInvariants() {
	if !p.CheckInvariants {
		return
	}
	if violations := invariant.Check(p.idx, p.views, p.engine); len(violations) > 0 {
		p.log.Error("invariant violations detected", "violations", violations)
		panic(violations)
	}
}

func formatZ(z uint8) string {
	switch z {
	case 0:
		return "0"
	case 1:
		return "1"
	default:
		return "2"
	}
}
