// Package sim is a discrete-event simulation harness for a universe of
// Morpheus processes (spec §6.5): a virtual clock, FIFO per-destination
// message delivery with a fixed network delay, and per-process
// transaction-generation policies.
package sim

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/log"

	"github.com/luxfi/morpheus/config"
	"github.com/luxfi/morpheus/keybook"
	"github.com/luxfi/morpheus/mempool"
	"github.com/luxfi/morpheus/metrics"
	"github.com/luxfi/morpheus/order"
	"github.com/luxfi/morpheus/process"
	"github.com/luxfi/morpheus/types"
)

// envelope is a message in flight between two processes.
type envelope struct {
	from, to  types.ProcessID
	message   types.Message
	deliverAt int64
}

// Harness wires a fixed universe of process.Process instances together
// behind a virtual clock. Each Step advances the clock by one unit: tx-gen
// policies fire, every process advances (timeouts, production), and
// messages due this tick are delivered.
type Harness struct {
	log   log.Logger
	n, f  int
	delay int64
	now   int64
	step  int

	order []types.ProcessID
	procs map[types.ProcessID]*process.Process

	policies map[types.ProcessID]mempool.Policy
	inbox    map[types.ProcessID][]envelope
}

// Config bundles the harness's construction-time parameters.
type Config struct {
	Logger       log.Logger
	N, F         int
	Delta        int64
	NetworkDelay int64

	// CheckInvariants, when true, enables each process's post-message
	// invariant assertion; New passes it through unchanged (false if unset).
	CheckInvariants bool
}

// FromParameters derives a harness Config from a config.Parameters,
// converting its wall-clock Delta into the logical-tick unit the harness's
// virtual clock runs on (one tick per millisecond of Delta).
func FromParameters(logger log.Logger, p config.Parameters, checkInvariants bool) Config {
	return Config{
		Logger:          logger,
		N:               p.N,
		F:               p.F,
		Delta:           int64(p.Delta / time.Millisecond),
		NetworkDelay:    1,
		CheckInvariants: checkInvariants,
	}
}

// New builds a fresh universe of N processes sharing one key book setup,
// each seeded at genesis and view 0.
func New(cfg Config) (*Harness, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	delay := cfg.NetworkDelay
	if delay <= 0 {
		delay = 1
	}

	books, _, err := keybook.NewLocalUniverse(cfg.N)
	if err != nil {
		return nil, err
	}

	genesisQC := types.QC{Data: types.VoteData{Z: 1, For: types.GenBlockKey}}

	h := &Harness{
		log:      logger,
		n:        cfg.N,
		f:        cfg.F,
		delay:    delay,
		order:    make([]types.ProcessID, 0, cfg.N),
		procs:    make(map[types.ProcessID]*process.Process, cfg.N),
		policies: make(map[types.ProcessID]mempool.Policy, cfg.N),
		inbox:    make(map[types.ProcessID][]envelope),
	}

	for _, book := range books {
		id := book.Self()
		m, err := metrics.New("morpheus_sim", prometheus.NewRegistry())
		if err != nil {
			return nil, err
		}
		p := process.New(process.Config{
			Logger:    logger,
			Book:      book,
			Self:      id,
			N:         cfg.N,
			F:         cfg.F,
			Delta:     cfg.Delta,
			GenesisQC: genesisQC,
			Metrics:   m,
		})
		p.CheckInvariants = cfg.CheckInvariants
		h.order = append(h.order, id)
		h.procs[id] = p
		h.policies[id] = mempool.NeverPolicy{}
	}

	return h, nil
}

// SetPolicy assigns a transaction-generation policy to a process (spec
// §6.5); the default, if unset, is mempool.NeverPolicy.
func (h *Harness) SetPolicy(id types.ProcessID, policy mempool.Policy) {
	h.policies[id] = policy
}

// Process returns the process for id, or nil if id is not in this universe.
func (h *Harness) Process(id types.ProcessID) *process.Process { return h.procs[id] }

// Processes returns every process id in the universe, in construction order.
func (h *Harness) Processes() []types.ProcessID {
	out := make([]types.ProcessID, len(h.order))
	copy(out, h.order)
	return out
}

// Now returns the harness's current logical time.
func (h *Harness) Now() int64 { return h.now }

// ExtractLog returns process id's locally observed finalized transaction
// log (spec §4.8), or nil if id is unknown.
func (h *Harness) ExtractLog(id types.ProcessID) []types.Transaction {
	p, ok := h.procs[id]
	if !ok {
		return nil
	}
	return order.ExtractLog(p.Index())
}

// Enqueue injects a transaction directly into a process's mempool, bypassing
// any assigned tx-gen policy.
func (h *Harness) Enqueue(id types.ProcessID, tx types.Transaction) {
	if p, ok := h.procs[id]; ok {
		p.Enqueue(tx)
	}
}

// Step advances the simulation by one logical tick: applies tx-gen
// policies, advances every process (which may itself produce and vote),
// then delivers whatever is due.
func (h *Harness) Step() {
	h.now++
	h.step++

	for _, id := range h.order {
		if tx, ok := h.policies[id].ShouldGenerate(h.step, h.procs[id].Views().View()); ok {
			h.procs[id].Enqueue(tx)
		}
	}

	for _, id := range h.order {
		h.route(id, h.procs[id].Advance(h.now))
	}

	h.deliverDue()
}

// Run steps the harness n times.
func (h *Harness) Run(steps int) {
	for i := 0; i < steps; i++ {
		h.Step()
	}
}

// route dispatches the outbound effects of one process's activity. Per the
// reference semantics ("when a correct process sends a message to all
// processes, it regards that message as immediately received by itself"),
// self-addressed copies are delivered synchronously; every other
// destination is queued for FIFO delivery after the network delay.
func (h *Harness) route(from types.ProcessID, out []types.Outbound) {
	for _, o := range out {
		for _, to := range h.destinations(o) {
			if to == from {
				more, err := h.procs[to].ProcessMessage(o.Message, from)
				if err != nil {
					h.log.Error("self-delivery failed", "process", to, "err", err)
					continue
				}
				h.route(to, more)
				continue
			}
			h.inbox[to] = append(h.inbox[to], envelope{
				from: from, to: to, message: o.Message, deliverAt: h.now + h.delay,
			})
		}
	}
}

func (h *Harness) destinations(o types.Outbound) []types.ProcessID {
	if o.To != nil {
		return []types.ProcessID{*o.To}
	}
	return h.order
}

// deliverDue hands every envelope whose deliverAt has arrived to its
// destination, preserving FIFO order per destination, and recursively
// routes whatever that delivery produces.
func (h *Harness) deliverDue() {
	for _, id := range h.order {
		envs := h.inbox[id]
		if len(envs) == 0 {
			continue
		}
		var remaining []envelope
		for _, e := range envs {
			if e.deliverAt > h.now {
				remaining = append(remaining, e)
				continue
			}
			out, err := h.procs[id].ProcessMessage(e.message, e.from)
			if err != nil {
				h.log.Error("message delivery failed", "to", id, "from", e.from, "err", err)
				continue
			}
			h.route(id, out)
		}
		h.inbox[id] = remaining
	}
}
