// Package votes collects partial signatures over VoteData and forms
// threshold certificates (QCs) once a quorum is reached (spec §4.2, §6.2).
package votes

import (
	"fmt"

	"github.com/luxfi/log"

	"github.com/luxfi/morpheus/codec"
	"github.com/luxfi/morpheus/keybook"
	"github.com/luxfi/morpheus/types"
)

// ErrDuplicateVoter is returned by RecordVote when the same author has
// already cast a (possibly different) vote for this VoteData.
var ErrDuplicateVoter = fmt.Errorf("votes: duplicate voter")

// Tracker accumulates partial signatures per VoteData and forms a QC once
// quorum partials have been collected, analogous to QuorumTrack in the
// Rust reference (voting.rs).
type Tracker struct {
	log       log.Logger
	book      keybook.KeyBook
	threshold int

	partials map[types.VoteData]map[types.ProcessID]types.PartialSignature
	formed   map[types.VoteData]types.QC
}

// NewTracker constructs a Tracker that forms a QC once threshold distinct
// partials have been collected for a given VoteData.
func NewTracker(logger log.Logger, book keybook.KeyBook, threshold int) *Tracker {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Tracker{
		log:       logger,
		book:      book,
		threshold: threshold,
		partials:  make(map[types.VoteData]map[types.ProcessID]types.PartialSignature),
		formed:    make(map[types.VoteData]types.QC),
	}
}

// RecordVote adds a single process's partial signature for v. It returns
// the QC if this vote completed a quorum (or quorum was already reached),
// or false otherwise. A second vote from the same author for the same v is
// rejected with ErrDuplicateVoter; a vote from the same author for a
// *different* v is accepted independently, since VoteData keys the tracker.
func (t *Tracker) RecordVote(vote types.Signed[types.VoteData]) (types.QC, bool, error) {
	v := vote.Data
	if qc, ok := t.formed[v]; ok {
		return qc, true, nil
	}

	set := t.partials[v]
	if set == nil {
		set = make(map[types.ProcessID]types.PartialSignature)
		t.partials[v] = set
	}
	if _, ok := set[vote.Author]; ok {
		return types.QC{}, false, ErrDuplicateVoter
	}
	set[vote.Author] = vote.Signature

	if len(set) < t.threshold {
		return types.QC{}, false, nil
	}

	data := codec.Canonical(v)
	sig, err := t.book.SignAggregate(t.threshold, set, data)
	if err != nil {
		return types.QC{}, false, fmt.Errorf("votes: aggregating quorum for %s: %w", v.For, err)
	}
	qc := types.QC{Data: v, Signature: sig}
	t.formed[v] = qc
	t.log.Info("quorum certificate formed", "for", v.For, "z", v.Z)
	return qc, true, nil
}

// Count returns the number of distinct partials collected so far for v.
func (t *Tracker) Count(v types.VoteData) int {
	return len(t.partials[v])
}

// Formed reports whether a QC has already been formed for v, returning it
// if so.
func (t *Tracker) Formed(v types.VoteData) (types.QC, bool) {
	qc, ok := t.formed[v]
	return qc, ok
}
