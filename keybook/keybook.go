// Package keybook specifies the contract of the cryptographic collaborator
// the protocol depends on (spec §6.2): an aggregated/threshold signature
// scheme over a fixed universe of processes. The scheme's internals —
// concretely a BLS-like threshold construction, as wired through
// github.com/luxfi/crypto/bls and github.com/luxfi/warp elsewhere in the
// ecosystem — are out of scope for this subsystem; only the contract below
// is. Two implementations ship: Local, an ed25519-backed stand-in used by
// the tests, and Bls, backed by real BLS signatures (see DESIGN.md).
package keybook

import (
	"fmt"

	"github.com/luxfi/morpheus/types"
)

// GlobalData is the once-generated, shared setup parameters for the
// signature universe (§6.2: "generated once").
type GlobalData interface {
	// N is the number of processes the setup was generated for. The shipped
	// implementations return n itself; neither rounds it up to a
	// power-of-two domain.
	N() int
}

// UniverseSetup is the per-universe setup derived from GlobalData, handed to
// every process.
type UniverseSetup interface {
	GlobalData
}

// KeyBook is the per-process view of the signature scheme: its own secret
// key, the public keys of every process, and the shared setup. It exposes
// exactly the four operations of §6.2.
type KeyBook interface {
	// Self is this process's identity within the universe.
	Self() types.ProcessID

	// Sign produces this process's partial signature over data.
	Sign(data []byte) (types.PartialSignature, error)

	// VerifyPartial checks a partial signature by a specific author over data.
	VerifyPartial(author types.ProcessID, data []byte, partial types.PartialSignature) bool

	// SignAggregate combines a set of (author, partial) pairs — already
	// known to number >= threshold — into a single threshold signature over
	// data.
	SignAggregate(threshold int, partials map[types.ProcessID]types.PartialSignature, data []byte) (types.ThresholdSignature, error)

	// VerifyAggregate checks a threshold signature over data against a
	// required threshold.
	VerifyAggregate(threshold int, data []byte, sig types.ThresholdSignature) bool
}

// ErrBelowThreshold is returned by SignAggregate when fewer than threshold
// partials are supplied.
var ErrBelowThreshold = fmt.Errorf("keybook: fewer partial signatures than threshold")
