package keybook

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/luxfi/morpheus/types"
)

// Local is a deterministic, ed25519-backed stand-in for a real threshold
// signature scheme (see package doc). A ThresholdSignature is simply the
// JSON encoding of every partial signature that went into it; VerifyAggregate
// re-verifies each one individually and counts distinct authors against the
// threshold. This gives the protocol layer exactly the §6.2 contract without
// requiring a pairing-friendly curve implementation this module does not own.
type Local struct {
	self    types.ProcessID
	priv    ed25519.PrivateKey
	pubKeys map[types.ProcessID]ed25519.PublicKey
}

type universeSetup struct {
	n int
}

func (u universeSetup) N() int { return u.n }

// NewLocalUniverse generates n ed25519 keypairs and returns one KeyBook per
// process, each aware of every process's public key, plus the shared setup.
func NewLocalUniverse(n int) ([]*Local, UniverseSetup, error) {
	pubKeys := make(map[types.ProcessID]ed25519.PublicKey, n)
	privKeys := make(map[types.ProcessID]ed25519.PrivateKey, n)
	for i := 1; i <= n; i++ {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("keybook: generating key for process %d: %w", i, err)
		}
		pubKeys[types.ProcessID(i)] = pub
		privKeys[types.ProcessID(i)] = priv
	}

	books := make([]*Local, 0, n)
	for i := 1; i <= n; i++ {
		id := types.ProcessID(i)
		books = append(books, &Local{self: id, priv: privKeys[id], pubKeys: pubKeys})
	}
	return books, universeSetup{n: n}, nil
}

func (l *Local) Self() types.ProcessID { return l.self }

func (l *Local) Sign(data []byte) (types.PartialSignature, error) {
	return types.PartialSignature(ed25519.Sign(l.priv, data)), nil
}

func (l *Local) VerifyPartial(author types.ProcessID, data []byte, partial types.PartialSignature) bool {
	pub, ok := l.pubKeys[author]
	if !ok {
		return false
	}
	return ed25519.Verify(pub, data, partial)
}

type aggEntry struct {
	Author types.ProcessID
	Sig    []byte
}

func (l *Local) SignAggregate(threshold int, partials map[types.ProcessID]types.PartialSignature, data []byte) (types.ThresholdSignature, error) {
	if len(partials) < threshold {
		return nil, ErrBelowThreshold
	}
	entries := make([]aggEntry, 0, len(partials))
	for author, sig := range partials {
		if !l.VerifyPartial(author, data, sig) {
			return nil, fmt.Errorf("keybook: partial signature from %s does not verify", author)
		}
		entries = append(entries, aggEntry{Author: author, Sig: []byte(sig)})
	}
	encoded, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("keybook: encoding aggregate: %w", err)
	}
	return types.ThresholdSignature(encoded), nil
}

func (l *Local) VerifyAggregate(threshold int, data []byte, sig types.ThresholdSignature) bool {
	var entries []aggEntry
	if err := json.Unmarshal(sig, &entries); err != nil {
		return false
	}
	seen := make(map[types.ProcessID]struct{}, len(entries))
	for _, e := range entries {
		if !l.VerifyPartial(e.Author, data, e.Sig) {
			return false
		}
		seen[e.Author] = struct{}{}
	}
	return len(seen) >= threshold
}
