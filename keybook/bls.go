package keybook

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/luxfi/crypto/bls"

	"github.com/luxfi/morpheus/types"
)

// Bls is a KeyBook backed by real BLS12-381 signatures (github.com/luxfi/crypto/bls),
// the same primitive github.com/luxfi/warp's validator sets aggregate over.
// A ThresholdSignature here is the BLS-aggregated signature alongside the
// bitmap of contributing authors, mirroring warp's canonical-validator-set +
// signer-bitmap aggregation rather than Local's per-partial JSON envelope:
// VerifyAggregate re-derives the combined public key for the claimed signer
// set and checks a single pairing against the aggregate, instead of
// re-verifying every partial individually.
type Bls struct {
	self    types.ProcessID
	sk      *bls.SecretKey
	pubKeys map[types.ProcessID]*bls.PublicKey
}

// NewBlsUniverse generates n real BLS keypairs and returns one KeyBook per
// process, each aware of every process's public key.
func NewBlsUniverse(n int) ([]*Bls, UniverseSetup, error) {
	pubKeys := make(map[types.ProcessID]*bls.PublicKey, n)
	secretKeys := make(map[types.ProcessID]*bls.SecretKey, n)
	for i := 1; i <= n; i++ {
		seed := make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			return nil, nil, fmt.Errorf("keybook: generating BLS seed for process %d: %w", i, err)
		}
		sk, err := bls.SecretKeyFromSeed(seed)
		if err != nil {
			return nil, nil, fmt.Errorf("keybook: deriving BLS key for process %d: %w", i, err)
		}
		id := types.ProcessID(i)
		secretKeys[id] = sk
		pubKeys[id] = sk.PublicKey()
	}

	books := make([]*Bls, 0, n)
	for i := 1; i <= n; i++ {
		id := types.ProcessID(i)
		books = append(books, &Bls{self: id, sk: secretKeys[id], pubKeys: pubKeys})
	}
	return books, universeSetup{n: n}, nil
}

func (b *Bls) Self() types.ProcessID { return b.self }

func (b *Bls) Sign(data []byte) (types.PartialSignature, error) {
	sig, err := b.sk.Sign(data)
	if err != nil {
		return nil, fmt.Errorf("keybook: BLS signing: %w", err)
	}
	return types.PartialSignature(bls.SignatureToBytes(sig)), nil
}

func (b *Bls) VerifyPartial(author types.ProcessID, data []byte, partial types.PartialSignature) bool {
	pub, ok := b.pubKeys[author]
	if !ok {
		return false
	}
	sig, err := bls.SignatureFromBytes(partial)
	if err != nil {
		return false
	}
	return bls.Verify(pub, sig, data)
}

// blsAggregate is the wire form of a Bls ThresholdSignature: the folded
// signature plus exactly which authors contributed to it.
type blsAggregate struct {
	Signers []types.ProcessID
	Sig     []byte
}

func (b *Bls) SignAggregate(threshold int, partials map[types.ProcessID]types.PartialSignature, data []byte) (types.ThresholdSignature, error) {
	if len(partials) < threshold {
		return nil, ErrBelowThreshold
	}

	sigs := make([]*bls.Signature, 0, len(partials))
	signers := make([]types.ProcessID, 0, len(partials))
	for author, partial := range partials {
		if !b.VerifyPartial(author, data, partial) {
			return nil, fmt.Errorf("keybook: partial signature from %s does not verify", author)
		}
		sig, err := bls.SignatureFromBytes(partial)
		if err != nil {
			return nil, fmt.Errorf("keybook: malformed partial signature from %s: %w", author, err)
		}
		sigs = append(sigs, sig)
		signers = append(signers, author)
	}

	aggSig, err := bls.AggregateSignatures(sigs)
	if err != nil {
		return nil, fmt.Errorf("keybook: aggregating BLS signatures: %w", err)
	}

	encoded, err := json.Marshal(blsAggregate{Signers: signers, Sig: bls.SignatureToBytes(aggSig)})
	if err != nil {
		return nil, fmt.Errorf("keybook: encoding BLS aggregate: %w", err)
	}
	return types.ThresholdSignature(encoded), nil
}

func (b *Bls) VerifyAggregate(threshold int, data []byte, sig types.ThresholdSignature) bool {
	var agg blsAggregate
	if err := json.Unmarshal(sig, &agg); err != nil {
		return false
	}
	if len(agg.Signers) < threshold {
		return false
	}

	seen := make(map[types.ProcessID]struct{}, len(agg.Signers))
	pubs := make([]*bls.PublicKey, 0, len(agg.Signers))
	for _, author := range agg.Signers {
		if _, dup := seen[author]; dup {
			return false
		}
		seen[author] = struct{}{}
		pub, ok := b.pubKeys[author]
		if !ok {
			return false
		}
		pubs = append(pubs, pub)
	}

	combined, err := bls.AggregatePublicKeys(pubs)
	if err != nil {
		return false
	}
	blsSig, err := bls.SignatureFromBytes(agg.Sig)
	if err != nil {
		return false
	}
	return bls.Verify(combined, blsSig, data)
}
