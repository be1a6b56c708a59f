package types

import "fmt"

// BlockKey uniquely identifies a block. Author and Hash are optional: only
// the genesis block has no author (ProcessID zero value); Hash is set only
// when HasHash is true.
type BlockKey struct {
	Type   BlockType
	View   View
	Height Height
	Author ProcessID // 0 == none (genesis only)
	Slot   Slot
	Hash   Hash
	HasHash bool
}

// GenBlockKey is the well-known genesis block key (§6.4).
var GenBlockKey = BlockKey{
	Type:   BlockGenesis,
	View:   GenesisView,
	Height: 0,
	Author: 0,
	Slot:   0,
}

func (k BlockKey) String() string {
	return fmt.Sprintf("%s(view=%d,height=%d,author=%s,slot=%d)", k.Type, int64(k.View), uint64(k.Height), k.Author, uint64(k.Slot))
}

// Transaction is an opaque, hashable, serializable leaf payload. The
// protocol never interprets its contents.
type Transaction []byte

// BlockData is the closed tagged union of per-type block payloads.
type BlockData interface {
	isBlockData()
}

type GenesisData struct{}

func (GenesisData) isBlockData() {}

type TransactionData struct {
	Transactions []Transaction
}

func (TransactionData) isBlockData() {}

type LeaderData struct {
	// Justification carries >= n-f signed StartView messages; populated only
	// for the first leader block of a view, or one whose same-author
	// predecessor leader block is from an earlier view.
	Justification []Signed[StartView]
}

func (LeaderData) isBlockData() {}

// Block is a vertex in the Morpheus DAG.
type Block struct {
	Key  BlockKey
	Prev []ThreshSigned[VoteData] // QCs for predecessor blocks, order preserved
	One  ThreshSigned[VoteData]   // the block's mandatory 1-QC
	Data BlockData
}

// MaxPrevHeight returns the maximum height among Prev QCs' referenced blocks,
// or (0, false) if Prev is empty (used by validation).
func (b *Block) MaxPrevHeight() (Height, bool) {
	if len(b.Prev) == 0 {
		return 0, false
	}
	max := b.Prev[0].Data.For.Height
	for _, p := range b.Prev[1:] {
		if p.Data.For.Height > max {
			max = p.Data.For.Height
		}
	}
	return max, true
}
