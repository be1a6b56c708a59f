// Package codec produces the canonical byte encoding of signable values
// (spec §6.3). Persistence and production wire-format encoding are
// explicitly out of scope for this subsystem (spec §1); this package exists
// solely to produce deterministic bytes for the signature scheme to sign and
// verify over, using encoding/json (field order is fixed by struct
// declaration, map keys are sorted) rather than a bespoke canonical-form
// writer.
package codec

import (
	"encoding/json"
	"fmt"
)

// Canonical returns the deterministic byte encoding of v used as the
// message signed/verified by the keybook.
func Canonical(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// v is always one of our own plain data types; a marshal failure
		// means a programming error, not a runtime condition to recover from.
		panic(fmt.Sprintf("codec: canonical encoding failed: %v", err))
	}
	return b
}
