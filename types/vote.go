package types

// VoteData is the payload voted on and aggregated into a QC. Z is the vote
// level: 0 (data-availability), 1 (first round of agreement), or 2
// (finalization trigger).
type VoteData struct {
	Z  uint8
	For BlockKey
}

// CompareQC implements the preorder on QCs from §3:
//
//	compare_qc(a, b) := lex(a.view, a.type, a.height) vs lex(b.view, b.type, b.height)
//
// Note it deliberately ignores Z: two QCs for the same block at different
// levels compare equal. Callers that must distinguish 1-QCs from 2-QCs (§4.3,
// §4.8) check Z explicitly rather than relying on this ordering.
func CompareQC(a, b VoteData) int {
	if a.For.View != b.For.View {
		if a.For.View < b.For.View {
			return -1
		}
		return 1
	}
	if a.For.Type != b.For.Type {
		if a.For.Type < b.For.Type {
			return -1
		}
		return 1
	}
	if a.For.Height != b.For.Height {
		if a.For.Height < b.For.Height {
			return -1
		}
		return 1
	}
	return 0
}

// MaxQC returns whichever of a, b is greater under CompareQC, preferring a on
// a tie.
func MaxQC(a, b VoteData) VoteData {
	if CompareQC(b, a) > 0 {
		return b
	}
	return a
}

// StartView is the payload of a StartView message: a process announcing it
// has entered View with its greatest known 1-QC, used as leader-block
// justification (§3, §4.6).
type StartView struct {
	View View
	Max1QC ThreshSigned[VoteData]
}
