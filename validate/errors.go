// Package validate checks a received block against the Morpheus validity
// rules (spec §4.4) before it is handed to the DAG index or the voting
// engine.
package validate

import "fmt"

// Kind enumerates the ways block validation can fail, mirroring
// BlockValidationError in the original reference implementation.
type Kind string

const (
	KindInvalidSignature              Kind = "invalid_signature"
	KindInvalidGenesis                Kind = "invalid_genesis_block"
	KindMissingAuthor                 Kind = "missing_author"
	KindEmptyPrev                     Kind = "empty_prev_pointers"
	KindPrevViewTooHigh                Kind = "prev_qc_view_greater_than_block_view"
	KindPrevHeightNotLess              Kind = "prev_qc_height_not_less_than_block_height"
	KindInvalidPrevQcSignature         Kind = "invalid_prev_qc_signature"
	KindOneQcNotZ1                     Kind = "one_qc_not_z1"
	KindOneQcHeightNotLess             Kind = "one_qc_height_not_less_than_block_height"
	KindInvalidOneQcSignature          Kind = "invalid_one_qc_signature"
	KindInvalidGenesisOneQc            Kind = "invalid_genesis_one_qc"
	KindHeightNotSuccessor             Kind = "invalid_height"
	KindTypeDataMismatch               Kind = "block_data_type_mismatch"
	KindMissingPredecessorTr           Kind = "missing_predecessor_tr_block"
	KindEmptyTransactions              Kind = "empty_transactions"
	KindNotLeader                      Kind = "not_leader"
	KindMissingPredecessorLead         Kind = "missing_predecessor_lead_block"
	KindWrongOneQcForLead              Kind = "incorrect_one_qc_for_lead_block"
	KindJustificationTooSmall          Kind = "invalid_justification_size"
	KindInvalidJustificationSignature  Kind = "invalid_justification_signature"
	KindJustificationQcGreaterThanOneQc Kind = "justification_qc_greater_than_one_qc"
)

// Error carries the failing Kind plus whatever offending data triggered it,
// for logging and for tests that assert on specific failure modes.
type Error struct {
	Kind Kind
	// Fields holds human-readable, kind-specific context (e.g. "prev_view",
	// "block_view"); it is informational only, never machine-parsed.
	Fields map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("validate: %s %v", e.Kind, e.Fields)
}

func newErr(kind Kind, fields map[string]any) *Error {
	return &Error{Kind: kind, Fields: fields}
}
