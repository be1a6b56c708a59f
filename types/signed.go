package types

// PartialSignature is one process's contribution toward a threshold
// signature. Its internal structure is owned by the keybook package (§6.2);
// types treats it as an opaque blob so Signed[T] can be a plain value type.
type PartialSignature []byte

// ThresholdSignature is an aggregated signature proving a threshold number
// of distinct partial signatures over the same data: n-f for a QC, f+1 for
// an end-view certificate (§3, §6.2).
type ThresholdSignature []byte

// Signed wraps data with a single process's partial signature and identity.
type Signed[T any] struct {
	Data      T
	Author    ProcessID
	Signature PartialSignature
}

// ThreshSigned wraps data with an aggregated threshold signature proving
// quorum agreement. A QC is ThreshSigned[VoteData].
type ThreshSigned[T any] struct {
	Data      T
	Signature ThresholdSignature
}

// QC is the aggregated quorum certificate over VoteData.
type QC = ThreshSigned[VoteData]
