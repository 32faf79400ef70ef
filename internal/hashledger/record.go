package hashledger

import (
	"fmt"
	"slices"
)

// Record is a single link of the chain. Its commitment covers the payload
// and the commitment of its predecessor.
//
// A Record is not safe for concurrent mutation; the Ledger that owns it
// serialises appends, not payload edits.
type Record struct {
	algo           Algorithm
	payload        []int
	prevCommitment string
	commitment     string
	next           *Record
}

// NewRecord creates an unlinked record and computes its commitment.
// The payload is copied.
func NewRecord(algo Algorithm, payload []int, prevCommitment string) *Record {
	r := &Record{
		algo:           algo,
		payload:        slices.Clone(payload),
		prevCommitment: prevCommitment,
	}
	r.commitment = commit(algo, r.payload, prevCommitment)
	return r
}

// Payload returns a copy of the record's current payload.
func (r *Record) Payload() []int {
	return slices.Clone(r.payload)
}

// SetPayload overwrites the payload without touching the stored commitment.
// The change stays invisible until the commitment is recomputed, which is
// exactly how out-of-band corruption looks to a verifier.
func (r *Record) SetPayload(payload []int) {
	r.payload = slices.Clone(payload)
}

// Commitment returns the stored commitment.
func (r *Record) Commitment() string { return r.commitment }

// PrevCommitment returns the commitment this record was linked to when it
// was created.
func (r *Record) PrevCommitment() string { return r.prevCommitment }

// RecomputeCommitment recomputes the commitment from the current payload and
// previous commitment, stores it and returns it.
func (r *Record) RecomputeCommitment() string {
	r.commitment = commit(r.algo, r.payload, r.prevCommitment)
	return r.commitment
}

// SetSuccessor links next after r. A record takes at most one successor;
// a second call returns ErrAlreadyLinked and leaves the existing link alone.
func (r *Record) SetSuccessor(next *Record) error {
	if next == nil {
		return fmt.Errorf("set successor: nil record")
	}
	if r.next != nil {
		return ErrAlreadyLinked
	}
	r.next = next
	return nil
}

// Successor returns the following record, or false at the tail.
func (r *Record) Successor() (*Record, bool) {
	return r.next, r.next != nil
}

// NextOrError is Successor for callers that prefer an error at the tail.
func (r *Record) NextOrError() (*Record, error) {
	if r.next == nil {
		return nil, ErrNoSuccessor
	}
	return r.next, nil
}

// String implements fmt.Stringer.
func (r *Record) String() string {
	return fmt.Sprintf("commitment: %s\npayload: %v", r.commitment, r.payload)
}
