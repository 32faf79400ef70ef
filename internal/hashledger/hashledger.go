// Package hashledger implements an in-memory hash-linked ledger of integer
// payloads.
//
// Every record commits to its payload and to the commitment of the record
// before it; the first record links to Sentinel. At append time each
// commitment is also copied into the ledger's trusted reference. Verify
// recomputes the live commitments and compares them against that reference,
// LocateDivergence reports the first position that no longer matches, and
// RecoverPayload searches the orderings of a corrupted payload for the one
// that reproduces the trusted commitment.
//
// Recovery only reverses element reordering. A payload whose elements were
// substituted, inserted or removed is reported with ErrRecoveryFailed.
package hashledger
