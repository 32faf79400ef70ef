package hashledger

import "errors"

var (
	// ErrAlreadyLinked is returned when a record that already has a successor
	// is asked to link another one.
	ErrAlreadyLinked = errors.New("record already has a successor")

	// ErrNoSuccessor marks the tail of the chain.
	ErrNoSuccessor = errors.New("record has no successor")

	// ErrOutOfRange is returned for a position outside [0, Len()).
	ErrOutOfRange = errors.New("position out of range")

	// ErrRecoveryFailed means every ordering of the payload was tried and none
	// reproduced the trusted commitment.
	ErrRecoveryFailed = errors.New("no payload ordering matches the trusted commitment")

	// ErrRecoveryInconclusive means the search stopped before it was exhausted,
	// either at the configured candidate limit or because the context ended.
	ErrRecoveryInconclusive = errors.New("recovery search stopped before completion")

	// ErrPayloadChanged is returned by Repair when the record was overwritten
	// between the recovery search and the write-back.
	ErrPayloadChanged = errors.New("payload changed during recovery")

	// ErrUnknownAlgorithm is returned by ParseAlgorithm.
	ErrUnknownAlgorithm = errors.New("unknown digest algorithm")
)
