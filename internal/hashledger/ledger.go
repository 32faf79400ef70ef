package hashledger

import (
	"fmt"
	"iter"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultRecoveryLimit caps the number of candidate orderings RecoverPayload
// hashes before giving up. 1,000,000 covers every ordering of a payload of up
// to nine elements.
const DefaultRecoveryLimit = 1_000_000

// Ledger owns a chain of records and the trusted commitments recorded when
// each record was appended. The trusted reference belongs to the instance;
// two ledgers never see each other's commitments.
type Ledger struct {
	mu            sync.RWMutex
	id            uuid.UUID
	algo          Algorithm
	recoveryLimit int
	logger        *zap.Logger

	head    *Record
	tail    *Record
	trusted []string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithAlgorithm selects the digest used for commitments.
func WithAlgorithm(a Algorithm) Option {
	return func(l *Ledger) { l.algo = a }
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithRecoveryLimit caps the candidates RecoverPayload will hash.
// Zero or a negative value removes the cap.
func WithRecoveryLimit(n int) Option {
	return func(l *Ledger) { l.recoveryLimit = n }
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		id:            uuid.New(),
		algo:          DefaultAlgorithm,
		recoveryLimit: DefaultRecoveryLimit,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.Stringer("ledger_id", l.id))
	return l
}

// ID returns the instance identifier.
func (l *Ledger) ID() uuid.UUID { return l.id }

// Algorithm returns the digest algorithm used by this ledger.
func (l *Ledger) Algorithm() Algorithm { return l.algo }

// Append adds a record holding payload at the tail of the chain and records
// its commitment as trusted.
func (l *Ledger) Append(payload []int) *Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, _ := l.appendLocked(payload)
	return r
}

// AppendEntry is Append for concurrent callers: it returns a snapshot of the
// new record taken under the same lock as the append.
func (l *Ledger) AppendEntry(payload []int) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, pos := l.appendLocked(payload)
	return l.entryLocked(pos, r)
}

func (l *Ledger) appendLocked(payload []int) (*Record, int) {
	prev := Sentinel
	if l.tail != nil {
		prev = l.tail.commitment
	}
	r := NewRecord(l.algo, payload, prev)

	if l.tail == nil {
		l.head = r
	} else if err := l.tail.SetSuccessor(r); err != nil {
		// The tail never has a successor; reaching this is a broken chain.
		panic(fmt.Sprintf("hashledger: link position %d: %v", len(l.trusted), err))
	}
	l.tail = r
	l.trusted = append(l.trusted, r.commitment)
	recordAppend()

	pos := len(l.trusted) - 1
	l.logger.Debug("record appended",
		zap.Int("position", pos),
		zap.String("commitment", r.commitment),
	)
	return r, pos
}

// Len returns the number of records in the chain.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trusted)
}

// Records walks the chain from head to tail following successor links,
// yielding each record with its position. Each call starts again from the
// head. The walk covers the records present when it starts; records appended
// while it is in progress are not visited.
//
// The yielded records are live: reading them while another goroutine runs
// Verify, Overwrite or Repair races. Concurrent readers use Entries.
func (l *Ledger) Records() iter.Seq2[int, *Record] {
	return func(yield func(int, *Record) bool) {
		l.mu.RLock()
		head, n := l.head, len(l.trusted)
		l.mu.RUnlock()

		walk(head, n)(yield)
	}
}

// walk follows successor links from head for at most n records. It never
// reads the link of the n-th record, which may be written by a concurrent
// Append.
func walk(head *Record, n int) iter.Seq2[int, *Record] {
	return func(yield func(int, *Record) bool) {
		r := head
		for i := 0; i < n && r != nil; i++ {
			if !yield(i, r) {
				return
			}
			if i == n-1 {
				return
			}
			r, _ = r.Successor()
		}
	}
}

// Entry is a point-in-time copy of a record and its trusted commitment.
type Entry struct {
	Position       int    `json:"position"`
	Payload        []int  `json:"payload"`
	Commitment     string `json:"commitment"`
	PrevCommitment string `json:"prev_commitment"`
	Trusted        string `json:"trusted_commitment"`
}

func (l *Ledger) entryLocked(pos int, r *Record) Entry {
	return Entry{
		Position:       pos,
		Payload:        r.Payload(),
		Commitment:     r.commitment,
		PrevCommitment: r.prevCommitment,
		Trusted:        l.trusted[pos],
	}
}

// Entries returns a snapshot of every record in chain order, taken under the
// ledger's read lock.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, len(l.trusted))
	for i, r := range walk(l.head, len(l.trusted)) {
		out = append(out, l.entryLocked(i, r))
	}
	return out
}

// EntryAt returns a snapshot of the record at position.
func (l *Ledger) EntryAt(position int) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, err := l.getLocked(position)
	if err != nil {
		return Entry{}, err
	}
	return l.entryLocked(position, r), nil
}

// Get returns the record at position.
func (l *Ledger) Get(position int) (*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.getLocked(position)
}

func (l *Ledger) getLocked(position int) (*Record, error) {
	if position < 0 || position >= len(l.trusted) {
		return nil, fmt.Errorf("get record %d: %w", position, ErrOutOfRange)
	}
	for i, r := range walk(l.head, len(l.trusted)) {
		if i == position {
			return r, nil
		}
	}
	return nil, fmt.Errorf("get record %d: %w", position, ErrOutOfRange)
}

// Overwrite replaces the payload at position without recomputing its
// commitment, under the ledger's write lock, and returns a snapshot of the
// overwritten record.
func (l *Ledger) Overwrite(position int, payload []int) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.getLocked(position)
	if err != nil {
		return Entry{}, err
	}
	r.SetPayload(payload)
	l.logger.Warn("record payload overwritten", zap.Int("position", position))
	return l.entryLocked(position, r), nil
}

// Root returns the commitment of the tail record, or Sentinel when the
// ledger is empty.
func (l *Ledger) Root() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.tail == nil {
		return Sentinel
	}
	return l.tail.commitment
}

// TrustedCommitmentAt returns the commitment recorded when the record at
// position was appended.
func (l *Ledger) TrustedCommitmentAt(position int) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if position < 0 || position >= len(l.trusted) {
		return "", fmt.Errorf("trusted commitment %d: %w", position, ErrOutOfRange)
	}
	return l.trusted[position], nil
}

// RecomputeAll recomputes every record's commitment in place. Previous
// commitment links are left as they were fixed at append time, so an edited
// payload shows up at its own position only.
func (l *Ledger) RecomputeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recomputeLocked()
}

func (l *Ledger) recomputeLocked() {
	for _, r := range walk(l.head, len(l.trusted)) {
		r.RecomputeCommitment()
	}
}

// Verify recomputes all commitments and reports whether every one of them
// equals the trusted commitment at the same position.
func (l *Ledger) Verify() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.recomputeLocked()
	for i, r := range walk(l.head, len(l.trusted)) {
		if r.commitment != l.trusted[i] {
			recordVerification(false)
			return false
		}
	}
	recordVerification(true)
	return true
}

// Divergence describes the first record whose live commitment no longer
// matches the trusted reference. Payload is copied when the divergence is
// located; Record is the live record.
type Divergence struct {
	Position int
	Record   *Record
	Payload  []int
	Trusted  string
	Actual   string
}

// LocateDivergence recomputes commitments and returns the lowest position
// whose commitment differs from the trusted one. Later mismatches are not
// reported. The boolean is false when the chain is intact.
func (l *Ledger) LocateDivergence() (Divergence, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, r := range walk(l.head, len(l.trusted)) {
		actual := r.RecomputeCommitment()
		if actual != l.trusted[i] {
			ledgerDivergencesTotal.Inc()
			l.logger.Warn("ledger divergence located",
				zap.Int("position", i),
				zap.String("trusted", l.trusted[i]),
				zap.String("actual", actual),
			)
			return Divergence{
				Position: i,
				Record:   r,
				Payload:  r.Payload(),
				Trusted:  l.trusted[i],
				Actual:   actual,
			}, true
		}
	}
	return Divergence{}, false
}
