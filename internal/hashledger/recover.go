package hashledger

import (
	"context"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/combin"
)

// ctxCheckInterval is how many candidates are hashed between context checks.
const ctxCheckInterval = 1024

// RecoverPayload searches the orderings of rec's current payload for one
// whose commitment, linked to rec's previous commitment, equals trusted.
// The record is not modified.
//
// Orderings are enumerated lexicographically from the sorted payload, so each
// distinct ordering is hashed exactly once whatever the payload length or the
// number of repeated elements. The search stops with ErrRecoveryInconclusive
// when the ledger's recovery limit is reached or ctx ends, and with
// ErrRecoveryFailed when every ordering has been tried.
func (l *Ledger) RecoverPayload(ctx context.Context, rec *Record, trusted string) ([]int, error) {
	return l.search(ctx, rec.Payload(), rec.PrevCommitment(), trusted)
}

func (l *Ledger) search(ctx context.Context, payload []int, prev, trusted string) ([]int, error) {
	space := searchSpace(payload)
	l.logger.Debug("payload recovery started",
		zap.Int("payload_len", len(payload)),
		zap.Float64("orderings", space),
		zap.Int("limit", l.recoveryLimit),
	)

	candidate := slices.Clone(payload)
	slices.Sort(candidate)
	tried := 0

	for {
		if l.recoveryLimit > 0 && tried >= l.recoveryLimit {
			l.logger.Warn("payload recovery hit candidate limit",
				zap.Int("limit", l.recoveryLimit),
				zap.Float64("orderings", space),
			)
			recordRecovery(outcomeInconclusive, tried)
			return nil, fmt.Errorf("%w: limit of %d candidates reached out of %.4g orderings",
				ErrRecoveryInconclusive, l.recoveryLimit, space)
		}
		if tried%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				recordRecovery(outcomeInconclusive, tried)
				return nil, fmt.Errorf("%w: %w", ErrRecoveryInconclusive, err)
			}
		}
		tried++

		if commit(l.algo, candidate, prev) == trusted {
			l.logger.Info("payload recovered",
				zap.Int("candidates", tried),
				zap.Ints("payload", candidate),
			)
			recordRecovery(outcomeRecovered, tried)
			return candidate, nil
		}
		if !nextPermutation(candidate) {
			break
		}
	}

	l.logger.Warn("payload recovery exhausted all orderings",
		zap.Int("candidates", tried),
		zap.Ints("payload", payload),
	)
	recordRecovery(outcomeFailed, tried)
	return nil, ErrRecoveryFailed
}

// nextPermutation rearranges a into the next lexicographically greater
// ordering and reports false once a is the last one. Equal elements are
// never swapped with each other, so repeated values produce no duplicates.
func nextPermutation(a []int) bool {
	i := len(a) - 2
	for i >= 0 && a[i] >= a[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(a) - 1
	for a[j] <= a[i] {
		j--
	}
	a[i], a[j] = a[j], a[i]
	slices.Reverse(a[i+1:])
	return true
}

// searchSpace returns the number of distinct orderings of payload, the
// multinomial n! / (c1! c2! ...), computed in log space so that long
// payloads yield +Inf rather than overflowing.
func searchSpace(payload []int) float64 {
	counts := make(map[int]int)
	for _, v := range payload {
		counts[v]++
	}
	logSpace, remaining := 0.0, len(payload)
	for _, c := range counts {
		logSpace += combin.LogGeneralizedBinomial(float64(remaining), float64(c))
		remaining -= c
	}
	return math.Round(math.Exp(logSpace))
}

// snapshot is the state a recovery searches: the payload as it was read,
// the link it is hashed against, and the trusted commitment it must match.
type snapshot struct {
	payload []int
	prev    string
	trusted string
}

func (l *Ledger) snapshotAt(position int) (snapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, err := l.getLocked(position)
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{
		payload: rec.Payload(),
		prev:    rec.prevCommitment,
		trusted: l.trusted[position],
	}, nil
}

// RecoverAt runs the recovery search for the record at position against the
// trusted commitment recorded for that position. The payload is read under
// the ledger lock; the search itself runs without holding it.
func (l *Ledger) RecoverAt(ctx context.Context, position int) ([]int, error) {
	snap, err := l.snapshotAt(position)
	if err != nil {
		return nil, err
	}
	payload, err := l.search(ctx, snap.payload, snap.prev, snap.trusted)
	if err != nil {
		return nil, fmt.Errorf("recover position %d: %w", position, err)
	}
	return payload, nil
}

// Repair recovers the payload at position and writes it back, so the
// record's commitment matches the trusted reference again. If the payload
// was overwritten while the search ran, nothing is written and
// ErrPayloadChanged is returned.
func (l *Ledger) Repair(ctx context.Context, position int) ([]int, error) {
	snap, err := l.snapshotAt(position)
	if err != nil {
		return nil, err
	}
	payload, err := l.search(ctx, snap.payload, snap.prev, snap.trusted)
	if err != nil {
		return nil, fmt.Errorf("recover position %d: %w", position, err)
	}
	if err := l.restore(position, snap.payload, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// restore writes recovered over the record at position, provided its payload
// still equals searched.
func (l *Ledger) restore(position int, searched, recovered []int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.getLocked(position)
	if err != nil {
		return err
	}
	if !slices.Equal(rec.payload, searched) {
		l.logger.Warn("record changed during recovery; not repaired", zap.Int("position", position))
		return fmt.Errorf("repair position %d: %w", position, ErrPayloadChanged)
	}
	rec.SetPayload(recovered)
	rec.RecomputeCommitment()

	l.logger.Info("record repaired", zap.Int("position", position))
	return nil
}
