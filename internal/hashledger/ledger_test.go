package hashledger_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/jmerrifield20/hashledger/internal/hashledger"
)

func buildLedger(t *testing.T, payloads ...[]int) *hashledger.Ledger {
	t.Helper()
	l := hashledger.New()
	for _, p := range payloads {
		l.Append(p)
	}
	return l
}

func samplePayloads(n int) [][]int {
	out := make([][]int, n)
	for i := range out {
		out[i] = []int{i, i + 1, i * 2, 7}
	}
	return out
}

func TestNew_empty(t *testing.T) {
	l := hashledger.New()
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
	if l.Root() != hashledger.Sentinel {
		t.Errorf("Root() on empty ledger: got %q, want Sentinel", l.Root())
	}
	if !l.Verify() {
		t.Error("empty ledger should verify")
	}
	if _, ok := l.LocateDivergence(); ok {
		t.Error("empty ledger should have no divergence")
	}
	for range l.Records() {
		t.Fatal("empty ledger yielded a record")
	}
}

func TestAppend_chainsCorrectly(t *testing.T) {
	for _, n := range []int{1, 2, 5, 12} {
		payloads := samplePayloads(n)
		l := buildLedger(t, payloads...)

		count := 0
		prev := hashledger.Sentinel
		for i, r := range l.Records() {
			if i != count {
				t.Fatalf("n=%d: position %d yielded out of order (want %d)", n, i, count)
			}
			if !slices.Equal(r.Payload(), payloads[i]) {
				t.Errorf("n=%d pos=%d: payload %v, want %v", n, i, r.Payload(), payloads[i])
			}
			if r.PrevCommitment() != prev {
				t.Errorf("n=%d pos=%d: chain broken", n, i)
			}
			trusted, err := l.TrustedCommitmentAt(i)
			if err != nil {
				t.Fatal(err)
			}
			if trusted != r.Commitment() {
				t.Errorf("n=%d pos=%d: trusted %q != commitment %q", n, i, trusted, r.Commitment())
			}
			prev = r.Commitment()
			count++
		}
		if count != n || l.Len() != n {
			t.Errorf("n=%d: traversed %d records, Len()=%d", n, count, l.Len())
		}
		if l.Root() != prev {
			t.Errorf("n=%d: Root() is not the tail commitment", n)
		}
	}
}

func TestAppend_returnsLinkedRecord(t *testing.T) {
	l := hashledger.New()
	first := l.Append([]int{1})
	second := l.Append([]int{2})

	next, ok := first.Successor()
	if !ok || next != second {
		t.Fatal("first record not linked to second")
	}
	if err := first.SetSuccessor(second); !errors.Is(err, hashledger.ErrAlreadyLinked) {
		t.Errorf("relinking appended record: got %v, want ErrAlreadyLinked", err)
	}
}

func TestRecords_restartableAndStoppable(t *testing.T) {
	l := buildLedger(t, samplePayloads(4)...)

	for pass := 0; pass < 2; pass++ {
		n := 0
		for range l.Records() {
			n++
		}
		if n != 4 {
			t.Errorf("pass %d: visited %d records, want 4", pass, n)
		}
	}

	n := 0
	for i := range l.Records() {
		n++
		if i == 1 {
			break
		}
	}
	if n != 2 {
		t.Errorf("early break visited %d records, want 2", n)
	}
}

func TestVerify_fresh(t *testing.T) {
	for _, n := range []int{1, 3, 8} {
		if l := buildLedger(t, samplePayloads(n)...); !l.Verify() {
			t.Errorf("n=%d: fresh ledger failed verification", n)
		}
	}
}

func TestVerify_detectsTamperAtEveryPosition(t *testing.T) {
	for n := 1; n <= 6; n++ {
		for k := 0; k < n; k++ {
			l := buildLedger(t, samplePayloads(n)...)
			rec, err := l.Get(k)
			if err != nil {
				t.Fatal(err)
			}
			rec.SetPayload(append(rec.Payload(), 100))

			if l.Verify() {
				t.Errorf("n=%d k=%d: tampered ledger verified", n, k)
			}
			d, ok := l.LocateDivergence()
			if !ok {
				t.Fatalf("n=%d k=%d: no divergence located", n, k)
			}
			if d.Position != k {
				t.Errorf("n=%d k=%d: divergence at %d", n, k, d.Position)
			}
			if d.Record != rec {
				t.Errorf("n=%d k=%d: wrong record returned", n, k)
			}
			trusted, _ := l.TrustedCommitmentAt(k)
			if d.Trusted != trusted || d.Actual == trusted {
				t.Errorf("n=%d k=%d: divergence digests inconsistent", n, k)
			}
		}
	}
}

func TestLocateDivergence_reportsFirstOnly(t *testing.T) {
	l := buildLedger(t, samplePayloads(5)...)
	for _, pos := range []int{3, 1} {
		rec, _ := l.Get(pos)
		rec.SetPayload([]int{-1})
	}
	d, ok := l.LocateDivergence()
	if !ok || d.Position != 1 {
		t.Errorf("LocateDivergence() = (%d, %v), want (1, true)", d.Position, ok)
	}
}

func TestLedgers_doNotShareTrustedReference(t *testing.T) {
	a := buildLedger(t, []int{1, 2, 3})
	b := buildLedger(t, []int{9, 9}, []int{8})

	if a.Len() != 1 || b.Len() != 2 {
		t.Fatalf("Len(): a=%d b=%d, want 1 and 2", a.Len(), b.Len())
	}
	if _, err := a.TrustedCommitmentAt(1); !errors.Is(err, hashledger.ErrOutOfRange) {
		t.Errorf("ledger a sees ledger b's trusted commitments: %v", err)
	}
	if !a.Verify() || !b.Verify() {
		t.Error("independent ledgers should both verify")
	}
	if a.ID() == b.ID() {
		t.Error("ledger ids collide")
	}
}

func TestTrustedCommitmentAt_outOfRange(t *testing.T) {
	l := buildLedger(t, samplePayloads(2)...)
	for _, pos := range []int{-1, 2, 100} {
		if _, err := l.TrustedCommitmentAt(pos); !errors.Is(err, hashledger.ErrOutOfRange) {
			t.Errorf("TrustedCommitmentAt(%d): got %v, want ErrOutOfRange", pos, err)
		}
		if _, err := l.Get(pos); !errors.Is(err, hashledger.ErrOutOfRange) {
			t.Errorf("Get(%d): got %v, want ErrOutOfRange", pos, err)
		}
	}
}

func TestTrustedCommitmentAt_unchangedByRecompute(t *testing.T) {
	l := buildLedger(t, samplePayloads(3)...)
	before, _ := l.TrustedCommitmentAt(1)

	rec, _ := l.Get(1)
	rec.SetPayload([]int{0})
	l.RecomputeAll()

	after, _ := l.TrustedCommitmentAt(1)
	if before != after {
		t.Error("trusted commitment altered after append")
	}
	if rec.Commitment() == before {
		t.Error("RecomputeAll did not update the live commitment")
	}
}

func TestRecomputeAll_keepsLinks(t *testing.T) {
	l := buildLedger(t, samplePayloads(3)...)
	second, _ := l.Get(1)
	third, _ := l.Get(2)
	link := third.PrevCommitment()

	second.SetPayload([]int{5, 5, 5})
	l.RecomputeAll()

	if third.PrevCommitment() != link {
		t.Error("RecomputeAll rewrote a previous-commitment link")
	}
	if d, ok := l.LocateDivergence(); !ok || d.Position != 1 {
		t.Errorf("edit should surface at position 1 only, got (%d, %v)", d.Position, ok)
	}
}

func TestWithAlgorithm(t *testing.T) {
	sha := buildLedger(t, []int{1, 2})
	blake := hashledger.New(hashledger.WithAlgorithm(hashledger.BLAKE2b256))
	blake.Append([]int{1, 2})

	if blake.Algorithm() != hashledger.BLAKE2b256 {
		t.Errorf("Algorithm() = %q", blake.Algorithm())
	}
	if blake.Root() == sha.Root() {
		t.Error("different algorithms produced the same root")
	}
	if !blake.Verify() {
		t.Error("blake2b ledger failed verification")
	}
}

func TestOverwrite(t *testing.T) {
	l := buildLedger(t, []int{1, 2}, []int{3, 4})
	e, err := l.Overwrite(1, []int{4, 3})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(e.Payload, []int{4, 3}) || e.Position != 1 {
		t.Errorf("Overwrite returned %+v", e)
	}
	if e.Commitment != e.Trusted {
		t.Error("Overwrite must not recompute the stored commitment")
	}
	if d, ok := l.LocateDivergence(); !ok || d.Position != 1 {
		t.Errorf("LocateDivergence() = (%d, %v), want (1, true)", d.Position, ok)
	}
	if _, err := l.Overwrite(2, nil); !errors.Is(err, hashledger.ErrOutOfRange) {
		t.Errorf("Overwrite(2): got %v, want ErrOutOfRange", err)
	}
}
