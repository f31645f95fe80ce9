package tagpool

import (
	"sync"

	"github.com/tagpool/tagpool/pkg/failfast"
)

// AdmissionOutcome is the result of a single SlotLedger.TryAdmit call.
type AdmissionOutcome struct {
	Admitted bool
	Borrowed bool
}

// SlotCounts is a snapshot of one tag's reserved/in-use/borrowed
// counters.
type SlotCounts struct {
	Reserved int
	InUse    int
	Borrowed int
}

// ResizeReport describes the effect of a successful SlotLedger.Resize.
type ResizeReport struct {
	Tag               Tag
	NewReserved       int
	GenericAdjustedTo int
}

type ledgerEntry struct {
	reserved int
	inUse    int
	borrowed int // meaningless for the generic entry itself
}

// SlotLedger tracks reserved/in-use/borrowed slot counts per tag and
// decides whether a tag may admit one more task right now: first
// against its own reservation, then by borrowing a free slot from the
// generic reserve. All mutation happens under a single mutex so the
// pool-wide invariants hold at every observable point; a sync.Cond
// wakes admit waiters on every release or successful resize.
type SlotLedger struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries map[Tag]*ledgerEntry
}

// NewSlotLedger builds a ledger from an initial tag → reserved mapping.
// The generic tag is created with reserved=0 if not present.
func NewSlotLedger(reserved map[Tag]int) *SlotLedger {
	l := &SlotLedger{entries: make(map[Tag]*ledgerEntry, len(reserved)+1)}
	l.cond = sync.NewCond(&l.mu)
	for tag, size := range reserved {
		if size < 0 {
			size = 0
		}
		l.entries[tag] = &ledgerEntry{reserved: size}
	}
	if _, ok := l.entries[Generic]; !ok {
		l.entries[Generic] = &ledgerEntry{}
	}
	return l
}

// entryLocked returns tag's entry, auto-creating it with reserved=0 if
// it has never been seen before; an undeclared tag can only borrow
// from the generic reserve until its own reservation is adjusted up.
func (l *SlotLedger) entryLocked(tag Tag) *ledgerEntry {
	e, ok := l.entries[tag]
	if !ok {
		e = &ledgerEntry{}
		l.entries[tag] = e
	}
	return e
}

func (l *SlotLedger) totalBorrowedLocked() int {
	total := 0
	for tag, e := range l.entries {
		if tag.IsGeneric() {
			continue
		}
		total += e.borrowed
	}
	return total
}

// genericFreeLocked is reserved[null] - (inUse[null] + Σ borrowed[T≠null]).
func (l *SlotLedger) genericFreeLocked() int {
	g := l.entryLocked(Generic)
	return g.reserved - g.inUse - l.totalBorrowedLocked()
}

// TryAdmit admits tag against its own reservation first, falling back
// to a generic borrow capped at reserved[null] if the own reserve is
// exhausted.
func (l *SlotLedger) TryAdmit(tag Tag) AdmissionOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tryAdmitLocked(tag)
}

func (l *SlotLedger) tryAdmitLocked(tag Tag) AdmissionOutcome {
	if tag.IsGeneric() {
		if l.genericFreeLocked() <= 0 {
			return AdmissionOutcome{}
		}
		g := l.entryLocked(Generic)
		g.inUse++
		l.checkInvariantsLocked()
		return AdmissionOutcome{Admitted: true}
	}

	e := l.entryLocked(tag)
	if e.inUse-e.borrowed < e.reserved {
		e.inUse++
		l.checkInvariantsLocked()
		return AdmissionOutcome{Admitted: true}
	}

	if l.genericFreeLocked() > 0 {
		e.inUse++
		e.borrowed++
		l.checkInvariantsLocked()
		return AdmissionOutcome{Admitted: true, Borrowed: true}
	}

	return AdmissionOutcome{}
}

// AdmitBlocking blocks until TryAdmit(tag) admits or stopped reports
// true, in which case it returns ErrPoolStopped. stopped is polled
// under the ledger's own lock each time a waiter wakes, so Broadcast
// (called by Release, Resize, and the pool on Stop) is the only wakeup
// source needed.
func (l *SlotLedger) AdmitBlocking(tag Tag, stopped func() bool) (AdmissionOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		if stopped() {
			return AdmissionOutcome{}, ErrPoolStopped
		}
		if outcome := l.tryAdmitLocked(tag); outcome.Admitted {
			return outcome, nil
		}
		l.cond.Wait()
	}
}

// Release decrements the accounting for one finished task admitted
// under tag, and wakes every admit waiter since capacity may now exist
// for a different tag.
func (l *SlotLedger) Release(tag Tag, wasBorrowed bool) {
	l.mu.Lock()
	e := l.entryLocked(tag)
	failfast.If(e.inUse > 0, "tagpool: release with zero in-use count for tag %v", tag)
	e.inUse--
	if wasBorrowed {
		failfast.If(e.borrowed > 0, "tagpool: release(borrowed) with zero borrowed count for tag %v", tag)
		e.borrowed--
	}
	l.checkInvariantsLocked()
	l.mu.Unlock()
	l.cond.Broadcast()
}

// Broadcast wakes every admit waiter without otherwise mutating the
// ledger; the pool calls this on Stop so blocked Put callers observe
// stopped() and return ErrPoolStopped instead of hanging forever.
func (l *SlotLedger) Broadcast() {
	l.mu.Lock()
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Resize changes tag's reservation: a plain change when useGeneric is
// false, or a capacity-conserving move of slots between tag and the
// generic reserve when useGeneric is true. Shrink never cancels
// in-flight work — a tag whose surplus exceeds the new reservation
// simply stops admitting against its own reserve until enough releases
// bring it back under the bound.
func (l *SlotLedger) Resize(tag Tag, newSize int, useGeneric bool) (ResizeReport, error) {
	if newSize < 0 {
		newSize = 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entryLocked(tag)
	delta := newSize - e.reserved

	if !useGeneric || tag.IsGeneric() {
		e.reserved = newSize
		l.checkInvariantsLocked()
		l.cond.Broadcast()
		return ResizeReport{Tag: tag, NewReserved: newSize, GenericAdjustedTo: l.entryLocked(Generic).reserved}, nil
	}

	g := l.entryLocked(Generic)
	newGeneric := g.reserved - delta
	committed := l.totalBorrowedLocked() + g.inUse
	if newGeneric < 0 || newGeneric < committed {
		return ResizeReport{}, ErrInsufficientGeneric
	}

	e.reserved = newSize
	g.reserved = newGeneric
	l.checkInvariantsLocked()
	l.cond.Broadcast()
	return ResizeReport{Tag: tag, NewReserved: newSize, GenericAdjustedTo: newGeneric}, nil
}

// Snapshot returns a copy of every tracked tag's counters. The map
// returned is owned by the caller; mutating it has no effect on the
// ledger.
func (l *SlotLedger) Snapshot() map[Tag]SlotCounts {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[Tag]SlotCounts, len(l.entries))
	for tag, e := range l.entries {
		out[tag] = SlotCounts{Reserved: e.reserved, InUse: e.inUse, Borrowed: e.borrowed}
	}
	return out
}

// checkInvariantsLocked re-asserts only the invariants that hold
// unconditionally: counts never go negative, and in-use never drops
// below borrowed for the same tag. The own-reserve bound and the
// generic-oversubscription bound are deliberately NOT asserted here —
// both hold only "after settling": a resize may leave a tag or the
// generic pool temporarily over its new bound while in-flight work
// drains, and that is correct, not a bug.
func (l *SlotLedger) checkInvariantsLocked() {
	for tag, e := range l.entries {
		failfast.If(e.inUse >= 0, "tagpool: inUse[%v] is negative", tag)
		failfast.If(e.borrowed >= 0, "tagpool: borrowed[%v] is negative", tag)
		failfast.If(e.inUse >= e.borrowed, "tagpool: inUse[%v] < borrowed[%v]", tag, tag)
	}
}
