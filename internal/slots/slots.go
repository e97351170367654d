package slots

import (
	"fmt"
	"time"
)

// Slots maps wall-clock time onto forging slots and heights onto consensus
// rounds.
type Slots struct {
	epoch           time.Time
	interval        time.Duration
	activeDelegates int64

	now func() time.Time
}

// New returns a Slots whose slot zero starts at epoch. Each slot lasts interval
// and each round contains activeDelegates blocks.
func New(epoch time.Time, interval time.Duration, activeDelegates int) (*Slots, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("slot interval must be at least one second, got %v", interval)
	}
	if activeDelegates <= 0 {
		return nil, fmt.Errorf("active delegates must be positive, got %d", activeDelegates)
	}
	return &Slots{
		epoch:           epoch,
		interval:        interval,
		activeDelegates: int64(activeDelegates),
		now:             time.Now,
	}, nil
}

// WithClock replaces the clock used by CurrentSlot. It is meant for tests.
func (s *Slots) WithClock(now func() time.Time) *Slots {
	cp := *s
	cp.now = now
	return &cp
}

// SlotNumber returns the slot containing the Unix timestamp ts (in seconds).
func (s *Slots) SlotNumber(ts int64) int64 {
	elapsed := ts - s.epoch.Unix()
	return floorDiv(elapsed, int64(s.interval/time.Second))
}

// CurrentSlot returns the slot containing the current time.
func (s *Slots) CurrentSlot() int64 {
	return s.SlotNumber(s.now().Unix())
}

// CalcRound returns the round that contains height. Rounds are 1-indexed.
func (s *Slots) CalcRound(height int64) int64 {
	return (height + s.activeDelegates - 1) / s.activeDelegates
}

// ActiveDelegates returns the number of blocks in a round.
func (s *Slots) ActiveDelegates() int64 { return s.activeDelegates }

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
