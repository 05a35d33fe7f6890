package eval

import "sync/atomic"

// Sequencer is a source of logical sequence numbers.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock hands out the logical sequence numbers that stamp evaluation runs.
// Runs are ordered by seq, never by wall-clock time, so a replayed batch
// list produces the same ordering.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start, e.g. from the
// highest seq already persisted.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
