package sequence

import "sync/atomic"

// Sequencer hands out strictly monotonic ids. The engine owns one per
// counter family (order ids, submission sequence, trade sequence), so
// restore can rewind each family independently.
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose next value is start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next returns the next id.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued id.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Reset moves the sequencer to v. Only the restore path calls this,
// after all persisted state has been reloaded.
func (s *Sequencer) Reset(v uint64) {
	s.last.Store(v)
}
