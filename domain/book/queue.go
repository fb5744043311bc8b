package book

import (
	"container/heap"
	"iter"
)

// lessFunc orders two orders. Combined with unique Seq values both
// comparators below are strict total orders, so ties are impossible.
type lessFunc func(a, b *Order) bool

// bidLess ranks bids best-first: highest price, then earliest seq.
func bidLess(a, b *Order) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	return a.Seq < b.Seq
}

// askLess ranks asks best-first: lowest price, then earliest seq.
func askLess(a, b *Order) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	return a.Seq < b.Seq
}

// Queue is an indexed binary heap of resting orders. An id→slot map is
// kept in lockstep with every swap the heap performs, so removal of an
// arbitrary interior order is O(log n) rather than a linear scan.
type Queue struct {
	h *ordHeap
}

func NewQueue(less lessFunc) *Queue {
	return &Queue{h: &ordHeap{less: less, pos: make(map[uint64]int)}}
}

func NewBidQueue() *Queue { return NewQueue(bidLess) }
func NewAskQueue() *Queue { return NewQueue(askLess) }

func (q *Queue) Len() int { return len(q.h.items) }

func (q *Queue) Push(o *Order) {
	heap.Push(q.h, o)
}

// Peek returns the best order without removing it, or nil when empty.
func (q *Queue) Peek() *Order {
	if len(q.h.items) == 0 {
		return nil
	}
	return q.h.items[0]
}

// Pop removes and returns the best order, or nil when empty.
func (q *Queue) Pop() *Order {
	if len(q.h.items) == 0 {
		return nil
	}
	return heap.Pop(q.h).(*Order)
}

func (q *Queue) Has(id uint64) bool {
	_, ok := q.h.pos[id]
	return ok
}

// Remove deletes the order with the given id wherever it sits in the
// heap and returns it, or nil if the id is not present.
func (q *Queue) Remove(id uint64) *Order {
	i, ok := q.h.pos[id]
	if !ok {
		return nil
	}
	return heap.Remove(q.h, i).(*Order)
}

// All returns the queue's contents in priority order. The sequence is
// built over a copy taken at call time: it is finite, restartable, and
// does not observe mutations made after the call.
func (q *Queue) All() iter.Seq[*Order] {
	snap := make([]*Order, len(q.h.items))
	copy(snap, q.h.items)
	less := q.h.less
	return func(yield func(*Order) bool) {
		h := &ordHeap{less: less, pos: make(map[uint64]int, len(snap))}
		h.items = make([]*Order, len(snap))
		copy(h.items, snap)
		for i, o := range h.items {
			h.pos[o.ID] = i
		}
		for len(h.items) > 0 {
			if !yield(heap.Pop(h).(*Order)) {
				return
			}
		}
	}
}

// ordHeap implements heap.Interface over a slice of orders, maintaining
// the id→index map through every sift.
type ordHeap struct {
	items []*Order
	pos   map[uint64]int
	less  lessFunc
}

func (h *ordHeap) Len() int { return len(h.items) }

func (h *ordHeap) Less(i, j int) bool { return h.less(h.items[i], h.items[j]) }

func (h *ordHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.pos[h.items[i].ID] = i
	h.pos[h.items[j].ID] = j
}

func (h *ordHeap) Push(x any) {
	o := x.(*Order)
	h.pos[o.ID] = len(h.items)
	h.items = append(h.items, o)
}

func (h *ordHeap) Pop() any {
	n := len(h.items)
	o := h.items[n-1]
	h.items[n-1] = nil
	h.items = h.items[:n-1]
	delete(h.pos, o.ID)
	return o
}
