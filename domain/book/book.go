package book

import (
	"fmt"
	"iter"
	"time"
)

// OrderBook holds one instrument's resting orders. It is single-writer
// and deterministic: the caller owns serialization of Submit and Cancel
// for the instrument, and identical inputs always produce identical
// trades and identical resting state.
type OrderBook struct {
	Instrument string

	bids *Queue
	asks *Queue
}

func NewOrderBook(instrument string) *OrderBook {
	return &OrderBook{
		Instrument: instrument,
		bids:       NewBidQueue(),
		asks:       NewAskQueue(),
	}
}

// Submit matches o against the opposing side under price-time priority
// and rests any remainder on o's own side. Every trade executes at the
// maker's limit price. Trade.Seq is left zero; the caller stamps it
// from the global tape counter.
func (b *OrderBook) Submit(o *Order) ([]*Trade, error) {
	if o.Price.Sign() <= 0 {
		return nil, &ValidationError{Field: "price", Reason: "must be positive"}
	}
	if o.Original <= 0 {
		return nil, &ValidationError{Field: "quantity", Reason: "must be positive"}
	}

	opposing := b.asks
	if o.Side == Ask {
		opposing = b.bids
	}

	var trades []*Trade
	now := time.Now().UnixNano()

	for o.Remaining > 0 {
		maker := opposing.Peek()
		if maker == nil || !crosses(o, maker) {
			break
		}
		opposing.Pop()

		qty := min(o.Remaining, maker.Remaining)
		trades = append(trades, newTrade(maker, o, qty, now))

		o.Remaining -= qty
		maker.Remaining -= qty

		if o.Remaining < 0 || maker.Remaining < 0 {
			panic(fmt.Sprintf("book %s: negative remaining after %d @ %s",
				b.Instrument, qty, maker.Price))
		}

		if maker.Remaining > 0 {
			// A partial fill keeps the maker's original Seq: time
			// priority is never reset.
			maker.Status = PartiallyFilled
			opposing.Push(maker)
		} else {
			maker.Status = Filled
		}
	}

	if o.Remaining > 0 {
		if len(trades) > 0 {
			o.Status = PartiallyFilled
		} else {
			o.Status = Resting
		}
		b.side(o.Side).Push(o)
	} else {
		o.Status = Filled
	}

	return trades, nil
}

// crosses reports whether the incoming order's limit reaches the
// resting maker's price.
func crosses(taker, maker *Order) bool {
	if taker.Side == Bid {
		return maker.Price.Cmp(taker.Price) <= 0
	}
	return maker.Price.Cmp(taker.Price) >= 0
}

// Cancel removes the order from whichever side currently holds it and
// returns it with a terminal CANCELED status. Canceling an id that is
// no longer resting returns nil; the caller maps that to its NotFound
// result, and prior fills are never rolled back.
func (b *OrderBook) Cancel(id uint64) *Order {
	o := b.bids.Remove(id)
	if o == nil {
		o = b.asks.Remove(id)
	}
	if o != nil {
		o.Status = Canceled
	}
	return o
}

// Has reports whether id is resting on either side.
func (b *OrderBook) Has(id uint64) bool {
	return b.bids.Has(id) || b.asks.Has(id)
}

// Insert places a restored order directly on its side, bypassing
// matching. The order keeps its persisted Seq, so priority on reload
// is identical to the priority before shutdown.
func (b *OrderBook) Insert(o *Order) {
	b.side(o.Side).Push(o)
}

// Bids yields resting bids best-first over a copy taken at call time.
func (b *OrderBook) Bids() iter.Seq[*Order] { return b.bids.All() }

// Asks yields resting asks best-first over a copy taken at call time.
func (b *OrderBook) Asks() iter.Seq[*Order] { return b.asks.All() }

func (b *OrderBook) BestBid() *Order { return b.bids.Peek() }
func (b *OrderBook) BestAsk() *Order { return b.asks.Peek() }

func (b *OrderBook) BidCount() int { return b.bids.Len() }
func (b *OrderBook) AskCount() int { return b.asks.Len() }

func (b *OrderBook) side(s Side) *Queue {
	if s == Bid {
		return b.bids
	}
	return b.asks
}
