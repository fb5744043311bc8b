package book

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func mustSubmit(t *testing.T, b *OrderBook, o *Order) []*Trade {
	t.Helper()
	trades, err := b.Submit(o)
	if err != nil {
		t.Fatalf("submit order %d: %v", o.ID, err)
	}
	return trades
}

func TestSubmitRestsOnEmptyBook(t *testing.T) {
	b := NewOrderBook("ACME")

	o := ord(1, Bid, "50", 5, 1)
	trades := mustSubmit(t, b, o)

	if len(trades) != 0 {
		t.Fatalf("empty book produced %d trades", len(trades))
	}
	if o.Status != Resting || o.Remaining != 5 {
		t.Errorf("order state: status=%v remaining=%d, want RESTING/5", o.Status, o.Remaining)
	}
	if b.BidCount() != 1 || b.AskCount() != 0 {
		t.Errorf("book sizes: bids=%d asks=%d, want 1/0", b.BidCount(), b.AskCount())
	}
}

func TestCancelThenCancelAgain(t *testing.T) {
	b := NewOrderBook("ACME")
	mustSubmit(t, b, ord(1, Bid, "50", 5, 1))

	o := b.Cancel(1)
	if o == nil {
		t.Fatal("cancel of resting order failed")
	}
	if o.Status != Canceled {
		t.Errorf("canceled order status %v, want CANCELED", o.Status)
	}
	if b.BidCount() != 0 {
		t.Errorf("bids after cancel: %d, want 0", b.BidCount())
	}
	if b.Cancel(1) != nil {
		t.Error("second cancel of same id should report not found")
	}
}

// Two resting asks at the same price, then a buy that sweeps the first
// and part of the second: the earlier seq must be consumed completely
// before the later one is touched, and both trades print at 100.
func TestPriceTimePriorityAndPartialFill(t *testing.T) {
	b := NewOrderBook("ACME")

	mustSubmit(t, b, ord(1, Ask, "100", 10, 1))
	mustSubmit(t, b, ord(2, Ask, "100", 5, 2))

	taker := ord(3, Bid, "100", 12, 3)
	trades := mustSubmit(t, b, taker)

	if len(trades) != 2 {
		t.Fatalf("trades: got %d, want 2", len(trades))
	}
	if trades[0].MakerID != 1 || trades[0].Qty != 10 || !trades[0].Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("first trade: %+v, want maker=1 qty=10 price=100", trades[0])
	}
	if trades[1].MakerID != 2 || trades[1].Qty != 2 || !trades[1].Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("second trade: %+v, want maker=2 qty=2 price=100", trades[1])
	}
	if taker.Status != Filled || taker.Remaining != 0 {
		t.Errorf("taker: status=%v remaining=%d, want FILLED/0", taker.Status, taker.Remaining)
	}
	if b.BidCount() != 0 {
		t.Error("fully filled taker must not rest")
	}

	rest := b.BestAsk()
	if rest == nil || rest.ID != 2 || rest.Remaining != 3 {
		t.Fatalf("resting remainder: %+v, want id=2 remaining=3", rest)
	}
	if rest.Seq != 2 {
		t.Errorf("partial fill changed seq to %d; priority must keep seq 2", rest.Seq)
	}
	if rest.Status != PartiallyFilled {
		t.Errorf("remainder status: %v, want PARTIALLY_FILLED", rest.Status)
	}
}

func TestMakerPriceWins(t *testing.T) {
	b := NewOrderBook("ACME")
	mustSubmit(t, b, ord(1, Ask, "100", 10, 1))

	trades := mustSubmit(t, b, ord(2, Bid, "105", 10, 2))
	if len(trades) != 1 {
		t.Fatalf("trades: got %d, want 1", len(trades))
	}
	if !trades[0].Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("execution price %s, want maker's 100", trades[0].Price)
	}
}

func TestSellSideMatching(t *testing.T) {
	b := NewOrderBook("ACME")
	mustSubmit(t, b, ord(1, Bid, "102", 4, 1))
	mustSubmit(t, b, ord(2, Bid, "101", 4, 2))

	trades := mustSubmit(t, b, ord(3, Ask, "101", 6, 3))
	if len(trades) != 2 {
		t.Fatalf("trades: got %d, want 2", len(trades))
	}
	if trades[0].MakerID != 1 || !trades[0].Price.Equal(decimal.NewFromInt(102)) {
		t.Errorf("first trade should hit best bid 102: %+v", trades[0])
	}
	if trades[1].MakerID != 2 || trades[1].Qty != 2 {
		t.Errorf("second trade: %+v, want maker=2 qty=2", trades[1])
	}
	if rest := b.BestBid(); rest == nil || rest.ID != 2 || rest.Remaining != 2 {
		t.Fatalf("resting bid remainder: %+v, want id=2 remaining=2", rest)
	}
}

func TestBookNeverCrossed(t *testing.T) {
	b := NewOrderBook("ACME")

	mustSubmit(t, b, ord(1, Bid, "99", 5, 1))
	mustSubmit(t, b, ord(2, Ask, "101", 5, 2))
	mustSubmit(t, b, ord(3, Bid, "101", 2, 3))
	mustSubmit(t, b, ord(4, Ask, "99", 2, 4))
	mustSubmit(t, b, ord(5, Bid, "100", 1, 5))

	bid, ask := b.BestBid(), b.BestAsk()
	if bid != nil && ask != nil && bid.Price.Cmp(ask.Price) >= 0 {
		t.Fatalf("book crossed: best bid %s >= best ask %s", bid.Price, ask.Price)
	}
}

func TestNoCrossMeansNoTrade(t *testing.T) {
	b := NewOrderBook("ACME")
	mustSubmit(t, b, ord(1, Ask, "101", 5, 1))

	trades := mustSubmit(t, b, ord(2, Bid, "100", 5, 2))
	if len(trades) != 0 {
		t.Fatalf("bid below best ask traded: %d trades", len(trades))
	}
	if b.BidCount() != 1 || b.AskCount() != 1 {
		t.Errorf("both orders should rest: bids=%d asks=%d", b.BidCount(), b.AskCount())
	}
}

func TestValidationRejectsBeforeTouchingState(t *testing.T) {
	b := NewOrderBook("ACME")

	cases := []*Order{
		ord(1, Bid, "0", 5, 1),
		ord(2, Bid, "-10", 5, 2),
		{ID: 3, Side: Ask, Instrument: "ACME", Price: decimal.NewFromInt(10), Remaining: 0, Original: 0, Seq: 3},
	}
	for _, o := range cases {
		_, err := b.Submit(o)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("order %d: got err %v, want ValidationError", o.ID, err)
		}
	}
	if b.BidCount() != 0 || b.AskCount() != 0 {
		t.Error("rejected orders must leave the book untouched")
	}
}

// Quantity conservation: for every order, traded quantity plus whatever
// is still resting equals the original quantity.
func TestConservation(t *testing.T) {
	b := NewOrderBook("ACME")

	orders := []*Order{
		ord(1, Ask, "100", 10, 1),
		ord(2, Ask, "101", 7, 2),
		ord(3, Bid, "100", 4, 3),
		ord(4, Bid, "101", 9, 4),
		ord(5, Ask, "99", 12, 5),
		ord(6, Bid, "103", 3, 6),
	}

	traded := make(map[uint64]int64)
	for _, o := range orders {
		trades := mustSubmit(t, b, o)
		for _, tr := range trades {
			traded[tr.MakerID] += tr.Qty
			traded[tr.TakerID] += tr.Qty
		}
	}

	resting := make(map[uint64]int64)
	for o := range b.Bids() {
		resting[o.ID] = o.Remaining
	}
	for o := range b.Asks() {
		resting[o.ID] = o.Remaining
	}

	for _, o := range orders {
		if got := traded[o.ID] + resting[o.ID]; got != o.Original {
			t.Errorf("order %d: traded %d + resting %d != original %d",
				o.ID, traded[o.ID], resting[o.ID], o.Original)
		}
	}
}

func TestFilledOrderNotInAnyQueue(t *testing.T) {
	b := NewOrderBook("ACME")
	mustSubmit(t, b, ord(1, Ask, "100", 5, 1))
	mustSubmit(t, b, ord(2, Bid, "100", 5, 2))

	if b.Has(1) || b.Has(2) {
		t.Error("fully filled orders must not remain in the book")
	}
}

func BenchmarkSubmitRest(b *testing.B) {
	bk := NewOrderBook("ACME")
	price := decimal.NewFromInt(100)
	for i := 0; i < b.N; i++ {
		o := &Order{
			ID: uint64(i), Side: Bid, Instrument: "ACME",
			Price: price, Remaining: 1, Original: 1, Seq: uint64(i),
		}
		if _, err := bk.Submit(o); err != nil {
			b.Fatal(err)
		}
	}
}
