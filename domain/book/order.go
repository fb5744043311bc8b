package book

import "github.com/shopspring/decimal"

type Side int
type Status int

const (
	Bid Side = iota
	Ask
)

const (
	Resting Status = iota
	PartiallyFilled
	Filled
	Canceled
)

func (s Side) String() string {
	if s == Bid {
		return "BID"
	}
	return "ASK"
}

func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (s Status) String() string {
	switch s {
	case Resting:
		return "RESTING"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Canceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// Order is a pure domain entity. ID, Side, Instrument, Price, Original and
// Seq are fixed at creation; only Remaining and Status change, and only
// inside the matching loop or on cancel.
type Order struct {
	ID         uint64
	Side       Side
	Instrument string
	Price      decimal.Decimal
	Remaining  int64
	Original   int64

	// Seq is assigned once at submission and is the time-priority
	// tie-break among equal prices. A partial fill never changes it.
	Seq uint64

	Status Status
}

// Clone returns a value copy safe to hand to readers.
func (o *Order) Clone() Order {
	return *o
}
