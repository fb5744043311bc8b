package book

import "github.com/shopspring/decimal"

// Trade is an immutable execution record. Price is always the maker's
// limit price: the resting side keeps any price improvement.
type Trade struct {
	Seq        uint64          `json:"seq"`
	Instrument string          `json:"instrument"`
	MakerID    uint64          `json:"maker_id"`
	TakerID    uint64          `json:"taker_id"`
	Price      decimal.Decimal `json:"price"`
	Qty        int64           `json:"qty"`
	Time       int64           `json:"time"`
}

func newTrade(maker, taker *Order, qty int64, now int64) *Trade {
	return &Trade{
		Instrument: maker.Instrument,
		MakerID:    maker.ID,
		TakerID:    taker.ID,
		Price:      maker.Price,
		Qty:        qty,
		Time:       now,
	}
}
