package store

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"matchbook/domain/book"
)

// OrderRecord is the persisted form of a resting order. Seq is stored
// verbatim: reassigning sequences on reload would silently rewrite time
// priority, so restore always reuses the persisted value.
type OrderRecord struct {
	ID        uint64          `json:"id"`
	Side      int             `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Remaining int64           `json:"remaining"`
	Original  int64           `json:"original"`
	Seq       uint64          `json:"seq"`
}

// BookRecord is one instrument's durable snapshot. Bids and Asks are
// written best-first so a dump reads the way the book iterates. LastSeq
// is the last journaled operation this snapshot covers; replay resumes
// per instrument from there.
type BookRecord struct {
	Instrument string        `json:"instrument"`
	LastSeq    uint64        `json:"last_seq"`
	SavedAt    int64         `json:"saved_at"`
	Bids       []OrderRecord `json:"bids"`
	Asks       []OrderRecord `json:"asks"`
}

// Meta carries the engine's counter families so sequencers resume past
// everything already issued.
type Meta struct {
	LastSeq      uint64 `json:"last_seq"`
	LastOrderID  uint64 `json:"last_order_id"`
	LastTradeSeq uint64 `json:"last_trade_seq"`
}

func recordFromOrder(o *book.Order) OrderRecord {
	return OrderRecord{
		ID:        o.ID,
		Side:      int(o.Side),
		Price:     o.Price,
		Remaining: o.Remaining,
		Original:  o.Original,
		Seq:       o.Seq,
	}
}

// OrderFromRecord rebuilds a resting order. Status is derived: an order
// that traded before shutdown reloads as partially filled.
func OrderFromRecord(instrument string, r OrderRecord) *book.Order {
	status := book.Resting
	if r.Remaining < r.Original {
		status = book.PartiallyFilled
	}
	return &book.Order{
		ID:         r.ID,
		Side:       book.Side(r.Side),
		Instrument: instrument,
		Price:      r.Price,
		Remaining:  r.Remaining,
		Original:   r.Original,
		Seq:        r.Seq,
		Status:     status,
	}
}

func encodeBook(b *book.OrderBook, lastSeq uint64) ([]byte, error) {
	rec := BookRecord{
		Instrument: b.Instrument,
		LastSeq:    lastSeq,
		SavedAt:    time.Now().UnixNano(),
		Bids:       make([]OrderRecord, 0, b.BidCount()),
		Asks:       make([]OrderRecord, 0, b.AskCount()),
	}
	for o := range b.Bids() {
		rec.Bids = append(rec.Bids, recordFromOrder(o))
	}
	for o := range b.Asks() {
		rec.Asks = append(rec.Asks, recordFromOrder(o))
	}
	return json.Marshal(&rec)
}

func decodeBook(data []byte) (*BookRecord, error) {
	var rec BookRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
