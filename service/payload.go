package service

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// submitPayload is the journaled form of an accepted submission. The
// order id is fixed before journaling so replay reproduces it; the
// record's own sequence becomes the order's Seq.
type submitPayload struct {
	RequestID  uuid.UUID       `json:"request_id"`
	Instrument string          `json:"instrument"`
	Side       int             `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int64           `json:"quantity"`
	OrderID    uint64          `json:"order_id"`
}

type cancelPayload struct {
	Instrument string `json:"instrument"`
	OrderID    uint64 `json:"order_id"`
}
