package store

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"matchbook/domain/book"
)

// Key space:
//
//	book/<instrument>  latest snapshot of one instrument's book
//	trade/<seq:020d>   append-only trade log, never rewritten
//	req/<uuid>         submit result keyed by caller request id
//	meta               engine counter families
type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRequest is everything one engine operation makes durable.
type SaveRequest struct {
	Book        *book.OrderBook
	BookLastSeq uint64
	Trades      []*book.Trade
	RequestID   uuid.UUID // uuid.Nil skips the request marker
	Result      []byte
	Meta        Meta
}

// Save commits the post-operation state in a single synced batch: the
// new book snapshot, the operation's trades, the request marker and the
// counters land together or not at all. A reader can never observe a
// book mid-match.
func (s *Store) Save(req SaveRequest) error {
	bookVal, err := encodeBook(req.Book, req.BookLastSeq)
	if err != nil {
		return fmt.Errorf("encode book %s: %w", req.Book.Instrument, err)
	}
	metaVal, err := json.Marshal(&req.Meta)
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()

	if err := b.Set(bookKey(req.Book.Instrument), bookVal, nil); err != nil {
		return err
	}
	for _, tr := range req.Trades {
		val, err := json.Marshal(tr)
		if err != nil {
			return err
		}
		if err := b.Set(tradeKey(tr.Seq), val, nil); err != nil {
			return err
		}
	}
	if req.RequestID != uuid.Nil {
		if err := b.Set(reqKey(req.RequestID), req.Result, nil); err != nil {
			return err
		}
	}
	if err := b.Set(metaKey, metaVal, nil); err != nil {
		return err
	}

	return b.Commit(pebble.Sync)
}

// LoadMeta returns the persisted counters, or zeros on first boot.
func (s *Store) LoadMeta() (Meta, error) {
	val, closer, err := s.db.Get(metaKey)
	if err == pebble.ErrNotFound {
		return Meta{}, nil
	}
	if err != nil {
		return Meta{}, err
	}
	defer closer.Close()

	var m Meta
	if err := json.Unmarshal(val, &m); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// LoadBooks feeds every persisted book record to fn.
func (s *Store) LoadBooks(fn func(*BookRecord) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("book/"),
		UpperBound: []byte("book/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeBook(iter.Value())
		if err != nil {
			return fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// LookupRequest returns the stored result for a request id, if any.
func (s *Store) LookupRequest(id uuid.UUID) ([]byte, bool, error) {
	val, closer, err := s.db.Get(reqKey(id))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

// Trades scans the trade log in sequence order. An empty instrument
// selects every instrument.
func (s *Store) Trades(instrument string) ([]book.Trade, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("trade/"),
		UpperBound: []byte("trade/~"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []book.Trade
	for iter.First(); iter.Valid(); iter.Next() {
		var tr book.Trade
		if err := json.Unmarshal(iter.Value(), &tr); err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		if instrument != "" && tr.Instrument != instrument {
			continue
		}
		out = append(out, tr)
	}
	return out, iter.Error()
}

// MaxTradeSeq returns the highest sequence in the trade log. Saves for
// distinct instruments race on the meta record, so the last committed
// meta can understate a counter; restore takes the max of both sources.
func (s *Store) MaxTradeSeq() (uint64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("trade/"),
		UpperBound: []byte("trade/~"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	var tr book.Trade
	if err := json.Unmarshal(iter.Value(), &tr); err != nil {
		return 0, err
	}
	return tr.Seq, nil
}

var metaKey = []byte("meta")

func bookKey(instrument string) []byte {
	return []byte("book/" + instrument)
}

func tradeKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("trade/%020d", seq))
}

func reqKey(id uuid.UUID) []byte {
	return []byte("req/" + id.String())
}
