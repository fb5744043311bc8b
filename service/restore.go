package service

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"matchbook/domain/book"
	"matchbook/infra/journal"
	"matchbook/store"
)

/*
restore rebuilds engine state in two phases.

Phase one reloads every book snapshot with the sequences it was saved
with, so time priority survives the restart byte for byte. Phase two
replays journal records newer than each book's snapshot frontier; the
journal is written inside the same per-instrument lock that applies it,
so replay re-applies operations in exactly their original order.

Counters are resumed at the max over every durable source. The meta
record alone is not enough: saves for distinct instruments race on it,
so the last committed meta can understate a counter issued by a batch
that lost the race.
*/
func (e *Engine) restore(journalDir string) error {
	var maxSeq, maxID uint64

	err := e.store.LoadBooks(func(rec *store.BookRecord) error {
		sh := e.shard(rec.Instrument)
		for _, side := range [][]store.OrderRecord{rec.Bids, rec.Asks} {
			for _, or := range side {
				o := store.OrderFromRecord(rec.Instrument, or)
				sh.book.Insert(o)
				e.owners[o.ID] = rec.Instrument
				if o.ID > maxID {
					maxID = o.ID
				}
				if o.Seq > maxSeq {
					maxSeq = o.Seq
				}
			}
		}
		sh.lastSeq = rec.LastSeq
		sh.durableSeq = rec.LastSeq
		if rec.LastSeq > maxSeq {
			maxSeq = rec.LastSeq
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "load books", Err: err}
	}

	meta, err := e.store.LoadMeta()
	if err != nil {
		return &PersistenceError{Op: "load meta", Err: err}
	}
	if meta.LastSeq > maxSeq {
		maxSeq = meta.LastSeq
	}
	if meta.LastOrderID > maxID {
		maxID = meta.LastOrderID
	}

	tradeMax, err := e.store.MaxTradeSeq()
	if err != nil {
		return &PersistenceError{Op: "scan trade log", Err: err}
	}
	if meta.LastTradeSeq > tradeMax {
		tradeMax = meta.LastTradeSeq
	}
	e.tradeSeq.Reset(tradeMax)

	// Ids of fully filled orders live only in the trade log.
	trades, err := e.store.Trades("")
	if err != nil {
		return &PersistenceError{Op: "scan trade log", Err: err}
	}
	for _, tr := range trades {
		if tr.MakerID > maxID {
			maxID = tr.MakerID
		}
		if tr.TakerID > maxID {
			maxID = tr.TakerID
		}
	}

	// Seed the counters before replay so the meta written by replayed
	// saves is no worse than what the snapshots already proved.
	e.seq.Reset(maxSeq)
	e.ids.Reset(maxID)

	var replayed int
	lastSeq, err := journal.Replay(journalDir, 0, func(rec *journal.Record) error {
		id, applied, err := e.replayRecord(rec)
		if err != nil {
			return err
		}
		if id > maxID {
			maxID = id
		}
		if applied {
			replayed++
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "journal replay", Err: err}
	}
	if lastSeq > maxSeq {
		maxSeq = lastSeq
	}

	e.seq.Reset(maxSeq)
	e.ids.Reset(maxID)

	e.log.Info("engine restored",
		zap.Int("instruments", len(e.shards)),
		zap.Uint64("last_seq", maxSeq),
		zap.Int("replayed", replayed))
	return nil
}

// replayRecord re-applies one journal record that the snapshots missed
// and persists the outcome, so a crash during replay just replays less
// next time. Returns the order id the record touched and whether the
// record actually had to be applied.
func (e *Engine) replayRecord(rec *journal.Record) (uint64, bool, error) {
	switch rec.Type {
	case journal.RecordSubmit:
		var p submitPayload
		if err := json.Unmarshal(rec.Data, &p); err != nil {
			return 0, false, fmt.Errorf("decode submit seq %d: %w", rec.Seq, err)
		}

		sh := e.shard(p.Instrument)
		if rec.Seq <= sh.lastSeq {
			return p.OrderID, false, nil
		}

		o := &book.Order{
			ID:         p.OrderID,
			Side:       book.Side(p.Side),
			Instrument: p.Instrument,
			Price:      p.Price,
			Remaining:  p.Quantity,
			Original:   p.Quantity,
			Seq:        rec.Seq,
		}
		trades, err := sh.book.Submit(o)
		if err != nil {
			return 0, false, fmt.Errorf("replay submit seq %d: %w", rec.Seq, err)
		}
		sh.lastSeq = rec.Seq

		e.stampTrades(trades)
		e.trackOwnership(sh.book, o, trades)

		res := resultFor(o, trades)
		if p.RequestID != uuid.Nil {
			e.results[p.RequestID] = res
		}
		if err := e.persist(sh, p.RequestID, res, trades); err != nil {
			return 0, false, err
		}
		sh.durableSeq = rec.Seq
		return p.OrderID, true, nil

	case journal.RecordCancel:
		var p cancelPayload
		if err := json.Unmarshal(rec.Data, &p); err != nil {
			return 0, false, fmt.Errorf("decode cancel seq %d: %w", rec.Seq, err)
		}

		sh := e.shard(p.Instrument)
		if rec.Seq <= sh.lastSeq {
			return p.OrderID, false, nil
		}

		sh.book.Cancel(p.OrderID)
		delete(e.owners, p.OrderID)
		sh.lastSeq = rec.Seq

		if err := e.persist(sh, uuid.Nil, nil, nil); err != nil {
			return 0, false, err
		}
		sh.durableSeq = rec.Seq
		return p.OrderID, true, nil

	default:
		return 0, false, fmt.Errorf("unknown record type %d at seq %d", rec.Type, rec.Seq)
	}
}
