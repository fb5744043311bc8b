package service

import (
	"encoding/json"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"matchbook/domain/book"
	"matchbook/infra/journal"
	"matchbook/infra/sequence"
	"matchbook/store"
)

/*
Engine is the only write entry point into the matching core.

All coordination between the domain (book), the operation journal and
the snapshot store happens here. One mutex per instrument serializes a
submission's full matching transaction with every other submission and
cancellation for that instrument; distinct instruments run in parallel
because their books share no state.
*/
type Engine struct {
	log *zap.Logger
	cfg Config

	registry *book.Registry
	store    *store.Store
	journal  *journal.Journal

	seq      *sequence.Sequencer // journal record / order priority sequence
	ids      *sequence.Sequencer // order ids
	tradeSeq *sequence.Sequencer // global trade tape counter

	validate *validator.Validate

	mu      sync.RWMutex
	shards  map[string]*shard
	owners  map[uint64]string // resting order id -> instrument
	results map[uuid.UUID]*SubmitResult
}

// shard is one instrument's serialization domain. lastSeq is the last
// journal record applied to the book; durableSeq the last one captured
// by a committed snapshot.
type shard struct {
	mu         sync.Mutex
	book       *book.OrderBook
	lastSeq    uint64
	durableSeq uint64
}

// Open restores the engine from cfg.DataDir: books are rebuilt from
// their snapshots with persisted sequences, then journal records the
// snapshots missed are re-applied deterministically. A nil logger
// disables logging.
func Open(cfg Config, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	st, err := store.Open(cfg.statePath())
	if err != nil {
		return nil, &PersistenceError{Op: "open store", Err: err}
	}

	e := &Engine{
		log:      log,
		cfg:      cfg,
		registry: book.NewRegistry(),
		store:    st,
		seq:      sequence.New(0),
		ids:      sequence.New(0),
		tradeSeq: sequence.New(0),
		validate: validator.New(),
		shards:   make(map[string]*shard),
		owners:   make(map[uint64]string),
		results:  make(map[uuid.UUID]*SubmitResult),
	}

	if err := e.restore(cfg.journalPath()); err != nil {
		_ = st.Close()
		return nil, err
	}

	j, err := journal.Open(journal.Config{
		Dir:         cfg.journalPath(),
		SegmentSize: cfg.JournalSegmentSize,
	}, e.seq)
	if err != nil {
		_ = st.Close()
		return nil, &PersistenceError{Op: "open journal", Err: err}
	}
	e.journal = j

	return e, nil
}

func (e *Engine) Close() error {
	err := e.journal.Close()
	if cerr := e.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// SubmitRequest carries one already-parsed limit order. RequestID is
// optional; when set, retries with the same id return the original
// result instead of matching twice.
type SubmitRequest struct {
	RequestID  uuid.UUID       `json:"request_id"`
	Instrument string          `json:"instrument" validate:"required,alphanum,max=16"`
	Side       book.Side       `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int64           `json:"quantity" validate:"required,gt=0"`
}

type SubmitResult struct {
	OrderID   uint64       `json:"order_id"`
	Status    book.Status  `json:"status"`
	Remaining int64        `json:"remaining"`
	Trades    []book.Trade `json:"trades,omitempty"`
}

// BookView is a read-only snapshot of one instrument's book, bids and
// asks each sorted best-first.
type BookView struct {
	Instrument string       `json:"instrument"`
	Bids       []book.Order `json:"bids"`
	Asks       []book.Order `json:"asks"`
}

// Submit validates, journals, matches and persists one order. The
// returned result lists the trades in execution order and the state of
// the incoming order afterwards.
func (e *Engine) Submit(req SubmitRequest) (*SubmitResult, error) {
	if err := e.validateSubmit(&req); err != nil {
		return nil, err
	}

	if req.RequestID != uuid.Nil {
		res, ok, err := e.lookupResult(req.RequestID)
		if err != nil {
			return nil, err
		}
		if ok {
			e.log.Debug("duplicate submit served from request log",
				zap.String("request_id", req.RequestID.String()))
			return res, nil
		}
	}

	sh := e.shard(req.Instrument)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	orderID := e.ids.Next()

	payload, err := json.Marshal(&submitPayload{
		RequestID:  req.RequestID,
		Instrument: req.Instrument,
		Side:       int(req.Side),
		Price:      req.Price,
		Quantity:   req.Quantity,
		OrderID:    orderID,
	})
	if err != nil {
		return nil, err
	}

	seqNum, err := e.journal.Append(journal.RecordSubmit, payload)
	if err != nil {
		return nil, &PersistenceError{Op: "journal append", Err: err}
	}

	o := &book.Order{
		ID:         orderID,
		Side:       req.Side,
		Instrument: req.Instrument,
		Price:      req.Price,
		Remaining:  req.Quantity,
		Original:   req.Quantity,
		Seq:        seqNum,
	}

	trades, err := sh.book.Submit(o)
	if err != nil {
		return nil, err
	}
	sh.lastSeq = seqNum

	e.stampTrades(trades)
	e.trackOwnership(sh.book, o, trades)

	res := resultFor(o, trades)
	if req.RequestID != uuid.Nil {
		e.mu.Lock()
		e.results[req.RequestID] = res
		e.mu.Unlock()
	}

	if err := e.persist(sh, req.RequestID, res, trades); err != nil {
		e.log.Error("order matched but persistence failed",
			zap.Uint64("order_id", o.ID),
			zap.String("instrument", o.Instrument),
			zap.Error(err))
		return nil, err
	}
	sh.durableSeq = seqNum

	e.log.Debug("order submitted",
		zap.Uint64("order_id", o.ID),
		zap.String("instrument", o.Instrument),
		zap.Stringer("side", o.Side),
		zap.Stringer("status", o.Status),
		zap.Int("trades", len(trades)))

	return res, nil
}

// Cancel removes a resting order wholly; partial cancels are not
// supported. A persistence failure does not roll back prior fills.
func (e *Engine) Cancel(orderID uint64) error {
	e.mu.RLock()
	instrument, ok := e.owners[orderID]
	e.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	sh := e.shard(instrument)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if !sh.book.Has(orderID) {
		return ErrNotFound
	}

	payload, err := json.Marshal(&cancelPayload{Instrument: instrument, OrderID: orderID})
	if err != nil {
		return err
	}
	seqNum, err := e.journal.Append(journal.RecordCancel, payload)
	if err != nil {
		return &PersistenceError{Op: "journal append", Err: err}
	}

	sh.book.Cancel(orderID)
	sh.lastSeq = seqNum

	e.mu.Lock()
	delete(e.owners, orderID)
	e.mu.Unlock()

	if err := e.persist(sh, uuid.Nil, nil, nil); err != nil {
		e.log.Error("cancel applied but persistence failed",
			zap.Uint64("order_id", orderID), zap.Error(err))
		return err
	}
	sh.durableSeq = seqNum

	e.log.Debug("order canceled",
		zap.Uint64("order_id", orderID),
		zap.String("instrument", instrument))
	return nil
}

// QueryBook returns a point-in-time snapshot of the instrument's book.
// The copies it returns cannot mutate engine state.
func (e *Engine) QueryBook(instrument string) (*BookView, error) {
	if instrument == "" {
		return nil, &book.ValidationError{Field: "instrument", Reason: "must not be empty"}
	}

	sh := e.shard(instrument)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	v := &BookView{Instrument: instrument}
	for o := range sh.book.Bids() {
		v.Bids = append(v.Bids, o.Clone())
	}
	for o := range sh.book.Asks() {
		v.Asks = append(v.Asks, o.Clone())
	}
	return v, nil
}

// Trades reads the durable trade log in tape order. An empty
// instrument selects everything.
func (e *Engine) Trades(instrument string) ([]book.Trade, error) {
	trades, err := e.store.Trades(instrument)
	if err != nil {
		return nil, &PersistenceError{Op: "trade log read", Err: err}
	}
	return trades, nil
}

// Instruments lists every instrument the engine has seen.
func (e *Engine) Instruments() []string {
	return e.registry.Instruments()
}

func (e *Engine) validateSubmit(req *SubmitRequest) error {
	if err := e.validate.Struct(req); err != nil {
		return &book.ValidationError{Field: "request", Reason: err.Error()}
	}
	if req.Side != book.Bid && req.Side != book.Ask {
		return &book.ValidationError{Field: "side", Reason: "must be BID or ASK"}
	}
	if req.Price.Sign() <= 0 {
		return &book.ValidationError{Field: "price", Reason: "must be positive"}
	}
	return nil
}

func (e *Engine) lookupResult(id uuid.UUID) (*SubmitResult, bool, error) {
	e.mu.RLock()
	res, ok := e.results[id]
	e.mu.RUnlock()
	if ok {
		return res, true, nil
	}

	data, ok, err := e.store.LookupRequest(id)
	if err != nil {
		return nil, false, &PersistenceError{Op: "request lookup", Err: err}
	}
	if !ok {
		return nil, false, nil
	}
	var stored SubmitResult
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, false, err
	}
	return &stored, true, nil
}

func (e *Engine) stampTrades(trades []*book.Trade) {
	for _, tr := range trades {
		tr.Seq = e.tradeSeq.Next()
	}
}

// trackOwnership keeps the order->instrument index in step with the
// book: the incoming order is indexed while it rests, and makers that
// were fully consumed drop out.
func (e *Engine) trackOwnership(bk *book.OrderBook, o *book.Order, trades []*book.Trade) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if o.Remaining > 0 {
		e.owners[o.ID] = o.Instrument
	}
	for _, tr := range trades {
		if !bk.Has(tr.MakerID) {
			delete(e.owners, tr.MakerID)
		}
	}
}

func (e *Engine) persist(sh *shard, reqID uuid.UUID, res *SubmitResult, trades []*book.Trade) error {
	var resBytes []byte
	if reqID != uuid.Nil && res != nil {
		var err error
		resBytes, err = json.Marshal(res)
		if err != nil {
			return err
		}
	}

	err := e.store.Save(store.SaveRequest{
		Book:        sh.book,
		BookLastSeq: sh.lastSeq,
		Trades:      trades,
		RequestID:   reqID,
		Result:      resBytes,
		Meta: store.Meta{
			LastSeq:      e.seq.Current(),
			LastOrderID:  e.ids.Current(),
			LastTradeSeq: e.tradeSeq.Current(),
		},
	})
	if err != nil {
		return &PersistenceError{Op: "snapshot write", Err: err}
	}
	return nil
}

func resultFor(o *book.Order, trades []*book.Trade) *SubmitResult {
	res := &SubmitResult{
		OrderID:   o.ID,
		Status:    o.Status,
		Remaining: o.Remaining,
	}
	if len(trades) > 0 {
		res.Trades = make([]book.Trade, 0, len(trades))
		for _, tr := range trades {
			res.Trades = append(res.Trades, *tr)
		}
	}
	return res
}

func (e *Engine) shard(instrument string) *shard {
	e.mu.RLock()
	sh, ok := e.shards[instrument]
	e.mu.RUnlock()
	if ok {
		return sh
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if sh, ok := e.shards[instrument]; ok {
		return sh
	}
	sh = &shard{book: e.registry.GetOrCreate(instrument)}
	e.shards[instrument] = sh
	return sh
}
