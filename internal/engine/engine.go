package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/pensionledger/internal/audit"
	"github.com/roach88/pensionledger/internal/ir"
	"github.com/roach88/pensionledger/internal/lock"
	"github.com/roach88/pensionledger/internal/metrics"
	"github.com/roach88/pensionledger/internal/queryir"
	"github.com/roach88/pensionledger/internal/store"
)

// Locker provides the per-key critical section. Implemented by
// lock.KeyMutex (in-process) and lock.RedisLocker (shared).
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Engine applies transactions to the ledger.
//
// Thread-safety: all methods are safe for concurrent use. Transactions on
// the same key are serialized by the Locker; transactions on different keys
// proceed in parallel up to SQLite's single-writer commit.
type Engine struct {
	store   *store.Store
	locker  Locker
	clock   Clock
	txIDs   TxIDGenerator
	auditor *audit.Auditor
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker sets the per-key lock. Default: a fresh lock.KeyMutex.
func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithClock sets the clock used when a request carries no timestamp.
// Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTxIDs sets the generator used when a request carries no txId.
// Default: UUIDv7Generator.
func WithTxIDs(g TxIDGenerator) Option {
	return func(e *Engine) { e.txIDs = g }
}

// WithMetrics records transaction and audit metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine over s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		locker: lock.NewKeyMutex(),
		clock:  SystemClock{},
		txIDs:  UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.auditor = audit.New(s, audit.WithMetrics(e.metrics), audit.WithLogger(e.logger))
	return e
}

// Submit applies req atomically: the record mutation and its history entry
// commit together or not at all.
//
// Errors carry an ir.Code: InvalidArgument, NotFound, AlreadyExists,
// InvalidAmount, InvalidState, IntegrityFault. Other errors are storage or
// context failures.
func (e *Engine) Submit(ctx context.Context, req Request) (Receipt, error) {
	start := time.Now()

	receipt, err := e.submit(ctx, req)

	outcome := metrics.OutcomeCommitted
	if err != nil {
		outcome = metrics.OutcomeError
		if code := ir.CodeOf(err); code != "" {
			outcome = string(code)
		}
	}
	e.metrics.ObserveTransaction(string(req.Kind), outcome, time.Since(start))

	elapsed := time.Since(start).Milliseconds()
	switch {
	case err == nil:
		e.logger.Info("transaction committed",
			"kind", req.Kind,
			"key", req.Key,
			"tx_id", receipt.TxID,
			"chain_hash", receipt.Entry.ChainHash,
			"duration_ms", elapsed,
		)
	case ir.CodeOf(err) == ir.CodeIntegrityFault:
		e.logger.Error("transaction failed integrity check",
			"kind", req.Kind,
			"key", req.Key,
			"tx_id", req.TxID,
			"error", err,
		)
	default:
		e.logger.Warn("transaction rejected",
			"kind", req.Kind,
			"key", req.Key,
			"tx_id", req.TxID,
			"code", ir.CodeOf(err),
			"error", err,
		)
	}
	return receipt, err
}

func (e *Engine) submit(ctx context.Context, req Request) (Receipt, error) {
	if err := req.validate(); err != nil {
		return Receipt{}, err
	}
	if req.TxID == "" {
		req.TxID = e.txIDs.Generate()
	}

	release, err := e.locker.Lock(ctx, req.Key)
	if err != nil {
		return Receipt{}, fmt.Errorf("lock %q: %w", req.Key, err)
	}
	defer release()

	var receipt Receipt
	err = e.store.Update(ctx, func(tx *store.Tx) error {
		used, err := tx.HasTx(req.TxID)
		if err != nil {
			return err
		}
		if used {
			return &ir.Error{Code: ir.CodeAlreadyExists, Key: req.Key, TxID: req.TxID, Message: "transaction id already used"}
		}

		head, err := tx.Head(req.Key)
		if err != nil {
			return err
		}
		ts, err := e.commitTime(req, head)
		if err != nil {
			return err
		}

		rec, found, err := tx.Record(req.Key)
		if err != nil {
			return err
		}
		var current *ir.Record
		if found {
			current = &rec
		}

		next, err := Apply(req, current, ts)
		if err != nil {
			return withTx(err, req.TxID)
		}

		entry, err := ir.SealEntry(req.TxID, ts, next, head.ChainHash)
		if err != nil {
			return ir.IntegrityFault(req.Key, err)
		}

		if next == nil {
			if err := tx.DeleteRecord(req.Key); err != nil {
				return err
			}
		} else if err := tx.PutRecord(*next); err != nil {
			return err
		}
		if err := tx.AppendEntry(req.Key, entry); err != nil {
			return err
		}

		receipt = Receipt{TxID: req.TxID, Record: next, Entry: entry}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// commitTime picks the entry timestamp. A supplied timestamp must not
// precede the key's last entry. A clock reading is clamped to it instead,
// so a clock stepping backwards never breaks ordering.
func (e *Engine) commitTime(req Request, head store.Head) (time.Time, error) {
	if !req.Timestamp.IsZero() {
		ts := ir.NormalizeTimestamp(req.Timestamp)
		if head.Count > 0 && ts.Before(head.Timestamp) {
			return time.Time{}, &ir.Error{
				Code:    ir.CodeInvalidState,
				Key:     req.Key,
				TxID:    req.TxID,
				Message: fmt.Sprintf("timestamp %s precedes last entry at %s", ir.FormatTimestamp(ts), ir.FormatTimestamp(head.Timestamp)),
			}
		}
		return ts, nil
	}

	ts := ir.NormalizeTimestamp(e.clock.Now())
	if head.Count > 0 && ts.Before(head.Timestamp) {
		ts = head.Timestamp
	}
	return ts, nil
}

func withTx(err error, txID string) error {
	var e *ir.Error
	if errors.As(err, &e) && e.TxID == "" {
		e.TxID = txID
	}
	return err
}

// Evaluate runs a read-only query. key is ignored by QueryList.
//
// Result types: QueryRead ir.Record, QueryList []ir.Record, QueryHistory
// []ir.HistoryEntry, QueryAudit ir.AuditResult, QueryHead string,
// QueryExists bool.
func (e *Engine) Evaluate(ctx context.Context, q Query, key string) (any, error) {
	switch q {
	case QueryRead:
		return e.Read(ctx, key)
	case QueryList:
		return e.List(ctx)
	case QueryHistory:
		return e.History(ctx, key)
	case QueryAudit:
		return e.Audit(ctx, key)
	case QueryHead:
		return e.Head(ctx, key)
	case QueryExists:
		return e.Exists(ctx, key)
	default:
		return nil, &ir.Error{Code: ir.CodeInvalidArgument, Key: key, Message: fmt.Sprintf("unknown query %q", q)}
	}
}

// Read returns key's live record, or NotFound.
func (e *Engine) Read(ctx context.Context, key string) (ir.Record, error) {
	return e.store.ReadRecord(ctx, key)
}

// List returns every live record ordered by id.
func (e *Engine) List(ctx context.Context) ([]ir.Record, error) {
	return e.store.ListRecords(ctx)
}

// Find returns the live records matching q ordered by id. A malformed
// filter is InvalidArgument.
func (e *Engine) Find(ctx context.Context, q queryir.Query) ([]ir.Record, error) {
	return e.store.FindRecords(ctx, q)
}

// Exists reports whether key has a live record.
func (e *Engine) Exists(ctx context.Context, key string) (bool, error) {
	return e.store.RecordExists(ctx, key)
}

// History returns every entry for key oldest first, deletes included.
// A key that never existed is NotFound.
func (e *Engine) History(ctx context.Context, key string) ([]ir.HistoryEntry, error) {
	entries, err := e.store.History(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ir.NotFound(key)
	}
	return entries, nil
}

// Head returns key's current head hash, or ir.Genesis for an unknown key.
func (e *Engine) Head(ctx context.Context, key string) (string, error) {
	return e.store.HeadHash(ctx, key)
}

// Audit re-derives key's hash chain. See audit.Auditor.Audit.
func (e *Engine) Audit(ctx context.Context, key string) (ir.AuditResult, error) {
	return e.auditor.Audit(ctx, key)
}

// VerifyAll audits every key with history.
func (e *Engine) VerifyAll(ctx context.Context, workers int) ([]ir.AuditResult, error) {
	return e.auditor.VerifyAll(ctx, workers)
}
