package audit

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pensionledger/internal/ir"
	"github.com/roach88/pensionledger/internal/metrics"
	"github.com/roach88/pensionledger/internal/store"
)

// Auditor verifies keys against a store.
type Auditor struct {
	store   *store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithMetrics records audit results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Auditor) { a.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Auditor) { a.logger = l }
}

// New creates an Auditor over s.
func New(s *store.Store, opts ...Option) *Auditor {
	a := &Auditor{store: s, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Audit verifies key's full history. It fails with ir.ErrNotFound if the
// key never had history. A broken chain is not an error: the result has
// Valid=false and a Divergence.
func (a *Auditor) Audit(ctx context.Context, key string) (ir.AuditResult, error) {
	raw, err := a.store.RawHistory(ctx, key)
	if err != nil {
		return ir.AuditResult{}, fmt.Errorf("audit %q: %w", key, err)
	}
	if len(raw) == 0 {
		return ir.AuditResult{}, ir.NotFound(key)
	}

	entries, faults := decodeRows(raw)
	result := verify(key, entries, faults)

	a.metrics.IncrementAudit(result.Valid)
	if result.Valid {
		a.logger.Debug("audit valid", "key", key, "entries", len(entries), "head", result.FinalChainHash)
	} else {
		d := result.Divergence
		a.logger.Warn("audit invalid",
			"key", key,
			"index", d.Index,
			"tx_id", d.TxID,
			"field", d.Field,
		)
	}
	return result, nil
}

// VerifyAll audits every key with history, deleted keys included. Results
// are in key order. Keys are audited concurrently, at most workers at a time.
func (a *Auditor) VerifyAll(ctx context.Context, workers int) ([]ir.AuditResult, error) {
	keys, err := a.store.HistoryKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify all: %w", err)
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]ir.AuditResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			r, err := a.Audit(gctx, key)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// decodeRows decodes raw rows leniently. A row that cannot be decoded keeps
// whatever could be read and contributes a fault at its index. A payload
// that decodes but is not the record's canonical bytes is also a fault.
func decodeRows(raw []store.RawEntry) ([]ir.HistoryEntry, map[int]rowFault) {
	entries := make([]ir.HistoryEntry, len(raw))
	faults := map[int]rowFault{}

	for i, r := range raw {
		e := ir.HistoryEntry{
			TxID:      r.TxID,
			IsDelete:  r.IsDelete,
			ValueHash: r.ValueHash,
			EntryHash: r.EntryHash,
			ChainHash: r.ChainHash,
		}

		ts, err := ir.ParseTimestamp(r.Timestamp)
		if err != nil {
			faults[i] = rowFault{field: ir.FieldTimestamp, expected: ir.TimestampLayout, actual: r.Timestamp}
		}
		e.Timestamp = ts

		if r.Value.Valid {
			rec, err := ir.UnmarshalRecord([]byte(r.Value.String))
			if err != nil {
				if _, seen := faults[i]; !seen {
					faults[i] = rowFault{field: ir.FieldValue, expected: "record payload", actual: r.Value.String}
				}
			} else {
				e.Value = &rec
				if _, seen := faults[i]; !seen {
					if canonical, err := ir.MarshalCanonicalRecord(rec); err == nil && string(canonical) != r.Value.String {
						faults[i] = rowFault{field: ir.FieldValue, expected: string(canonical), actual: r.Value.String}
					}
				}
			}
		}

		entries[i] = e
	}
	return entries, faults
}
