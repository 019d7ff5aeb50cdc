package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/pensionledger/internal/engine"
	"github.com/roach88/pensionledger/internal/ir"
	"github.com/roach88/pensionledger/internal/store"
	"github.com/roach88/pensionledger/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against a real engine with a deterministic clock and
// sequential transaction ids.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.DeterministicClock
	txIDs  *testutil.SequentialTxIDs
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible hashes.
//
// Execution flow:
// 1. Create fresh in-memory database and engine
// 2. Seed, if the scenario asks for it
// 3. Execute setup steps (each must commit)
// 4. Execute flow steps with expect validation
// 5. Audit every key and evaluate assertions
//
// A step whose outcome differs from its expect clause fails the result but
// does not stop the run. Errors outside the ledger's error taxonomy (storage
// failures) abort the run and are returned.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(testutil.DefaultEpoch, time.Second),
		txIDs:  testutil.NewSequentialTxIDs(""),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.engine = engine.New(st,
		engine.WithClock(h.clock),
		engine.WithTxIDs(h.txIDs),
		engine.WithLogger(h.logger),
	)

	result := NewResult()

	if scenario.Seed {
		if err := h.executeSeed(ctx, result); err != nil {
			return nil, fmt.Errorf("failed to seed: %w", err)
		}
	}

	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	audits, err := h.engine.VerifyAll(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to audit: %w", err)
	}
	result.Audits = audits
	for _, a := range audits {
		if !a.Valid {
			result.AddError(fmt.Sprintf("audit %s: chain does not verify", a.ID))
		}
	}

	actx := &AssertionContext{
		Engine: h.engine,
		Ctx:    ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// executeSeed writes the seed records and traces each receipt.
func (h *Harness) executeSeed(ctx context.Context, result *Result) error {
	receipts, err := h.engine.Seed(ctx)
	if err != nil {
		return err
	}
	for _, r := range receipts {
		result.addStep(string(engine.KindCreate), r.Record.ID, r.TxID, OutcomeCommitted, r.Entry.ChainHash)
	}
	h.logger.Info("seed completed", "records", len(receipts))
	return nil
}

// executeSetup runs all setup steps. Any rejection is an error.
func (h *Harness) executeSetup(ctx context.Context, setup []Step, result *Result) error {
	for i, step := range setup {
		ev, err := h.submit(ctx, step, result)
		if err != nil {
			return fmt.Errorf("setup step %d (%s %s): %w", i, step.Kind, step.Key, err)
		}
		h.logger.Info("setup step completed",
			"step", i,
			"kind", ev.Kind,
			"key", ev.Key,
			"tx_id", ev.TxID,
		)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		ev, err := h.submit(ctx, step, result)
		if err != nil && ir.CodeOf(err) == "" {
			return fmt.Errorf("flow step %d (%s %s): %w", i, step.Kind, step.Key, err)
		}

		want := ""
		if step.Expect != nil {
			want = step.Expect.Error
		}
		if got := string(ir.CodeOf(err)); got != want {
			result.AddError(fmt.Sprintf("flow step %d (%s %s): expected outcome %s, got %s", i, step.Kind, step.Key, outcomeName(want), outcomeName(got)))
		}

		if err == nil && step.Expect != nil && len(step.Expect.Record) > 0 {
			rec, rerr := h.engine.Read(ctx, step.Key)
			switch {
			case errors.Is(rerr, ir.ErrNotFound):
				result.AddError(fmt.Sprintf("flow step %d (%s %s): expected a record, key was deleted", i, step.Kind, step.Key))
			case rerr != nil:
				return fmt.Errorf("flow step %d: read back: %w", i, rerr)
			default:
				if field, w, g, ok := mismatch(step.Expect.Record, recordFields(rec)); !ok {
					result.AddError(fmt.Sprintf("flow step %d (%s %s): record %s = %q, expected %q", i, step.Kind, step.Key, field, g, w))
				}
			}
		}

		h.logger.Info("flow step completed",
			"step", i,
			"kind", ev.Kind,
			"key", ev.Key,
			"tx_id", ev.TxID,
			"outcome", ev.Outcome,
		)
	}

	return nil
}

// submit converts and submits one step, tracing the outcome. The trace
// records the step's own tx id for rejections, and the committed id
// (possibly generated) for commits.
func (h *Harness) submit(ctx context.Context, step Step, result *Result) (TraceEvent, error) {
	req, err := step.request()
	if err == nil {
		var receipt engine.Receipt
		receipt, err = h.engine.Submit(ctx, req)
		if err == nil {
			return result.addStep(step.Kind, step.Key, receipt.TxID, OutcomeCommitted, receipt.Entry.ChainHash), nil
		}
	}

	outcome := string(ir.CodeOf(err))
	if outcome == "" {
		outcome = outcomeFailed
	}
	return result.addStep(step.Kind, step.Key, step.TxID, outcome, ""), err
}

func outcomeName(code string) string {
	if code == "" {
		return OutcomeCommitted
	}
	return code
}
