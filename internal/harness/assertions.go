package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/pensionledger/internal/engine"
	"github.com/roach88/pensionledger/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Key      string       // Record id the assertion concerns
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s [%s]\n", e.Type, e.Key)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s -> %s\n", event.Seq, event.Kind, event.Key, event.TxID, event.Outcome)
		}
	}

	return buf.String()
}

// recordFields renders r in the field names and text forms scenarios use.
func recordFields(r ir.Record) map[string]string {
	return map[string]string{
		"id":            r.ID,
		"recipientName": r.RecipientName,
		"amount":        r.Amount.String(),
		"status":        string(r.Status),
		"lastUpdated":   ir.FormatTimestamp(r.LastUpdated),
	}
}

// entryFields renders e in the field names and text forms scenarios use.
func entryFields(e ir.HistoryEntry) map[string]string {
	return map[string]string{
		"txId":      e.TxID,
		"timestamp": ir.FormatTimestamp(e.Timestamp),
		"isDelete":  strconv.FormatBool(e.IsDelete),
		"valueHash": e.ValueHash,
		"entryHash": e.EntryHash,
		"chainHash": e.ChainHash,
	}
}

// mismatch returns the first expected field (in name order) whose actual
// value differs. ok is true when every expected field matches. Extra
// actual fields are ignored (subset match).
func mismatch(expected, actual map[string]string) (field, want, got string, ok bool) {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		a, exists := actual[k]
		if !exists {
			return k, expected[k], "<no such field>", false
		}
		if a != expected[k] {
			return k, expected[k], a, false
		}
	}
	return "", "", "", true
}

// assertRecord reads the live record and compares the expected fields.
func assertRecord(ctx context.Context, eng *engine.Engine, a Assertion) error {
	rec, err := eng.Read(ctx, a.Key)
	if err != nil {
		return &AssertionError{
			Type:     AssertRecord,
			Key:      a.Key,
			Expected: "live record",
			Actual:   err.Error(),
		}
	}

	if field, want, got, ok := mismatch(a.Expect, recordFields(rec)); !ok {
		return &AssertionError{
			Type:     AssertRecord,
			Key:      a.Key,
			Expected: fmt.Sprintf("%s = %q", field, want),
			Actual:   fmt.Sprintf("%s = %q", field, got),
		}
	}
	return nil
}

// assertAbsent checks that Read reports NotFound.
func assertAbsent(ctx context.Context, eng *engine.Engine, a Assertion) error {
	rec, err := eng.Read(ctx, a.Key)
	if errors.Is(err, ir.ErrNotFound) {
		return nil
	}
	actual := fmt.Sprintf("live record %v", recordFields(rec))
	if err != nil {
		actual = err.Error()
	}
	return &AssertionError{
		Type:     AssertAbsent,
		Key:      a.Key,
		Expected: string(ir.CodeNotFound),
		Actual:   actual,
	}
}

// assertHistoryCount checks the number of history entries. A key that never
// had history counts as zero.
func assertHistoryCount(ctx context.Context, eng *engine.Engine, a Assertion) error {
	entries, err := eng.History(ctx, a.Key)
	if err != nil && !errors.Is(err, ir.ErrNotFound) {
		return err
	}
	if len(entries) != a.Count {
		return &AssertionError{
			Type:     AssertHistoryCount,
			Key:      a.Key,
			Expected: fmt.Sprintf("%d entries", a.Count),
			Actual:   fmt.Sprintf("%d entries", len(entries)),
		}
	}
	return nil
}

// assertEntry compares the expected fields of one history entry.
func assertEntry(ctx context.Context, eng *engine.Engine, a Assertion) error {
	entries, err := eng.History(ctx, a.Key)
	if err != nil && !errors.Is(err, ir.ErrNotFound) {
		return err
	}
	if a.Index >= len(entries) {
		return &AssertionError{
			Type:     AssertEntry,
			Key:      a.Key,
			Expected: fmt.Sprintf("entry at index %d", a.Index),
			Actual:   fmt.Sprintf("%d entries", len(entries)),
		}
	}

	if field, want, got, ok := mismatch(a.Expect, entryFields(entries[a.Index])); !ok {
		return &AssertionError{
			Type:     AssertEntry,
			Key:      a.Key,
			Expected: fmt.Sprintf("entry %d %s = %q", a.Index, field, want),
			Actual:   fmt.Sprintf("entry %d %s = %q", a.Index, field, got),
		}
	}
	return nil
}

// assertAudit runs the verifier and compares its verdict.
func assertAudit(ctx context.Context, eng *engine.Engine, a Assertion) error {
	result, err := eng.Audit(ctx, a.Key)
	if err != nil {
		return &AssertionError{
			Type:     AssertAudit,
			Key:      a.Key,
			Expected: fmt.Sprintf("valid=%t", *a.Valid),
			Actual:   err.Error(),
		}
	}
	if result.Valid != *a.Valid {
		actual := fmt.Sprintf("valid=%t", result.Valid)
		if d := result.Divergence; d != nil {
			actual += fmt.Sprintf(" (entry %d %s: expected %s, stored %s)", d.Index, d.Field, d.Expected, d.Actual)
		}
		return &AssertionError{
			Type:     AssertAudit,
			Key:      a.Key,
			Expected: fmt.Sprintf("valid=%t", *a.Valid),
			Actual:   actual,
		}
	}
	return nil
}

// assertHead compares the key's head chain hash.
func assertHead(ctx context.Context, eng *engine.Engine, a Assertion) error {
	head, err := eng.Head(ctx, a.Key)
	if err != nil {
		return err
	}
	if head != a.Hash {
		return &AssertionError{
			Type:     AssertHead,
			Key:      a.Key,
			Expected: a.Hash,
			Actual:   head,
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Engine *engine.Engine
	Ctx    context.Context
}

// EvaluateAssertions evaluates all assertions against the ledger behind actx.
// Returns a slice of error messages for failed assertions. Failures carry
// the result's trace for context.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		if actx == nil || actx.Engine == nil {
			errs = append(errs, fmt.Sprintf("assertion[%d]: %s requires a ledger", i, assertion.Type))
			continue
		}

		switch assertion.Type {
		case AssertRecord:
			err = assertRecord(actx.Ctx, actx.Engine, assertion)
		case AssertAbsent:
			err = assertAbsent(actx.Ctx, actx.Engine, assertion)
		case AssertHistoryCount:
			err = assertHistoryCount(actx.Ctx, actx.Engine, assertion)
		case AssertEntry:
			err = assertEntry(actx.Ctx, actx.Engine, assertion)
		case AssertAudit:
			err = assertAudit(actx.Ctx, actx.Engine, assertion)
		case AssertHead:
			err = assertHead(actx.Ctx, actx.Engine, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		var aerr *AssertionError
		if errors.As(err, &aerr) {
			aerr.Trace = result.Trace
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
