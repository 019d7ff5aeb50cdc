package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pensionledger/internal/ir"
)

// Snapshot captures what a scenario committed: every step outcome and the
// final audit of every key. It is rendered as canonical JSON, so the golden
// bytes are stable across runs.
type Snapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Audits       []ir.AuditResult
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization. Audits are summarized by head hash and entry count; the
// entries themselves are already pinned by the trace's chain hashes.
func (s *Snapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":     ev.Seq,
			"kind":    ev.Kind,
			"key":     ev.Key,
			"outcome": ev.Outcome,
		}
		if ev.TxID != "" {
			m["txId"] = ev.TxID
		}
		if ev.ChainHash != "" {
			m["chainHash"] = ev.ChainHash
		}
		trace[i] = m
	}

	audits := make([]any, len(s.Audits))
	for i, a := range s.Audits {
		m := map[string]any{
			"id":             a.ID,
			"valid":          a.Valid,
			"entries":        len(a.Entries),
			"finalChainHash": a.FinalChainHash,
		}
		if d := a.Divergence; d != nil {
			m["divergence"] = map[string]any{
				"index":    d.Index,
				"txId":     d.TxID,
				"field":    d.Field,
				"expected": d.Expected,
				"actual":   d.Actual,
			}
		}
		audits[i] = m
	}

	return map[string]any{
		"scenario": s.ScenarioName,
		"trace":    trace,
		"audits":   audits,
	}
}

// Marshal renders the snapshot as canonical JSON followed by a newline.
func (s *Snapshot) Marshal() ([]byte, error) {
	data, err := ir.MarshalCanonical(s.toCanonicalMap())
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass. Test failure (via
// goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Audits:       result.Audits,
	}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
