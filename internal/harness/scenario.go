package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pensionledger/internal/engine"
	"github.com/roach88/pensionledger/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario submits a sequence of transactions to a fresh ledger and
// asserts on each outcome and on the final records, history and audits.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed runs engine.Seed before setup, with generated tx ids and clock
	// timestamps.
	Seed bool `yaml:"seed,omitempty"`

	// Setup contains transactions that establish initial state.
	// Every setup step must commit.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the main test flow, each step optionally with an
	// expected outcome.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final ledger state.
	// Supported types: record, absent, history_count, entry, audit, head
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one transaction. Fields irrelevant to Kind are ignored.
type Step struct {
	Kind string `yaml:"kind"`
	Key  string `yaml:"key"`

	// TxID and Timestamp are optional. When empty the engine assigns a
	// sequential id and a deterministic clock reading.
	TxID      string `yaml:"tx_id,omitempty"`
	Timestamp string `yaml:"timestamp,omitempty"` // RFC 3339

	// Create, Update. Status defaults to Active.
	Name   string `yaml:"name,omitempty"`
	Amount string `yaml:"amount,omitempty"`
	Status string `yaml:"status,omitempty"`

	// Contribute, Withdraw.
	Delta string `yaml:"delta,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step must commit.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies expected step behavior.
type Expect struct {
	// Error is the expected error code (e.g. "InvalidAmount"). Empty means
	// the step must commit.
	Error string `yaml:"error,omitempty"`

	// Record contains expected fields of the resulting record.
	// Subset match: only listed fields are compared. Field names follow
	// the record's JSON form (recipientName, amount, status, lastUpdated).
	Record map[string]string `yaml:"record,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "record": Read key and compare fields (subset match)
	// - "absent": Read key reports NotFound
	// - "history_count": key has exactly Count entries
	// - "entry": compare fields of the entry at Index (subset match)
	// - "audit": Audit key and compare Valid
	// - "head": key's head chain hash equals Hash
	Type string `yaml:"type"`

	Key   string `yaml:"key"`
	Count int    `yaml:"count,omitempty"`
	Index int    `yaml:"index,omitempty"`
	Valid *bool  `yaml:"valid,omitempty"`
	Hash  string `yaml:"hash,omitempty"`

	// Expect contains expected field values (record, entry).
	Expect map[string]string `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertRecord       = "record"
	AssertAbsent       = "absent"
	AssertHistoryCount = "history_count"
	AssertEntry        = "entry"
	AssertAudit        = "audit"
	AssertHead         = "head"
)

// knownCodes are the error codes an expect clause may name.
var knownCodes = map[string]bool{
	string(ir.CodeNotFound):        true,
	string(ir.CodeAlreadyExists):   true,
	string(ir.CodeInvalidAmount):   true,
	string(ir.CodeInvalidState):    true,
	string(ir.CodeInvalidArgument): true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, ordered by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob scenarios: %w", err)
	}

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if step.Kind == "" {
			return fmt.Errorf("setup[%d]: kind is required", i)
		}
		if step.Expect != nil && step.Expect.Error != "" {
			return fmt.Errorf("setup[%d]: setup steps must commit, cannot expect %s", i, step.Expect.Error)
		}
	}

	for i, step := range s.Flow {
		if step.Kind == "" {
			return fmt.Errorf("flow[%d]: kind is required", i)
		}
		if step.Expect == nil {
			continue
		}
		if step.Expect.Error != "" && !knownCodes[step.Expect.Error] {
			return fmt.Errorf("flow[%d].expect: unknown error code %q", i, step.Expect.Error)
		}
		if step.Expect.Error != "" && len(step.Expect.Record) > 0 {
			return fmt.Errorf("flow[%d].expect: record cannot be combined with error", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Key == "" {
		return fmt.Errorf("assertions[%d]: key is required", index)
	}

	switch a.Type {
	case AssertRecord:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record", index)
		}
	case AssertAbsent:
	case AssertHistoryCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for history_count", index)
		}
	case AssertEntry:
		if a.Index < 0 {
			return fmt.Errorf("assertions[%d]: index must be non-negative for entry", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for entry", index)
		}
	case AssertAudit:
		if a.Valid == nil {
			return fmt.Errorf("assertions[%d]: valid is required for audit", index)
		}
	case AssertHead:
		if !ir.IsDigest(a.Hash) {
			return fmt.Errorf("assertions[%d]: hash must be a hex SHA-256 digest for head", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// request converts the step into an engine request. Malformed amounts and
// timestamps fail here with the code the engine would report.
func (s Step) request() (engine.Request, error) {
	kind, err := engine.ParseKind(s.Kind)
	if err != nil {
		return engine.Request{}, err
	}

	req := engine.Request{Kind: kind, Key: s.Key, TxID: s.TxID}
	if s.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, s.Timestamp)
		if err != nil {
			return engine.Request{}, &ir.Error{Code: ir.CodeInvalidArgument, Key: s.Key, TxID: s.TxID, Message: fmt.Sprintf("timestamp %q is not RFC 3339", s.Timestamp)}
		}
		req.Timestamp = ts
	}

	switch kind {
	case engine.KindCreate, engine.KindUpdate:
		amount, err := ir.ParseAmount(s.Amount)
		if err != nil {
			return engine.Request{}, err
		}
		status := ir.StatusActive
		if s.Status != "" {
			status = ir.Status(s.Status)
		}
		req.Fields = engine.Fields{RecipientName: s.Name, Amount: amount, Status: status}
	case engine.KindContribute, engine.KindWithdraw:
		delta, err := ir.ParseAmount(s.Delta)
		if err != nil {
			return engine.Request{}, err
		}
		req.Delta = delta
	}
	return req, nil
}
