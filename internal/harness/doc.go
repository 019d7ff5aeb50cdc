// Package harness runs ledger conformance scenarios.
//
// A scenario submits transactions to a fresh in-memory ledger through the
// real engine, checks each outcome, audits every key and evaluates
// assertions on the final state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	seed: false
//	setup:
//	  - kind: create
//	    key: P1
//	    name: A
//	    amount: "100.00"
//	flow:
//	  - kind: withdraw
//	    key: P1
//	    tx_id: tx-0002
//	    timestamp: "2026-01-02T00:00:00Z"
//	    delta: "30.00"
//	    expect:
//	      record: { amount: "70.00" }
//	  - kind: contribute
//	    key: P1
//	    delta: "0.00"
//	    expect:
//	      error: InvalidAmount
//	assertions:
//	  - type: record
//	    key: P1
//	    expect: { amount: "70.00", status: Active }
//	  - type: audit
//	    key: P1
//	    valid: true
//
// # Assertion Types
//
//   - record: Read the key and compare fields (subset match)
//   - absent: Read reports NotFound
//   - history_count: the key has exactly count entries
//   - entry: compare fields of the history entry at index
//   - audit: the verifier's verdict equals valid
//   - head: the head chain hash equals hash
//
// # Deterministic Testing
//
// Steps without tx_id get "tx-0001", "tx-0002", ... and steps without
// timestamp read testutil.DeterministicClock, which starts at
// testutil.DefaultEpoch and advances one second per reading. The same
// scenario therefore always produces the same hashes, which RunWithGolden
// pins in testdata/golden.
package harness
