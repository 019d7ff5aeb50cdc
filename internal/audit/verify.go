package audit

import (
	"fmt"

	"github.com/roach88/pensionledger/internal/ir"
)

// rowFault is a problem found while decoding a stored row, before any
// hash is recomputed.
type rowFault struct {
	field    string
	expected string
	actual   string
}

// Verify re-derives the hash chain of key from entries, oldest first.
//
// Every entry's valueHash, entryHash and chainHash are recomputed from its
// content and from the recomputed chain so far, never from stored hashes.
// The first mismatch (including structural ones: a delete carrying a value,
// a non-delete without one, a payload for another key, a timestamp earlier
// than its predecessor) is reported as the Divergence. Recomputation runs
// to the end, so FinalChainHash is always the recomputed head.
func Verify(key string, entries []ir.HistoryEntry) ir.AuditResult {
	return verify(key, entries, nil)
}

func verify(key string, entries []ir.HistoryEntry, faults map[int]rowFault) ir.AuditResult {
	if entries == nil {
		entries = []ir.HistoryEntry{}
	}
	result := ir.AuditResult{ID: key, Valid: true, Entries: entries}

	running := ir.Genesis
	for i, e := range entries {
		report := func(field, expected, actual string) {
			if result.Divergence != nil {
				return
			}
			result.Valid = false
			result.Divergence = &ir.Divergence{
				Index:    i,
				TxID:     e.TxID,
				Field:    field,
				Expected: expected,
				Actual:   actual,
			}
		}

		if f, ok := faults[i]; ok {
			report(f.field, f.expected, f.actual)
		}

		switch {
		case e.IsDelete && e.Value != nil:
			report(ir.FieldValue, "absent", "present")
		case !e.IsDelete && e.Value == nil:
			report(ir.FieldValue, "present", "absent")
		case !e.IsDelete && e.Value.ID != key:
			report(ir.FieldValueID, key, e.Value.ID)
		}

		if i > 0 && e.Timestamp.Before(entries[i-1].Timestamp) {
			report(ir.FieldTimestamp,
				fmt.Sprintf(">= %s", ir.FormatTimestamp(entries[i-1].Timestamp)),
				ir.FormatTimestamp(e.Timestamp))
		}

		valueHash := ""
		if !e.IsDelete && e.Value != nil {
			vh, err := ir.ValueHash(*e.Value)
			if err != nil {
				report(ir.FieldValue, "canonical record", err.Error())
			}
			valueHash = vh
		}
		if valueHash != e.ValueHash {
			report(ir.FieldValueHash, valueHash, e.ValueHash)
		}

		entryHash, err := ir.EntryHash(e.TxID, e.Timestamp, e.IsDelete, valueHash)
		if err != nil {
			report(ir.FieldEntryHash, "canonical entry", err.Error())
		}
		if entryHash != e.EntryHash {
			report(ir.FieldEntryHash, entryHash, e.EntryHash)
		}

		chainHash, err := ir.ChainHash(entryHash, running)
		if err != nil {
			report(ir.FieldChainHash, "canonical link", err.Error())
		}
		if chainHash != e.ChainHash {
			report(ir.FieldChainHash, chainHash, e.ChainHash)
		}
		running = chainHash
	}

	result.FinalChainHash = running
	return result
}
