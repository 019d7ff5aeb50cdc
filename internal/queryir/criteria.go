package queryir

import (
	"time"

	"github.com/roach88/pensionledger/internal/ir"
)

// Criteria is the flat filter the CLI and HTTP relay accept. Zero fields
// are not applied; the ones that are set combine with AND.
type Criteria struct {
	// Statuses matches any of the listed statuses.
	Statuses []ir.Status

	// Search matches id, recipient name or status by substring.
	Search string

	// NameContains matches the recipient name only.
	NameContains string

	MinAmount *ir.Amount
	MaxAmount *ir.Amount

	// UpdatedFrom and UpdatedTo bound lastUpdated, both inclusive.
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time

	Limit int
}

// searchFields are the fields Search looks in.
var searchFields = []string{FieldID, FieldRecipientName, FieldStatus}

// Select builds the listing for c. With no criteria set the filter is nil
// and every record matches.
func (c Criteria) Select() Select {
	var preds []Predicate
	switch len(c.Statuses) {
	case 0:
	case 1:
		preds = append(preds, statusEquals(c.Statuses[0]))
	default:
		alts := make([]Predicate, len(c.Statuses))
		for i, s := range c.Statuses {
			alts[i] = statusEquals(s)
		}
		preds = append(preds, Or{Predicates: alts})
	}
	if c.Search != "" {
		alts := make([]Predicate, len(searchFields))
		for i, f := range searchFields {
			alts[i] = Contains{Field: f, Substring: c.Search}
		}
		preds = append(preds, Or{Predicates: alts})
	}
	if c.NameContains != "" {
		preds = append(preds, Contains{Field: FieldRecipientName, Substring: c.NameContains})
	}
	if c.MinAmount != nil {
		preds = append(preds, Compare{Field: FieldAmount, Op: OpAtLeast, Value: ir.Str(c.MinAmount.String())})
	}
	if c.MaxAmount != nil {
		preds = append(preds, Compare{Field: FieldAmount, Op: OpAtMost, Value: ir.Str(c.MaxAmount.String())})
	}
	if c.UpdatedFrom != nil {
		preds = append(preds, Compare{Field: FieldLastUpdated, Op: OpAtLeast, Value: ir.Str(ir.FormatTimestamp(*c.UpdatedFrom))})
	}
	if c.UpdatedTo != nil {
		preds = append(preds, Compare{Field: FieldLastUpdated, Op: OpAtMost, Value: ir.Str(ir.FormatTimestamp(*c.UpdatedTo))})
	}

	sel := Select{Limit: c.Limit}
	switch len(preds) {
	case 0:
	case 1:
		sel.Filter = preds[0]
	default:
		sel.Filter = And{Predicates: preds}
	}
	return sel
}

func statusEquals(s ir.Status) Predicate {
	return Equals{Field: FieldStatus, Value: ir.Str(s)}
}
