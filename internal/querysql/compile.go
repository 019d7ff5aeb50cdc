// Package querysql compiles record listings to parameterized SQLite.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/pensionledger/internal/ir"
	"github.com/roach88/pensionledger/internal/queryir"
)

// RecordColumns is the column list every compiled listing selects, in the
// order the store scans them.
const RecordColumns = `id, recipient_name, amount, status, last_updated`

// columns maps record fields to records table columns.
var columns = map[string]string{
	queryir.FieldID:            "id",
	queryir.FieldRecipientName: "recipient_name",
	queryir.FieldAmount:        "amount",
	queryir.FieldStatus:        "status",
	queryir.FieldLastUpdated:   "last_updated",
}

// amountCents compares amounts numerically. Stored amounts are fixed
// two-digit text, so the cents value is exact.
const amountCents = `CAST(ROUND(amount * 100) AS INTEGER)`

// SQLCompiler compiles queryir listings to parameterized SQL for SQLite.
//
// Every listing is ordered by id with COLLATE BINARY, and every value is
// passed as a parameter, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a listing to parameterized SQL.
// Returns (sql, params, error). The query is validated first.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var b strings.Builder
	var params []any

	b.WriteString("SELECT " + RecordColumns + " FROM records")

	if q.Filter != nil {
		where, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE " + where)
		params = filterParams
	}

	b.WriteString(" ORDER BY id COLLATE BINARY ASC")

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}

	return b.String(), params, nil
}

// compilePredicate compiles a predicate to a WHERE fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.Contains:
		return c.compileContains(pred)
	case *queryir.Contains:
		return c.compileContains(*pred)
	case queryir.Compare:
		return c.compileCompare(pred)
	case *queryir.Compare:
		return c.compileCompare(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	case queryir.Or:
		return c.compileOr(pred)
	case *queryir.Or:
		return c.compileOr(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	return c.compileComparison(eq.Field, "=", eq.Value)
}

func (c *SQLCompiler) compileCompare(cmp queryir.Compare) (string, []any, error) {
	return c.compileComparison(cmp.Field, string(cmp.Op), cmp.Value)
}

// compileComparison renders "<column> <op> ?". Amounts compare as integer
// cents, everything else as text. Timestamps are fixed width, so text
// order is time order.
func (c *SQLCompiler) compileComparison(field, op string, value ir.Value) (string, []any, error) {
	text, ok := value.(ir.Str)
	if !ok {
		return "", nil, fmt.Errorf("value for %q must be a string, got %T", field, value)
	}

	if field == queryir.FieldAmount {
		cents, err := toCents(string(text))
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s ?", amountCents, op), []any{cents}, nil
	}

	column, ok := columns[field]
	if !ok {
		return "", nil, fmt.Errorf("unknown field %q", field)
	}
	return fmt.Sprintf("%s %s ?", column, op), []any{string(text)}, nil
}

// compileContains uses instr rather than LIKE so the substring needs no
// escaping. lower() folds ASCII only.
func (c *SQLCompiler) compileContains(ct queryir.Contains) (string, []any, error) {
	column, ok := columns[ct.Field]
	if !ok {
		return "", nil, fmt.Errorf("unknown field %q", ct.Field)
	}
	return fmt.Sprintf("instr(lower(%s), lower(?)) > 0", column), []any{ct.Substring}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // Always true (vacuous truth)
	}
	return c.compileJoined(and.Predicates, " AND ")
}

func (c *SQLCompiler) compileOr(or queryir.Or) (string, []any, error) {
	if len(or.Predicates) == 0 {
		return "1 = 0", nil, nil // No alternative holds
	}
	return c.compileJoined(or.Predicates, " OR ")
}

// compileJoined parenthesizes each predicate and joins them with sep.
func (c *SQLCompiler) compileJoined(preds []queryir.Predicate, sep string) (string, []any, error) {
	parts := make([]string, 0, len(preds))
	var params []any
	for _, pred := range preds {
		sql, predParams, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, predParams...)
	}

	return strings.Join(parts, sep), params, nil
}

func toCents(s string) (int64, error) {
	a, err := ir.ParseAmount(s)
	if err != nil {
		return 0, err
	}
	return a.Decimal().Shift(ir.AmountScale).IntPart(), nil
}
