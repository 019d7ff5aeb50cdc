package queryir

import "github.com/roach88/pensionledger/internal/ir"

// Query is a record listing.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate is a filter condition over one record.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = value
//   - Contains: field contains substring, ignoring ASCII case
//   - Compare: field >= value or field <= value
//   - And: all predicates must be true
//   - Or: at least one predicate must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Record fields a predicate may reference.
const (
	FieldID            = "id"
	FieldRecipientName = "recipientName"
	FieldAmount        = "amount"
	FieldStatus        = "status"
	FieldLastUpdated   = "lastUpdated"
)

// Fields lists every filterable field.
var Fields = []string{FieldID, FieldRecipientName, FieldAmount, FieldStatus, FieldLastUpdated}

// Select lists live records matching Filter, ordered by id.
//
// Semantics:
//
//	SELECT <record> FROM records WHERE <filter> ORDER BY id LIMIT <limit>
type Select struct {
	Filter Predicate // nil = every record
	Limit  int       // 0 = no limit
}

func (Select) queryNode() {}

// Equals matches records whose field equals Value.
//
// Example:
//
//	Equals{Field: FieldStatus, Value: ir.Str("Active")}
//
// Amounts compare numerically, so "100" and "100.00" both match 100.00.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// Contains matches records whose field contains Substring. Matching
// ignores ASCII case. Only text fields (id, recipientName, status)
// support it.
type Contains struct {
	Field     string
	Substring string
}

func (Contains) predicateNode() {}

// Op is a Compare operator.
type Op string

const (
	OpAtLeast Op = ">="
	OpAtMost  Op = "<="
)

// Compare is an inclusive bound on an ordered field (amount, lastUpdated).
//
// Example (amount between 100 and 200):
//
//	And{Predicates: []Predicate{
//	  Compare{Field: FieldAmount, Op: OpAtLeast, Value: ir.Str("100.00")},
//	  Compare{Field: FieldAmount, Op: OpAtMost, Value: ir.Str("200.00")},
//	}}
type Compare struct {
	Field string
	Op    Op
	Value ir.Value
}

func (Compare) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. An empty Or is always false.
//
// Example (free-text search):
//
//	Or{Predicates: []Predicate{
//	  Contains{Field: FieldID, Substring: "kal"},
//	  Contains{Field: FieldRecipientName, Substring: "kal"},
//	}}
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}
