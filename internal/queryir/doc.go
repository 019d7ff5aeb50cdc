// Package queryir is the filter representation for record listings.
//
// A listing is a Select over the live records with an optional predicate
// tree. The tree is backend-neutral: it names record fields by their JSON
// names (id, recipientName, amount, status, lastUpdated) and carries
// literal values as ir.Value. Package querysql compiles it to parameterized
// SQLite.
//
//	[CLI flags / HTTP query] → Criteria → [Select] → querysql → SQL
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed with marker methods, so backends can
// switch exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case Contains:
//	case Compare:
//	case And:
//	case Or:
//	}
//
// Values follow the canonical text profiles of the hash layer: amounts as
// fixed two-digit strings ("100.00"), timestamps in ir.TimestampLayout.
// Validate checks field names, operators and value shapes before a query
// reaches a backend.
package queryir
