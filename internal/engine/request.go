package engine

import (
	"fmt"
	"time"

	"github.com/roach88/pensionledger/internal/ir"
)

// Kind names a mutating transaction.
type Kind string

const (
	KindCreate     Kind = "create"
	KindUpdate     Kind = "update"
	KindContribute Kind = "contribute"
	KindWithdraw   Kind = "withdraw"
	KindDelete     Kind = "delete"
)

// Kinds lists every transaction kind.
var Kinds = []Kind{KindCreate, KindUpdate, KindContribute, KindWithdraw, KindDelete}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", &ir.Error{Code: ir.CodeInvalidArgument, Message: fmt.Sprintf("unknown transaction kind %q", s)}
}

// Fields is the full record payload of a Create or Update.
type Fields struct {
	RecipientName string
	Amount        ir.Amount
	Status        ir.Status
}

// Request is one mutating transaction.
//
// TxID and Timestamp are normally supplied by the substrate that orders
// transactions. When empty, the engine assigns a generated id and reads its
// clock after acquiring the key's lock.
type Request struct {
	Kind      Kind
	Key       string
	TxID      string
	Timestamp time.Time
	Fields    Fields    // Create, Update
	Delta     ir.Amount // Contribute, Withdraw
}

func (r Request) validate() error {
	if _, err := ParseKind(string(r.Kind)); err != nil {
		return err
	}
	if r.Key == "" {
		return &ir.Error{Code: ir.CodeInvalidArgument, TxID: r.TxID, Message: "record id is required"}
	}

	switch r.Kind {
	case KindCreate, KindUpdate:
		if r.Fields.RecipientName == "" {
			return ir.Errorf(ir.CodeInvalidArgument, r.Key, "recipient name is required")
		}
		if !r.Fields.Status.Valid() {
			return ir.Errorf(ir.CodeInvalidArgument, r.Key, "status %q must be one of %v", r.Fields.Status, ir.ValidStatuses)
		}
	case KindContribute, KindWithdraw:
		if !r.Delta.Decimal().IsPositive() {
			return ir.Errorf(ir.CodeInvalidAmount, r.Key, "%s amount must be greater than zero, got %s", r.Kind, r.Delta)
		}
	}
	return nil
}

// Receipt describes a committed transaction. Record is the resulting
// version, nil after a Delete.
type Receipt struct {
	TxID   string          `json:"txId"`
	Record *ir.Record      `json:"record"`
	Entry  ir.HistoryEntry `json:"entry"`
}

// Query names a read-only evaluation.
type Query string

const (
	QueryRead    Query = "read"
	QueryList    Query = "list"
	QueryHistory Query = "history"
	QueryAudit   Query = "audit"
	QueryHead    Query = "head"
	QueryExists  Query = "exists"
)
