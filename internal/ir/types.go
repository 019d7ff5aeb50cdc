package ir

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a pension record.
type Status string

const (
	StatusActive    Status = "Active"
	StatusRetired   Status = "Retired"
	StatusSuspended Status = "Suspended"
	StatusDeceased  Status = "Deceased"
)

// ValidStatuses lists every allowed status in display order.
var ValidStatuses = []Status{StatusActive, StatusRetired, StatusSuspended, StatusDeceased}

// Valid reports whether s is one of ValidStatuses.
func (s Status) Valid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus validates a status name. Matching is exact.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("status %q must be one of %v", s, ValidStatuses)}
	}
	return st, nil
}

// Record is the current state of one pension, identified by ID.
type Record struct {
	ID            string    `json:"id"`
	RecipientName string    `json:"recipientName"`
	Amount        Amount    `json:"amount"`
	Status        Status    `json:"status"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// CanonicalObject is the hash input form of the record. Amount and
// LastUpdated are rendered in their canonical text profiles.
func (r Record) CanonicalObject() Object {
	return Object{
		"id":            Str(r.ID),
		"recipientName": Str(r.RecipientName),
		"amount":        Str(r.Amount.String()),
		"status":        Str(r.Status),
		"lastUpdated":   Str(FormatTimestamp(r.LastUpdated)),
	}
}

// MarshalCanonicalRecord returns the canonical bytes of r. These bytes are
// both the value hash input and the persisted history payload.
func MarshalCanonicalRecord(r Record) ([]byte, error) {
	return MarshalCanonical(r.CanonicalObject())
}

// UnmarshalRecord decodes a persisted record payload.
func UnmarshalRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	r.LastUpdated = NormalizeTimestamp(r.LastUpdated)
	return r, nil
}

// HistoryEntry is one append-only audit entry for a key.
// Value is nil exactly when IsDelete is true.
type HistoryEntry struct {
	TxID      string    `json:"txId"`
	Timestamp time.Time `json:"timestamp"`
	IsDelete  bool      `json:"isDelete"`
	Value     *Record   `json:"value,omitempty"`
	ValueHash string    `json:"valueHash"`
	EntryHash string    `json:"entryHash"`
	ChainHash string    `json:"chainHash"`
}

// AuditResult is the outcome of re-deriving a key's hash chain.
// FinalChainHash is always the recomputed head, even when Valid is false.
type AuditResult struct {
	ID             string         `json:"id"`
	FinalChainHash string         `json:"finalChainHash"`
	Valid          bool           `json:"valid"`
	Entries        []HistoryEntry `json:"entries"`
	Divergence     *Divergence    `json:"divergence,omitempty"`
}

// Divergence locates the first mismatch between a stored entry and its
// recomputation. Expected is the recomputed value, Actual the stored one.
type Divergence struct {
	Index    int    `json:"index"`
	TxID     string `json:"txId"`
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Fields named in a Divergence.
const (
	FieldValue     = "value"
	FieldValueID   = "value.id"
	FieldValueHash = "valueHash"
	FieldEntryHash = "entryHash"
	FieldChainHash = "chainHash"
	FieldTimestamp = "timestamp"
)
