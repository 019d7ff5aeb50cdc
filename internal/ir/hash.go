package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Domain prefixes for the three ledger digests.
// Version suffix enables future algorithm migration.
const (
	DomainValue = "pensionledger/value/v1"
	DomainEntry = "pensionledger/entry/v1"
	DomainChain = "pensionledger/chain/v1"
)

// Genesis is the previous chain hash of a key's first entry.
const Genesis = "0000000000000000000000000000000000000000000000000000000000000000"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ValueHash digests the canonical form of a record.
func ValueHash(r Record) (string, error) {
	canonical, err := MarshalCanonicalRecord(r)
	if err != nil {
		return "", fmt.Errorf("ValueHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}

// EntryHash binds the fields of one history entry. valueHash is "" for
// delete entries.
func EntryHash(txID string, ts time.Time, isDelete bool, valueHash string) (string, error) {
	obj := Object{
		"txId":      Str(txID),
		"timestamp": Str(FormatTimestamp(ts)),
		"isDelete":  Bool(isDelete),
		"valueHash": Str(valueHash),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EntryHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEntry, canonical), nil
}

// ChainHash links entryHash to the previous chain hash (Genesis for the
// first entry of a key).
func ChainHash(entryHash, prevChainHash string) (string, error) {
	obj := Object{
		"entryHash":     Str(entryHash),
		"prevChainHash": Str(prevChainHash),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ChainHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainChain, canonical), nil
}

// SealEntry builds a fully hashed history entry. A nil value produces a
// delete entry. prevChainHash must be the key's current head hash.
func SealEntry(txID string, ts time.Time, value *Record, prevChainHash string) (HistoryEntry, error) {
	if !IsDigest(prevChainHash) {
		return HistoryEntry{}, fmt.Errorf("SealEntry: previous chain hash %q is not a digest", prevChainHash)
	}

	entry := HistoryEntry{
		TxID:      txID,
		Timestamp: NormalizeTimestamp(ts),
		IsDelete:  value == nil,
		Value:     value,
	}

	if value != nil {
		vh, err := ValueHash(*value)
		if err != nil {
			return HistoryEntry{}, err
		}
		entry.ValueHash = vh
	}

	eh, err := EntryHash(entry.TxID, entry.Timestamp, entry.IsDelete, entry.ValueHash)
	if err != nil {
		return HistoryEntry{}, err
	}
	entry.EntryHash = eh

	ch, err := ChainHash(eh, prevChainHash)
	if err != nil {
		return HistoryEntry{}, err
	}
	entry.ChainHash = ch

	return entry, nil
}

// IsDigest reports whether s looks like a lowercase hex SHA-256 digest.
func IsDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// MustValueHash is like ValueHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustValueHash(r Record) string {
	h, err := ValueHash(r)
	if err != nil {
		panic(err)
	}
	return h
}
