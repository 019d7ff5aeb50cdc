package ir

// Version constants for the ledger format and the binary.
const (
	// HashVersion is the digest scheme version, recorded on every history row.
	// It matches the /v1 suffix of the hash domains.
	HashVersion = "1"

	// LedgerVersion is the pensionledger release version.
	LedgerVersion = "0.1.0"
)
