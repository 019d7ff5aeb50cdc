package engine

import (
	"context"
	"errors"

	"github.com/roach88/pensionledger/internal/ir"
)

// SeedRecords is the initial ledger content written by Seed.
var SeedRecords = []Fields{
	{RecipientName: "Abul Kalam", Amount: ir.MustAmount("15000.50"), Status: ir.StatusActive},
	{RecipientName: "Fatima Begum", Amount: ir.MustAmount("12500.00"), Status: ir.StatusRetired},
}

// SeedKeys are the ids of SeedRecords, index for index.
var SeedKeys = []string{"PENSION_001", "PENSION_002"}

// Seed creates the SeedRecords through Submit, so each gets a history
// entry. Keys that are already live are skipped. It returns the receipts
// of the records it created.
func (e *Engine) Seed(ctx context.Context) ([]Receipt, error) {
	receipts := []Receipt{}
	for i, fields := range SeedRecords {
		exists, err := e.Exists(ctx, SeedKeys[i])
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		r, err := e.Submit(ctx, Request{Kind: KindCreate, Key: SeedKeys[i], Fields: fields})
		if errors.Is(err, ir.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, nil
}
