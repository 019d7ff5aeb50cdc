package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pensionledger/internal/ir"
)

// Apply computes the record that results from req against current, the
// key's live record (nil when absent). It returns nil for a Delete.
// Apply is pure: it touches no storage and reads no clock.
//
// Preconditions, checked in order:
//   - Create on a live key: AlreadyExists
//   - any other kind on an absent key: NotFound
//   - amount change or status change away from Deceased: InvalidState
//   - Withdraw beyond the balance: InvalidAmount
func Apply(req Request, current *ir.Record, ts time.Time) (*ir.Record, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if req.Kind == KindCreate {
		if current != nil {
			return nil, ir.AlreadyExists(req.Key)
		}
		return &ir.Record{
			ID:            req.Key,
			RecipientName: req.Fields.RecipientName,
			Amount:        req.Fields.Amount,
			Status:        req.Fields.Status,
			LastUpdated:   ts,
		}, nil
	}

	if current == nil {
		return nil, ir.NotFound(req.Key)
	}
	if req.Kind == KindDelete {
		return nil, nil
	}

	next := *current
	next.LastUpdated = ts

	switch req.Kind {
	case KindUpdate:
		if current.Status == ir.StatusDeceased {
			if !req.Fields.Amount.Equal(current.Amount) {
				return nil, deceased(req.Key, "amount cannot change")
			}
			if req.Fields.Status != ir.StatusDeceased {
				return nil, deceased(req.Key, fmt.Sprintf("status cannot change to %s", req.Fields.Status))
			}
		}
		next.RecipientName = req.Fields.RecipientName
		next.Amount = req.Fields.Amount
		next.Status = req.Fields.Status

	case KindContribute:
		if current.Status == ir.StatusDeceased {
			return nil, deceased(req.Key, "contributions are not accepted")
		}
		amount, err := current.Amount.Add(req.Delta)
		if err != nil {
			return nil, withKey(err, req.Key)
		}
		next.Amount = amount

	case KindWithdraw:
		if current.Status == ir.StatusDeceased {
			return nil, deceased(req.Key, "withdrawals are not accepted")
		}
		amount, err := current.Amount.Sub(req.Delta)
		if err != nil {
			return nil, withKey(err, req.Key)
		}
		next.Amount = amount
	}

	return &next, nil
}

func withKey(err error, key string) error {
	var e *ir.Error
	if errors.As(err, &e) {
		e.Key = key
	}
	return err
}

func deceased(key, msg string) error {
	return ir.Errorf(ir.CodeInvalidState, key, "record is Deceased: %s", msg)
}
