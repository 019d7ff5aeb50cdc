package ir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesCode(t *testing.T) {
	err := NotFound("P1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrAlreadyExists))

	wrapped := fmt.Errorf("apply update: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestErrorMessage(t *testing.T) {
	err := Errorf(CodeInvalidState, "P1", "record is %s", StatusDeceased)
	assert.Equal(t, "InvalidState [P1]: record is Deceased", err.Error())

	fault := IntegrityFault("P2", errors.New("head mismatch"))
	assert.Equal(t, "IntegrityFault [P2]: integrity fault: head mismatch", fault.Error())
	assert.ErrorIs(t, fault, ErrIntegrityFault)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, Code(""), CodeOf(errors.New("disk full")))
	assert.Equal(t, CodeAlreadyExists, CodeOf(AlreadyExists("P1")))
}

func TestChainInvalidError(t *testing.T) {
	assert.NoError(t, ChainInvalidError(AuditResult{ID: "P1", Valid: true}))

	err := ChainInvalidError(AuditResult{
		ID:    "P1",
		Valid: false,
		Divergence: &Divergence{
			Index: 1,
			TxID:  "tx-2",
			Field: FieldValueHash,
		},
	})
	assert.ErrorIs(t, err, ErrChainInvalid)

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "tx-2", e.TxID)
	assert.Contains(t, e.Error(), "entry 1: valueHash mismatch")
}

func TestParseStatus(t *testing.T) {
	for _, s := range ValidStatuses {
		got, err := ParseStatus(string(s))
		assert.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("active")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
