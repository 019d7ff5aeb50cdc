package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pensionledger/internal/ir"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func live(amount string, status ir.Status) *ir.Record {
	return &ir.Record{
		ID:            "P1",
		RecipientName: "A",
		Amount:        ir.MustAmount(amount),
		Status:        status,
		LastUpdated:   t0,
	}
}

func fields(name, amount string, status ir.Status) Fields {
	return Fields{RecipientName: name, Amount: ir.MustAmount(amount), Status: status}
}

func TestApply_Create(t *testing.T) {
	ts := t0.Add(time.Hour)
	next, err := Apply(Request{Kind: KindCreate, Key: "P1", Fields: fields("A", "100.00", ir.StatusActive)}, nil, ts)
	require.NoError(t, err)

	assert.Equal(t, "P1", next.ID)
	assert.Equal(t, "A", next.RecipientName)
	assert.Equal(t, "100.00", next.Amount.String())
	assert.Equal(t, ir.StatusActive, next.Status)
	assert.Equal(t, ts, next.LastUpdated)
}

func TestApply_Transitions(t *testing.T) {
	ts := t0.Add(time.Minute)

	tests := []struct {
		name       string
		req        Request
		current    *ir.Record
		wantAmount string
		wantStatus ir.Status
		wantName   string
		wantNil    bool
		wantCode   ir.Code
	}{
		{
			name:     "create on live key",
			req:      Request{Kind: KindCreate, Key: "P1", Fields: fields("A", "1.00", ir.StatusActive)},
			current:  live("100.00", ir.StatusActive),
			wantCode: ir.CodeAlreadyExists,
		},
		{
			name:       "update replaces every field",
			req:        Request{Kind: KindUpdate, Key: "P1", Fields: fields("B", "250.00", ir.StatusRetired)},
			current:    live("100.00", ir.StatusActive),
			wantAmount: "250.00",
			wantStatus: ir.StatusRetired,
			wantName:   "B",
		},
		{
			name:     "update absent key",
			req:      Request{Kind: KindUpdate, Key: "P1", Fields: fields("B", "250.00", ir.StatusRetired)},
			wantCode: ir.CodeNotFound,
		},
		{
			name:       "contribute adds",
			req:        Request{Kind: KindContribute, Key: "P1", Delta: ir.MustAmount("0.50")},
			current:    live("100.00", ir.StatusActive),
			wantAmount: "100.50",
			wantStatus: ir.StatusActive,
			wantName:   "A",
		},
		{
			name:     "contribute zero",
			req:      Request{Kind: KindContribute, Key: "P1", Delta: ir.MustAmount("0")},
			current:  live("100.00", ir.StatusActive),
			wantCode: ir.CodeInvalidAmount,
		},
		{
			name:     "contribute past maximum",
			req:      Request{Kind: KindContribute, Key: "P1", Delta: ir.MustAmount("0.01")},
			current:  live(ir.MaxAmount.String(), ir.StatusActive),
			wantCode: ir.CodeInvalidAmount,
		},
		{
			name:     "contribute absent key",
			req:      Request{Kind: KindContribute, Key: "P1", Delta: ir.MustAmount("1")},
			wantCode: ir.CodeNotFound,
		},
		{
			name:       "withdraw subtracts",
			req:        Request{Kind: KindWithdraw, Key: "P1", Delta: ir.MustAmount("40.25")},
			current:    live("100.00", ir.StatusRetired),
			wantAmount: "59.75",
			wantStatus: ir.StatusRetired,
			wantName:   "A",
		},
		{
			name:       "withdraw entire balance",
			req:        Request{Kind: KindWithdraw, Key: "P1", Delta: ir.MustAmount("100")},
			current:    live("100.00", ir.StatusActive),
			wantAmount: "0.00",
			wantStatus: ir.StatusActive,
			wantName:   "A",
		},
		{
			name:     "withdraw beyond balance",
			req:      Request{Kind: KindWithdraw, Key: "P1", Delta: ir.MustAmount("100.01")},
			current:  live("100.00", ir.StatusActive),
			wantCode: ir.CodeInvalidAmount,
		},
		{
			name:     "withdraw zero checked before state",
			req:      Request{Kind: KindWithdraw, Key: "P1", Delta: ir.MustAmount("0")},
			wantCode: ir.CodeInvalidAmount,
		},
		{
			name:    "delete live key",
			req:     Request{Kind: KindDelete, Key: "P1"},
			current: live("100.00", ir.StatusActive),
			wantNil: true,
		},
		{
			name:     "delete absent key",
			req:      Request{Kind: KindDelete, Key: "P1"},
			wantCode: ir.CodeNotFound,
		},
		{
			name:     "empty key",
			req:      Request{Kind: KindDelete},
			wantCode: ir.CodeInvalidArgument,
		},
		{
			name:     "unknown kind",
			req:      Request{Kind: "transfer", Key: "P1"},
			current:  live("100.00", ir.StatusActive),
			wantCode: ir.CodeInvalidArgument,
		},
		{
			name:     "missing recipient name",
			req:      Request{Kind: KindCreate, Key: "P1", Fields: fields("", "1.00", ir.StatusActive)},
			wantCode: ir.CodeInvalidArgument,
		},
		{
			name:     "unknown status",
			req:      Request{Kind: KindCreate, Key: "P1", Fields: fields("A", "1.00", "Dormant")},
			wantCode: ir.CodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Apply(tt.req, tt.current, ts)

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, ir.CodeOf(err))
				assert.Nil(t, next)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, next)
				return
			}
			require.NotNil(t, next)
			assert.Equal(t, tt.wantAmount, next.Amount.String())
			assert.Equal(t, tt.wantStatus, next.Status)
			assert.Equal(t, tt.wantName, next.RecipientName)
			assert.Equal(t, ts, next.LastUpdated)
		})
	}
}

func TestApply_Deceased(t *testing.T) {
	dead := live("500.00", ir.StatusDeceased)

	tests := []struct {
		name     string
		req      Request
		wantCode ir.Code
	}{
		{"contribute", Request{Kind: KindContribute, Key: "P1", Delta: ir.MustAmount("1")}, ir.CodeInvalidState},
		{"withdraw", Request{Kind: KindWithdraw, Key: "P1", Delta: ir.MustAmount("1")}, ir.CodeInvalidState},
		{"update amount", Request{Kind: KindUpdate, Key: "P1", Fields: fields("A", "0.00", ir.StatusDeceased)}, ir.CodeInvalidState},
		{"revive", Request{Kind: KindUpdate, Key: "P1", Fields: fields("A", "500.00", ir.StatusActive)}, ir.CodeInvalidState},
		{"correct name", Request{Kind: KindUpdate, Key: "P1", Fields: fields("A. Kalam", "500.00", ir.StatusDeceased)}, ""},
		{"delete", Request{Kind: KindDelete, Key: "P1"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(tt.req, dead, t0)
			assert.Equal(t, tt.wantCode, ir.CodeOf(err))
		})
	}
}

func TestApply_DoesNotMutateCurrent(t *testing.T) {
	current := live("100.00", ir.StatusActive)

	_, err := Apply(Request{Kind: KindContribute, Key: "P1", Delta: ir.MustAmount("5")}, current, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "100.00", current.Amount.String())
	assert.Equal(t, t0, current.LastUpdated)
}

func TestApply_ErrorCarriesKey(t *testing.T) {
	_, err := Apply(Request{Kind: KindWithdraw, Key: "P7", Delta: ir.MustAmount("9")}, live("1.00", ir.StatusActive), t0)

	var e *ir.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "P7", e.Key)
	assert.Contains(t, e.Error(), "insufficient funds")
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("withdraw")
	require.NoError(t, err)
	assert.Equal(t, KindWithdraw, k)

	_, err = ParseKind("Withdraw")
	assert.ErrorIs(t, err, ir.ErrInvalidArgument)
}
