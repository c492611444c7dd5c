package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewEntry(t *testing.T) {
	tests := []struct {
		name    string
		konto   string
		side    Side
		amount  decimal.Decimal
		wantErr error
	}{
		{
			name:   "valid debit entry",
			konto:  "4010",
			side:   Debit,
			amount: decimal.RequireFromString("100.00"),
		},
		{
			name:    "zero amount rejected",
			konto:   "4010",
			side:    Debit,
			amount:  decimal.Zero,
			wantErr: ErrNonPositiveAmount,
		},
		{
			name:    "negative amount rejected",
			konto:   "2200",
			side:    Credit,
			amount:  decimal.RequireFromString("-5.00"),
			wantErr: ErrNonPositiveAmount,
		},
		{
			name:    "empty konto rejected",
			konto:   "  ",
			side:    Debit,
			amount:  decimal.RequireFromString("1.00"),
			wantErr: ErrEmptyKonto,
		},
		{
			name:    "unknown side rejected",
			konto:   "4010",
			side:    Side("both"),
			amount:  decimal.RequireFromString("1.00"),
			wantErr: ErrInvalidSide,
		},
		{
			name:    "amount rounding to zero rejected",
			konto:   "4010",
			side:    Debit,
			amount:  decimal.RequireFromString("0.004"),
			wantErr: ErrNonPositiveAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEntry(tt.konto, tt.side, tt.amount, "")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewEntry_RoundsHalfUp(t *testing.T) {
	e, err := NewEntry("4010", Debit, decimal.RequireFromString("10.005"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if e.Amount.String() != "10.01" {
		t.Fatalf("expected 10.01 after half-up rounding, got %s", e.Amount)
	}
}

func TestSide_Opposite(t *testing.T) {
	if Debit.Opposite() != Credit {
		t.Error("expected debit to reverse to credit")
	}
	if Credit.Opposite() != Debit {
		t.Error("expected credit to reverse to debit")
	}
}

func TestEntry_Reversed(t *testing.T) {
	e, err := NewEntry("2200", Credit, decimal.RequireFromString("125.00"), "invoice 42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := e.Reversed()
	if r.Side != Debit {
		t.Fatalf("expected reversed side debit, got %s", r.Side)
	}
	if r.Konto != e.Konto || !r.Amount.Equal(e.Amount) || r.Note != e.Note {
		t.Fatal("expected all other fields preserved on reversal")
	}
}
