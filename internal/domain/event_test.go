package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrdinal_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b Ordinal
		want int
	}{
		{
			name: "earlier block",
			a:    Ordinal{Block: 100, Log: 5},
			b:    Ordinal{Block: 101, Log: 0},
			want: -1,
		},
		{
			name: "same block earlier log",
			a:    Ordinal{Block: 100, Log: 1},
			b:    Ordinal{Block: 100, Log: 2},
			want: -1,
		},
		{
			name: "equal",
			a:    Ordinal{Block: 100, Log: 1},
			b:    Ordinal{Block: 100, Log: 1},
			want: 0,
		},
		{
			name: "later block",
			a:    Ordinal{Block: 200, Log: 0},
			b:    Ordinal{Block: 100, Log: 9},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Compare(tt.b); got != tt.want {
				t.Fatalf("Compare() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewEventID_Deterministic(t *testing.T) {
	a := NewEventID("0xabc", 3)
	b := NewEventID("0xabc", 3)

	if a != b {
		t.Fatalf("expected identical IDs, got %s and %s", a, b)
	}

	if a == NewEventID("0xabc", 4) {
		t.Fatal("different log index must produce a different ID")
	}
}

func TestTransactionEvent_ValueUsd(t *testing.T) {
	ev := TransactionEvent{
		Amount:       decimal.RequireFromString("-1.5"),
		UnitPriceUsd: decimal.NewFromInt(4000),
		Priced:       true,
	}

	want := decimal.NewFromInt(6000)
	if !ev.ValueUsd().Equal(want) {
		t.Fatalf("ValueUsd() = %s, want %s", ev.ValueUsd(), want)
	}

	ev.Priced = false
	if !ev.ValueUsd().IsZero() {
		t.Fatalf("unpriced event must value at zero, got %s", ev.ValueUsd())
	}
}

func TestCategory_Valid(t *testing.T) {
	for _, c := range []Category{
		CategoryAcquisition, CategoryDisposal, CategoryIncome,
		CategoryFee, CategoryTransfer, CategoryIgnored,
	} {
		if !c.Valid() {
			t.Fatalf("category %s should be valid", c)
		}
	}

	if Category("swap").Valid() {
		t.Fatal("unknown category should not be valid")
	}
}
