package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPosting_Balanced(t *testing.T) {
	tests := []struct {
		name    string
		posting Posting
		want    bool
	}{
		{
			name: "balanced pair",
			posting: Posting{
				{Side: Debit, AmountUsd: decimal.NewFromInt(2000)},
				{Side: Credit, AmountUsd: decimal.NewFromInt(2000)},
			},
			want: true,
		},
		{
			name: "unbalanced",
			posting: Posting{
				{Side: Debit, AmountUsd: decimal.NewFromInt(2000)},
				{Side: Credit, AmountUsd: decimal.NewFromInt(1999)},
			},
			want: false,
		},
		{
			name: "multi-leg balanced",
			posting: Posting{
				{Side: Debit, AmountUsd: decimal.RequireFromString("3500")},
				{Side: Credit, AmountUsd: decimal.RequireFromString("1500")},
				{Side: Credit, AmountUsd: decimal.RequireFromString("2000")},
			},
			want: true,
		},
		{
			name:    "empty posting balances",
			posting: Posting{},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.posting.Balanced(); got != tt.want {
				t.Fatalf("Balanced() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Signed(t *testing.T) {
	e := Entry{Side: Debit, AmountUsd: decimal.NewFromInt(10)}
	if !e.Signed().Equal(decimal.NewFromInt(10)) {
		t.Fatalf("debit Signed() = %s", e.Signed())
	}

	e.Side = Credit
	if !e.Signed().Equal(decimal.NewFromInt(-10)) {
		t.Fatalf("credit Signed() = %s", e.Signed())
	}
}
