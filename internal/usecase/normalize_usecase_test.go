package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainbooks/chainbooks/internal/domain"
	"github.com/chainbooks/chainbooks/internal/usecase"
	"github.com/chainbooks/chainbooks/internal/usecase/mocks"
)

const (
	testWallet = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"
	otherAddr  = "0x3333333333333333333333333333333333333333"
	testTx     = "0xa2b5f1c8d4e7a0b3c6d9e2f5a8b1c4d7e0f3a6b9c2d5e8f1a4b7c0d3e6f9a2b5"
)

func record(tx string, logIdx uint32, block uint64, at time.Time, from, to, asset, amount, gas string) domain.RawRecord {
	return domain.RawRecord{
		TxHash:         tx,
		LogIndex:       logIdx,
		BlockNumber:    block,
		BlockTimestamp: at,
		FromAddress:    from,
		ToAddress:      to,
		Asset:          asset,
		Amount:         dec(amount),
		GasFeeEth:      dec(gas),
		Success:        true,
	}
}

func pricedOracle() *mocks.MockOracle {
	oracle := mocks.NewMockOracle()
	oracle.SetPrice("ETH", dec("2000"))
	oracle.SetPrice("USDC", dec("1"))
	return oracle
}

func TestNormalizer_SignsAmountsByDirection(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		from, to   string
		wantAmount string
		wantCpty   string
	}{
		{"inbound is positive", otherAddr, testWallet, "1.5", otherAddr},
		{"outbound is negative", testWallet, otherAddr, "-1.5", otherAddr},
		{"self transfer is zero", testWallet, testWallet, "0", testWallet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := usecase.NewNormalizer(pricedOracle(), 2)
			trail := &domain.AuditTrail{}

			events, err := n.Normalize(context.Background(), testWallet,
				[]domain.RawRecord{record(testTx, 0, 1, t1, tt.from, tt.to, "ETH", "1.5", "0")}, trail)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !events[0].Amount.Equal(dec(tt.wantAmount)) {
				t.Errorf("amount = %s, want %s", events[0].Amount, tt.wantAmount)
			}
			if events[0].Counterparty != tt.wantCpty {
				t.Errorf("counterparty = %s, want %s", events[0].Counterparty, tt.wantCpty)
			}
		})
	}
}

func TestNormalizer_OrdersByOrdinal(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	records := []domain.RawRecord{
		record(testTx, 2, 10, t1.Add(2*time.Minute), otherAddr, testWallet, "ETH", "3", "0"),
		record(testTx, 0, 10, t1, otherAddr, testWallet, "ETH", "1", "0"),
		record(testTx, 1, 9, t1.Add(time.Minute), otherAddr, testWallet, "ETH", "2", "0"),
	}

	n := usecase.NewNormalizer(pricedOracle(), 2)
	events, err := n.Normalize(context.Background(), testWallet, records, &domain.AuditTrail{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.Ordinal{{Block: 9, Log: 1}, {Block: 10, Log: 0}, {Block: 10, Log: 2}}
	for i, ev := range events {
		if ev.Ordinal != want[i] {
			t.Errorf("event %d ordinal = %s, want %s", i, ev.Ordinal, want[i])
		}
	}
}

func TestNormalizer_OrdinalTiesAreFeedOrderIndependent(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Two plain transfers in the same block both carry log index 0.
	otherTx := "0xb3c6f2d9e5f8b1c4d7e0f3a6b9c2d5e8f1a4b7c0d3e6f9a2b5c8d1e4f7a0b3c6"
	a := record(testTx, 0, 5, t1, otherAddr, testWallet, "ETH", "1", "0")
	b := record(otherTx, 0, 5, t1, otherAddr, testWallet, "ETH", "2", "0")

	order := func(records []domain.RawRecord) []string {
		n := usecase.NewNormalizer(pricedOracle(), 2)
		events, err := n.Normalize(context.Background(), testWallet, records, &domain.AuditTrail{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		ids := make([]string, len(events))
		for i, ev := range events {
			ids[i] = ev.ID
		}
		return ids
	}

	first := order([]domain.RawRecord{a, b})
	second := order([]domain.RawRecord{b, a})

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 events per run, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("event order depends on feed order: %v vs %v", first, second)
		}
	}
}

func TestNormalizer_Deduplication(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	base := record(testTx, 0, 1, t1, otherAddr, testWallet, "ETH", "1", "0")

	t.Run("identical duplicate is skipped with an audit note", func(t *testing.T) {
		n := usecase.NewNormalizer(pricedOracle(), 2)
		trail := &domain.AuditTrail{}

		events, err := n.Normalize(context.Background(), testWallet,
			[]domain.RawRecord{base, base}, trail)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(events) != 1 {
			t.Errorf("events = %d, want 1", len(events))
		}
		if !trail.HasCode(domain.AuditDuplicateSkipped) {
			t.Error("expected a duplicate-skipped audit note")
		}
	})

	t.Run("conflicting duplicate is fatal", func(t *testing.T) {
		conflicting := base
		conflicting.Amount = dec("2")

		n := usecase.NewNormalizer(pricedOracle(), 2)
		_, err := n.Normalize(context.Background(), testWallet,
			[]domain.RawRecord{base, conflicting}, &domain.AuditTrail{})
		if !errors.Is(err, domain.ErrDuplicateEvent) {
			t.Fatalf("err = %v, want ErrDuplicateEvent", err)
		}
	})
}

func TestNormalizer_FailedTransactionKeepsGasOnly(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rec := record(testTx, 0, 1, t1, testWallet, otherAddr, "ETH", "1", "0.002")
	rec.Success = false

	n := usecase.NewNormalizer(pricedOracle(), 2)
	events, err := n.Normalize(context.Background(), testWallet, []domain.RawRecord{rec}, &domain.AuditTrail{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !events[0].Amount.IsZero() {
		t.Errorf("failed tx amount = %s, want 0", events[0].Amount)
	}
	if !events[0].GasFeeEth.Equal(dec("0.002")) {
		t.Errorf("gas = %s, want 0.002", events[0].GasFeeEth)
	}
	// 0.002 ETH at 2000 USD/ETH.
	if !events[0].GasFeeUsd.Equal(dec("4")) {
		t.Errorf("gas usd = %s, want 4", events[0].GasFeeUsd)
	}
}

func TestNormalizer_UnpricedNeverSilentlyZero(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	n := usecase.NewNormalizer(mocks.NewMockOracle(), 2)
	trail := &domain.AuditTrail{}

	events, err := n.Normalize(context.Background(), testWallet,
		[]domain.RawRecord{record(testTx, 0, 1, t1, otherAddr, testWallet, "OBSCURE", "10", "0")}, trail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if events[0].Priced {
		t.Error("event should be unpriced")
	}
	if !trail.HasCode(domain.AuditUnpriced) {
		t.Error("expected an unpriced audit note")
	}
}

func TestNormalizer_OracleFailureDegradesToUnpriced(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	oracle := mocks.NewMockOracle()
	oracle.GetUnitPriceFunc = func(ctx context.Context, asset string, at time.Time) (decimal.Decimal, bool, error) {
		return decimal.Zero, false, errors.New("oracle unavailable")
	}

	n := usecase.NewNormalizer(oracle, 2)
	trail := &domain.AuditTrail{}

	events, err := n.Normalize(context.Background(), testWallet,
		[]domain.RawRecord{record(testTx, 0, 1, t1, otherAddr, testWallet, "ETH", "1", "0")}, trail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if events[0].Priced {
		t.Error("event should be unpriced after oracle failure")
	}
	if !trail.HasCode(domain.AuditUnpriced) {
		t.Error("expected an unpriced audit note")
	}
}

func TestNormalizer_RejectsForeignRecord(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	n := usecase.NewNormalizer(pricedOracle(), 2)
	_, err := n.Normalize(context.Background(), testWallet,
		[]domain.RawRecord{record(testTx, 0, 1, t1, otherAddr, otherAddr, "ETH", "1", "0")}, &domain.AuditTrail{})
	if !errors.Is(err, domain.ErrInvalidRecord) {
		t.Fatalf("err = %v, want ErrInvalidRecord", err)
	}
}

func TestNormalizer_RejectsInvalidWallet(t *testing.T) {
	n := usecase.NewNormalizer(pricedOracle(), 2)
	_, err := n.Normalize(context.Background(), "not-an-address", nil, &domain.AuditTrail{})
	if !errors.Is(err, domain.ErrInvalidWalletAddress) {
		t.Fatalf("err = %v, want ErrInvalidWalletAddress", err)
	}
}
