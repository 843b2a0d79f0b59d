package usecase_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainbooks/chainbooks/internal/domain"
	"github.com/chainbooks/chainbooks/internal/usecase"
)

func TestLedgerEngine_PostingsBalancePerEvent(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		event domain.ClassifiedEvent
		legs  int
	}{
		{
			name:  "acquisition debits asset and credits equity",
			event: acquisition("a1", 1, t1, "ETH", "1.0", "2000"),
			legs:  2,
		},
		{
			name: "income debits asset and credits income",
			event: domain.ClassifiedEvent{
				TransactionEvent: acquisition("i1", 1, t1, "ETH", "0.1", "2000").TransactionEvent,
				Category:         domain.CategoryIncome,
				Protocol:         "stake-reward",
			},
			legs: 2,
		},
		{
			name: "transfer posts nothing",
			event: domain.ClassifiedEvent{
				TransactionEvent: acquisition("t1", 1, t1, "ETH", "-1.0", "2000").TransactionEvent,
				Category:         domain.CategoryTransfer,
			},
			legs: 0,
		},
		{
			name: "ignored posts nothing",
			event: domain.ClassifiedEvent{
				TransactionEvent: acquisition("g1", 1, t1, "ETH", "0", "2000").TransactionEvent,
				Category:         domain.CategoryIgnored,
			},
			legs: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := usecase.NewLedgerEngine()

			posting, err := engine.Post(tt.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(posting) != tt.legs {
				t.Fatalf("legs = %d, want %d", len(posting), tt.legs)
			}
			if !posting.Balanced() {
				t.Error("posting is not balanced")
			}
		})
	}
}

func TestLedgerEngine_DisposalCarryingValue(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	engine := usecase.NewLedgerEngine()
	for _, ev := range []domain.ClassifiedEvent{
		acquisition("a1", 1, t1, "ETH", "1.0", "2000"),
		acquisition("a2", 2, t1.AddDate(0, 1, 0), "ETH", "1.0", "3000"),
	} {
		if _, err := engine.Post(ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	posting, err := engine.Post(disposal("d1", 3, t1.AddDate(0, 2, 0), "ETH", "-1.5", "4000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 1.5 of 2.0 units at a 5000 balance carries 3750.
	if !posting[0].AmountUsd.Equal(dec("3750")) {
		t.Errorf("carrying value = %s, want 3750", posting[0].AmountUsd)
	}
	if !posting.Balanced() {
		t.Error("disposal posting is not balanced")
	}

	if !engine.UnitsOf("ETH").Equal(dec("0.5")) {
		t.Errorf("remaining units = %s, want 0.5", engine.UnitsOf("ETH"))
	}
}

func TestLedgerEngine_FullDisposalLeavesNoDust(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	engine := usecase.NewLedgerEngine()
	if _, err := engine.Post(acquisition("a1", 1, t1, "ETH", "3", "33.333333")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := engine.Post(disposal("d1", 2, t1.AddDate(0, 0, 1), "ETH", "-3", "50")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	accounts := engine.Accounts()
	for _, acc := range accounts {
		if acc.Key.Kind != domain.KindAsset {
			continue
		}
		if !acc.Balance.IsZero() {
			t.Errorf("asset balance after full disposal = %s, want 0", acc.Balance)
		}
		if !acc.Units.IsZero() {
			t.Errorf("asset units after full disposal = %s, want 0", acc.Units)
		}
	}
}

func TestLedgerEngine_UnsortedInput(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	engine := usecase.NewLedgerEngine()
	if _, err := engine.Post(acquisition("a1", 5, t1, "ETH", "1", "2000")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := engine.Post(acquisition("a2", 4, t1, "ETH", "1", "2000"))
	if !errors.Is(err, domain.ErrUnsortedInput) {
		t.Fatalf("err = %v, want ErrUnsortedInput", err)
	}
}

func TestLedgerEngine_FeeKeepsUnitsWithLots(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	fee := domain.ClassifiedEvent{
		TransactionEvent: domain.TransactionEvent{
			ID:        "f1",
			Timestamp: t1,
			Asset:     "ETH",
			GasFeeEth: dec("0.01"),
			GasFeeUsd: dec("20"),
			GasPriced: true,
			Ordinal:   domain.Ordinal{Block: 1},
		},
		Category: domain.CategoryFee,
	}

	engine := usecase.NewLedgerEngine()
	posting, err := engine.Post(fee)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if posting[0].Account.Kind != domain.KindExpense || posting[0].Side != domain.Debit {
		t.Errorf("first leg = %s %s, want expense debit", posting[0].Account.Kind, posting[0].Side)
	}
	if !posting[0].AmountUsd.Equal(dec("20")) {
		t.Errorf("fee amount = %s, want 20", posting[0].AmountUsd)
	}

	for _, leg := range posting {
		if !leg.Units.IsZero() {
			t.Errorf("fee leg carries units %s, want 0", leg.Units)
		}
	}
}

func TestLedgerEngine_PostRealizedGain(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		gain     string
		debit    domain.AccountKind
		credit   domain.AccountKind
	}{
		{"gain credits income", "2500", domain.KindEquity, domain.KindIncome},
		{"loss debits expense", "-400", domain.KindExpense, domain.KindEquity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := usecase.NewLedgerEngine()

			posting, err := engine.PostRealizedGain(&domain.Disposal{
				EventID:         "d1",
				Asset:           "ETH",
				DisposedAt:      t1,
				Ordinal:         domain.Ordinal{Block: 3},
				RealizedGainUsd: dec(tt.gain),
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !posting.Balanced() {
				t.Error("gain posting is not balanced")
			}
			if posting[0].Account.Kind != tt.debit || posting[0].Side != domain.Debit {
				t.Errorf("debit leg = %s, want %s", posting[0].Account.Kind, tt.debit)
			}
			if posting[1].Account.Kind != tt.credit || posting[1].Side != domain.Credit {
				t.Errorf("credit leg = %s, want %s", posting[1].Account.Kind, tt.credit)
			}
			if posting[0].AmountUsd.IsNegative() {
				t.Error("entry amounts must stay non-negative; side carries direction")
			}
		})
	}
}

func TestLedgerEngine_ZeroGainPostsNothing(t *testing.T) {
	engine := usecase.NewLedgerEngine()

	posting, err := engine.PostRealizedGain(&domain.Disposal{
		EventID:         "d1",
		Asset:           "ETH",
		RealizedGainUsd: decimal.Zero,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if posting != nil {
		t.Errorf("posting = %v, want nil", posting)
	}
}

func TestLedgerEngine_ReplayIsByteIdentical(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	events := []domain.ClassifiedEvent{
		acquisition("a1", 1, t1, "ETH", "2", "1000"),
		disposal("d1", 2, t1.AddDate(0, 0, 5), "ETH", "-1", "1500"),
		acquisition("a2", 3, t1.AddDate(0, 0, 7), "ETH", "1", "1100"),
	}

	run := func() []domain.Entry {
		engine := usecase.NewLedgerEngine()
		for _, ev := range events {
			if _, err := engine.Post(ev); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		return engine.Entries()
	}

	if !reflect.DeepEqual(run(), run()) {
		t.Error("entries differ between identical runs")
	}
}

func TestLedgerEngine_UnknownCategory(t *testing.T) {
	ev := acquisition("a1", 1, time.Now().UTC(), "ETH", "1", "2000")
	ev.Category = domain.Category("bogus")

	engine := usecase.NewLedgerEngine()
	_, err := engine.Post(ev)
	if !errors.Is(err, domain.ErrUnknownCategory) {
		t.Fatalf("err = %v, want ErrUnknownCategory", err)
	}
}
