package usecase_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainbooks/chainbooks/internal/domain"
	"github.com/chainbooks/chainbooks/internal/usecase"
)

const (
	lidoAddr    = "0xae7ab96520de3a18e5e111b5eaab095312d7fe84"
	uniswapV2   = "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"
	externalEOA = "0x2222222222222222222222222222222222222222"
)

func event(amount, price string, priced bool, counterparty string) domain.TransactionEvent {
	return domain.TransactionEvent{
		ID:           "ev1",
		Timestamp:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Asset:        "ETH",
		Amount:       dec(amount),
		UnitPriceUsd: dec(price),
		Priced:       priced,
		Counterparty: counterparty,
		Ordinal:      domain.Ordinal{Block: 1},
	}
}

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name         string
		event        domain.TransactionEvent
		wantCategory domain.Category
		wantProtocol string
	}{
		{
			name:         "zero amount is ignored",
			event:        event("0", "2000", true, externalEOA),
			wantCategory: domain.CategoryIgnored,
		},
		{
			name:         "mint from zero address is income",
			event:        event("10", "5", true, domain.ZeroAddress),
			wantCategory: domain.CategoryIncome,
			wantProtocol: "mint",
		},
		{
			name:         "burn to zero address is disposal",
			event:        event("-10", "5", true, domain.ZeroAddress),
			wantCategory: domain.CategoryDisposal,
			wantProtocol: "burn",
		},
		{
			name:         "lido deposit is an internal transfer",
			event:        event("-1", "2000", true, lidoAddr),
			wantCategory: domain.CategoryTransfer,
			wantProtocol: "stake-deposit",
		},
		{
			name:         "lido reward is income",
			event:        event("0.05", "2000", true, lidoAddr),
			wantCategory: domain.CategoryIncome,
			wantProtocol: "stake-reward",
		},
		{
			name:         "uniswap outbound leg is a disposal",
			event:        event("-1", "2000", true, uniswapV2),
			wantCategory: domain.CategoryDisposal,
			wantProtocol: "swap",
		},
		{
			name:         "uniswap inbound leg is an acquisition",
			event:        event("2000", "1", true, uniswapV2),
			wantCategory: domain.CategoryAcquisition,
			wantProtocol: "swap",
		},
		{
			name:         "registry match is case-insensitive",
			event:        event("-1", "2000", true, "0xAE7aB96520DE3A18E5e111B5EaAb095312D7fE84"),
			wantCategory: domain.CategoryTransfer,
			wantProtocol: "stake-deposit",
		},
		{
			name:         "unmatched outbound is a disposal",
			event:        event("-1", "2000", true, externalEOA),
			wantCategory: domain.CategoryDisposal,
		},
		{
			name:         "unmatched inbound is an acquisition",
			event:        event("1", "2000", true, externalEOA),
			wantCategory: domain.CategoryAcquisition,
		},
		{
			name:         "unpriced inbound stays an acquisition",
			event:        event("1", "0", false, externalEOA),
			wantCategory: domain.CategoryAcquisition,
		},
		{
			name:         "priced at exactly zero is airdrop income",
			event:        event("100", "0", true, externalEOA),
			wantCategory: domain.CategoryIncome,
			wantProtocol: "airdrop",
		},
	}

	classifier := usecase.NewClassifier(usecase.DefaultProtocolRules())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := classifier.Classify(tt.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(out) != 1 {
				t.Fatalf("classified events = %d, want 1", len(out))
			}
			if out[0].Category != tt.wantCategory {
				t.Errorf("category = %s, want %s", out[0].Category, tt.wantCategory)
			}
			if out[0].Protocol != tt.wantProtocol {
				t.Errorf("protocol = %q, want %q", out[0].Protocol, tt.wantProtocol)
			}
		})
	}
}

func TestClassifier_Unclassifiable(t *testing.T) {
	// Inbound, unpriced, no counterparty: no rule can place it.
	ev := event("1", "0", false, "")

	classifier := usecase.NewClassifier(usecase.DefaultProtocolRules())
	_, err := classifier.Classify(ev)
	if !errors.Is(err, domain.ErrUnclassifiableEvent) {
		t.Fatalf("err = %v, want ErrUnclassifiableEvent", err)
	}
}

func TestClassifier_SplitsGasFee(t *testing.T) {
	ev := event("-1", "2000", true, externalEOA)
	ev.Asset = "USDC"
	ev.GasFeeEth = dec("0.002")
	ev.GasFeeUsd = dec("4")
	ev.GasPriced = true

	classifier := usecase.NewClassifier(usecase.DefaultProtocolRules())
	out, err := classifier.Classify(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out) != 2 {
		t.Fatalf("classified events = %d, want primary + fee", len(out))
	}

	fee := out[1]
	if fee.Category != domain.CategoryFee {
		t.Errorf("category = %s, want fee", fee.Category)
	}
	if fee.Asset != "ETH" {
		t.Errorf("fee asset = %s, want ETH", fee.Asset)
	}
	if fee.ID != ev.ID+"/fee" {
		t.Errorf("fee id = %s, want %s/fee", fee.ID, ev.ID)
	}
	if fee.SplitFrom != ev.ID {
		t.Errorf("split from = %s, want %s", fee.SplitFrom, ev.ID)
	}
	if fee.Ordinal != ev.Ordinal {
		t.Error("fee event must share the parent ordinal")
	}
	if !fee.GasFeeUsd.Equal(dec("4")) {
		t.Errorf("fee usd = %s, want 4", fee.GasFeeUsd)
	}
	if !fee.Amount.Equal(decimal.Zero) {
		t.Errorf("fee amount = %s, want 0", fee.Amount)
	}
}

func TestClassifier_CustomRegistryTakesPrecedence(t *testing.T) {
	custom := append([]usecase.ProtocolRule{
		{Counterparty: externalEOA, Direction: usecase.DirectionInbound, Category: domain.CategoryIncome, Protocol: "payroll"},
	}, usecase.DefaultProtocolRules()...)

	classifier := usecase.NewClassifier(custom)
	out, err := classifier.Classify(event("1", "2000", true, externalEOA))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out[0].Category != domain.CategoryIncome || out[0].Protocol != "payroll" {
		t.Errorf("got %s/%s, want income/payroll", out[0].Category, out[0].Protocol)
	}
}
