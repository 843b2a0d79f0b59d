package oracle_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainbooks/chainbooks/internal/adapter/oracle"
	"github.com/chainbooks/chainbooks/internal/usecase/mocks"
)

func TestPinnedOracle_StablecoinSkipsUpstream(t *testing.T) {
	calls := 0
	upstream := mocks.NewMockOracle()
	upstream.GetUnitPriceFunc = func(ctx context.Context, asset string, at time.Time) (decimal.Decimal, bool, error) {
		calls++
		return decimal.NewFromInt(2000), true, nil
	}

	pinned := oracle.NewPinnedOracle(upstream)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, asset := range []string{"USDC", "usdt", "Dai"} {
		price, priced, err := pinned.GetUnitPrice(context.Background(), asset, at)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", asset, err)
		}
		if !priced || !price.Equal(decimal.NewFromInt(1)) {
			t.Errorf("%s price = %s priced=%v, want 1 priced", asset, price, priced)
		}
	}

	if calls != 0 {
		t.Fatalf("upstream called %d times for stablecoins, want 0", calls)
	}
}

func TestPinnedOracle_DelegatesOtherAssets(t *testing.T) {
	calls := 0
	upstream := mocks.NewMockOracle()
	upstream.GetUnitPriceFunc = func(ctx context.Context, asset string, at time.Time) (decimal.Decimal, bool, error) {
		calls++
		return decimal.NewFromInt(2000), true, nil
	}

	pinned := oracle.NewPinnedOracle(upstream)

	price, priced, err := pinned.GetUnitPrice(context.Background(), "ETH", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !priced || !price.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("price = %s priced=%v, want 2000 priced", price, priced)
	}
	if calls != 1 {
		t.Fatalf("upstream called %d times, want 1", calls)
	}
}
