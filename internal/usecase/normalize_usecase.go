package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainbooks/chainbooks/internal/domain"
)

// AssetEth is the gas asset on EVM chains.
const AssetEth = "ETH"

// Normalizer maps heterogeneous raw feed records into canonical,
// deduplicated TransactionEvents ordered by source ordinal, annotated
// with USD unit prices from the price oracle.
type Normalizer struct {
	oracle      PriceOracle
	concurrency int
}

// NewNormalizer creates a new Normalizer. concurrency bounds parallel
// price lookups; values below 1 are treated as 1.
func NewNormalizer(oracle PriceOracle, concurrency int) *Normalizer {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Normalizer{
		oracle:      oracle,
		concurrency: concurrency,
	}
}

type priceKey struct {
	asset string
	at    time.Time
}

type priceResult struct {
	price  decimal.Decimal
	priced bool
}

// Normalize validates, deduplicates, orders and prices the raw
// records. Two records sharing an event ID with differing amounts is
// data corruption and aborts the run with ErrDuplicateEvent.
func (n *Normalizer) Normalize(
	ctx context.Context,
	wallet string,
	records []domain.RawRecord,
	trail *domain.AuditTrail,
) ([]domain.TransactionEvent, error) {
	if err := domain.ValidateWalletAddress(wallet); err != nil {
		return nil, err
	}

	wallet = strings.ToLower(wallet)

	// Deduplicate by event ID. Identical duplicates are skipped with an
	// audit note; conflicting duplicates are fatal.
	seen := make(map[string]domain.RawRecord, len(records))

	var ordered []domain.RawRecord
	for _, rec := range records {
		if err := domain.ValidateRawRecord(rec); err != nil {
			return nil, err
		}

		id := domain.NewEventID(rec.TxHash, rec.LogIndex)

		prev, ok := seen[id]
		if ok {
			if !prev.Amount.Equal(rec.Amount) {
				return nil, fmt.Errorf("%w: event %s", domain.ErrDuplicateEvent, id)
			}

			trail.Add(domain.AuditNote{
				Code:    domain.AuditDuplicateSkipped,
				EventID: id,
				Asset:   rec.Asset,
				Message: fmt.Sprintf("duplicate record for tx %s log %d skipped", rec.TxHash, rec.LogIndex),
				At:      rec.BlockTimestamp,
			})

			continue
		}

		seen[id] = rec
		ordered = append(ordered, rec)
	}

	// Ordinal ties (distinct txs sharing a block with log index 0) are
	// broken by event ID so the output order never depends on feed
	// order.
	sort.SliceStable(ordered, func(i, j int) bool {
		if c := ordered[i].Ordinal().Compare(ordered[j].Ordinal()); c != 0 {
			return c < 0
		}
		return domain.NewEventID(ordered[i].TxHash, ordered[i].LogIndex) <
			domain.NewEventID(ordered[j].TxHash, ordered[j].LogIndex)
	})

	prices := n.fetchPrices(ctx, ordered, trail)

	events := make([]domain.TransactionEvent, 0, len(ordered))
	for _, rec := range ordered {
		ev, err := n.buildEvent(wallet, rec, prices, trail)
		if err != nil {
			return nil, err
		}

		events = append(events, ev)
	}

	return events, nil
}

// fetchPrices resolves every unique (asset, timestamp) pair with
// bounded concurrency. A cache miss blocks only its own lookup; oracle
// failures degrade to unpriced rather than failing the run.
func (n *Normalizer) fetchPrices(
	ctx context.Context,
	records []domain.RawRecord,
	trail *domain.AuditTrail,
) map[priceKey]priceResult {
	unique := make(map[priceKey]struct{})

	var keys []priceKey
	add := func(k priceKey) {
		if _, ok := unique[k]; !ok {
			unique[k] = struct{}{}
			keys = append(keys, k)
		}
	}

	for _, rec := range records {
		add(priceKey{asset: rec.Asset, at: rec.BlockTimestamp})
		if rec.GasFeeEth.IsPositive() {
			add(priceKey{asset: AssetEth, at: rec.BlockTimestamp})
		}
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[priceKey]priceResult, len(keys))
		sem     = make(chan struct{}, n.concurrency)
	)

	for _, key := range keys {
		wg.Add(1)

		go func(k priceKey) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			price, priced, err := n.oracle.GetUnitPrice(ctx, k.asset, k.at)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				trail.Add(domain.AuditNote{
					Code:    domain.AuditUnpriced,
					Asset:   k.asset,
					Message: fmt.Sprintf("price lookup failed at %s: %v", k.at.Format(time.RFC3339), err),
					At:      k.at,
				})

				results[k] = priceResult{}
				return
			}

			results[k] = priceResult{price: price, priced: priced}
		}(key)
	}

	wg.Wait()

	return results
}

func (n *Normalizer) buildEvent(
	wallet string,
	rec domain.RawRecord,
	prices map[priceKey]priceResult,
	trail *domain.AuditTrail,
) (domain.TransactionEvent, error) {
	id := domain.NewEventID(rec.TxHash, rec.LogIndex)

	from := strings.ToLower(rec.FromAddress)
	to := strings.ToLower(rec.ToAddress)

	var (
		amount       decimal.Decimal
		counterparty string
	)

	switch {
	case to == wallet && from != wallet:
		amount = rec.Amount.Abs()
		counterparty = from
	case from == wallet && to != wallet:
		amount = rec.Amount.Abs().Neg()
		counterparty = to
	case from == wallet && to == wallet:
		// Self-transfer: no balance effect, gas still spent.
		amount = decimal.Zero
		counterparty = wallet
	default:
		return domain.TransactionEvent{}, fmt.Errorf(
			"%w: record %s touches neither side of wallet %s", domain.ErrInvalidRecord, id, wallet)
	}

	// Failed transactions have no value effect but still burn gas.
	if !rec.Success {
		amount = decimal.Zero
	}

	pr := prices[priceKey{asset: rec.Asset, at: rec.BlockTimestamp}]
	if !pr.priced && !amount.IsZero() {
		trail.Add(domain.AuditNote{
			Code:    domain.AuditUnpriced,
			EventID: id,
			Asset:   rec.Asset,
			Message: fmt.Sprintf("no USD price for %s at %s", rec.Asset, rec.BlockTimestamp.Format(time.RFC3339)),
			At:      rec.BlockTimestamp,
		})
	}

	ev := domain.TransactionEvent{
		ID:           id,
		Timestamp:    rec.BlockTimestamp,
		Asset:        rec.Asset,
		Amount:       amount,
		UnitPriceUsd: pr.price,
		Priced:       pr.priced,
		Counterparty: counterparty,
		Ordinal:      rec.Ordinal(),
	}

	if rec.GasFeeEth.IsPositive() {
		gas := prices[priceKey{asset: AssetEth, at: rec.BlockTimestamp}]
		ev.GasFeeEth = rec.GasFeeEth
		ev.GasFeeUsd = rec.GasFeeEth.Mul(gas.price)
		ev.GasPriced = gas.priced

		if !gas.priced {
			trail.Add(domain.AuditNote{
				Code:    domain.AuditUnpriced,
				EventID: id,
				Asset:   AssetEth,
				Message: fmt.Sprintf("no USD price for gas at %s", rec.BlockTimestamp.Format(time.RFC3339)),
				At:      rec.BlockTimestamp,
			})
		}
	}

	return ev, nil
}
