package usecase

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/chainbooks/chainbooks/internal/domain"
)

// LotTracker maintains per-asset acquisition-lot queues and matches
// disposals against them under a fixed FIFO or LIFO policy. The policy
// never changes within one computation so results stay reproducible.
type LotTracker struct {
	method       domain.Method
	longTermDays int

	open      map[string][]domain.Lot
	created   []domain.Lot
	disposals []domain.Disposal
}

// NewLotTracker creates a tracker with the given consumption policy.
func NewLotTracker(method domain.Method, longTermDays int) *LotTracker {
	if longTermDays <= 0 {
		longTermDays = 365
	}

	return &LotTracker{
		method:       method,
		longTermDays: longTermDays,
		open:         make(map[string][]domain.Lot),
	}
}

// NewLotTrackerFrom seeds a tracker with checkpointed open lots.
func NewLotTrackerFrom(method domain.Method, longTermDays int, open map[string][]domain.Lot) *LotTracker {
	t := NewLotTracker(method, longTermDays)
	for asset, lots := range open {
		queue := make([]domain.Lot, len(lots))
		copy(queue, lots)

		sort.Slice(queue, func(i, j int) bool {
			return queue[i].AcquiredOrdinal.Before(queue[j].AcquiredOrdinal)
		})

		t.open[asset] = queue
		t.created = append(t.created, queue...)
	}

	return t
}

// Track applies one classified event to the lot state. Acquisition and
// Income events open a lot; Disposal events consume lots and return
// the match record. Other categories leave lot state untouched.
func (t *LotTracker) Track(ev domain.ClassifiedEvent) (*domain.Disposal, error) {
	switch ev.Category {
	case domain.CategoryAcquisition, domain.CategoryIncome:
		t.push(ev)
		return nil, nil
	case domain.CategoryDisposal:
		return t.consume(ev)
	default:
		return nil, nil
	}
}

// push opens a lot. The receipt price becomes the lot's cost basis;
// unpriced lots open at zero basis and stay flagged.
func (t *LotTracker) push(ev domain.ClassifiedEvent) {
	lot := domain.Lot{
		ID:              ev.ID,
		Asset:           ev.Asset,
		AcquiredOrdinal: ev.Ordinal,
		AcquiredAt:      ev.Timestamp,
		Quantity:        ev.Amount,
		UnitCostUsd:     ev.UnitPriceUsd,
		SourceEventID:   ev.ID,
		Priced:          ev.Priced,
	}

	if !ev.Priced {
		lot.UnitCostUsd = decimal.Zero
	}

	t.open[ev.Asset] = append(t.open[ev.Asset], lot)
	t.created = append(t.created, lot)
}

// consume matches a disposal against open lots. The queue is kept in
// acquisition order; FIFO consumes from the head, LIFO from the tail.
// Insufficient open quantity signals a missing acquisition upstream
// and fails with ErrNegativeLotBasis rather than assuming zero cost.
func (t *LotTracker) consume(ev domain.ClassifiedEvent) (*domain.Disposal, error) {
	qty := ev.Amount.Abs()
	queue := t.open[ev.Asset]

	if t.TotalOpenQuantity(ev.Asset).LessThan(qty) {
		return nil, fmt.Errorf("%w: asset %s needs %s, open %s",
			domain.ErrNegativeLotBasis, ev.Asset, qty, t.TotalOpenQuantity(ev.Asset))
	}

	price := ev.UnitPriceUsd
	if !ev.Priced {
		price = decimal.Zero
	}

	d := domain.Disposal{
		EventID:     ev.ID,
		Asset:       ev.Asset,
		DisposedAt:  ev.Timestamp,
		Ordinal:     ev.Ordinal,
		Quantity:    qty,
		ProceedsUsd: qty.Mul(price),
		Provisional: !ev.Priced,
	}

	remaining := qty
	for remaining.IsPositive() {
		idx := 0
		if t.method == domain.LIFO {
			idx = len(queue) - 1
		}

		lot := &queue[idx]

		consumed := remaining
		if lot.Quantity.LessThan(remaining) {
			consumed = lot.Quantity
		}

		basis := consumed.Mul(lot.UnitCostUsd)
		proceeds := consumed.Mul(price)
		days := domain.HoldingDays(lot.AcquiredAt, ev.Timestamp)

		match := domain.LotMatch{
			LotID:             lot.ID,
			SourceEventID:     lot.SourceEventID,
			QuantityConsumed:  consumed,
			CostBasisUsd:      basis,
			ProceedsUsd:       proceeds,
			RealizedGainUsd:   proceeds.Sub(basis),
			AcquiredAt:        lot.AcquiredAt,
			HoldingPeriodDays: days,
			Term:              domain.TermOf(days, t.longTermDays),
			Provisional:       !ev.Priced || !lot.Priced,
		}

		d.Matches = append(d.Matches, match)
		d.CostBasisUsd = d.CostBasisUsd.Add(basis)

		if match.Provisional {
			d.Provisional = true
		}

		lot.Quantity = lot.Quantity.Sub(consumed)
		remaining = remaining.Sub(consumed)

		// Lots are destroyed when their quantity reaches exactly zero.
		if lot.Quantity.IsZero() {
			queue = append(queue[:idx], queue[idx+1:]...)
		}
	}

	d.RealizedGainUsd = d.ProceedsUsd.Sub(d.CostBasisUsd)

	t.open[ev.Asset] = queue
	t.disposals = append(t.disposals, d)

	return &d, nil
}

// TotalOpenQuantity sums remaining quantity across open lots of one
// asset.
func (t *LotTracker) TotalOpenQuantity(asset string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range t.open[asset] {
		total = total.Add(lot.Quantity)
	}
	return total
}

// OpenLots returns a copy of the open lots per asset.
func (t *LotTracker) OpenLots() map[string][]domain.Lot {
	out := make(map[string][]domain.Lot, len(t.open))
	for asset, lots := range t.open {
		if len(lots) == 0 {
			continue
		}

		copied := make([]domain.Lot, len(lots))
		copy(copied, lots)
		out[asset] = copied
	}

	return out
}

// CreatedLots returns every lot ever opened, at its original quantity.
func (t *LotTracker) CreatedLots() []domain.Lot {
	out := make([]domain.Lot, len(t.created))
	copy(out, t.created)
	return out
}

// Disposals returns all completed disposals in processing order.
func (t *LotTracker) Disposals() []domain.Disposal {
	out := make([]domain.Disposal, len(t.disposals))
	copy(out, t.disposals)
	return out
}

// Positions marks open lots to market with period-end prices. Lots
// without an available price are reported provisional, never at a
// silent zero gain.
func (t *LotTracker) Positions(endPrices map[string]decimal.Decimal) []domain.Position {
	var assets []string
	for asset := range t.open {
		if len(t.open[asset]) > 0 {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)

	var positions []domain.Position
	for _, asset := range assets {
		price, priced := endPrices[asset]

		for _, lot := range t.open[asset] {
			pos := domain.Position{
				Lot:          lot,
				CostBasisUsd: lot.CostBasis(),
				Provisional:  !priced || !lot.Priced,
			}

			if priced {
				pos.PeriodEndPriceUsd = price
				pos.MarketValueUsd = lot.Quantity.Mul(price)
				pos.UnrealizedGainUsd = pos.MarketValueUsd.Sub(pos.CostBasisUsd)
			}

			positions = append(positions, pos)
		}
	}

	return positions
}
