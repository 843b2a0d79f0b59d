package usecase

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainbooks/chainbooks/internal/domain"
)

// PricePoint keys a period-end price lookup.
type PricePoint struct {
	Asset string
	At    time.Time
}

// GenerateInput is the already-computed state the generator reduces
// over. It never re-derives lot matches or re-posts entries.
type GenerateInput struct {
	Entries     []domain.Entry
	Disposals   []domain.Disposal
	CreatedLots []domain.Lot
	Periods     []domain.Period
	EndPrices   map[PricePoint]decimal.Decimal
}

// StatementGenerator aggregates closed ledger and lot state into
// period-bounded statements and tax-schedule rows. Generation is a
// pure reduction; calling it twice on the same input yields identical
// statements.
type StatementGenerator struct{}

// NewStatementGenerator creates a StatementGenerator.
func NewStatementGenerator() *StatementGenerator {
	return &StatementGenerator{}
}

// Generate produces one Statements value per period.
func (g *StatementGenerator) Generate(in GenerateInput) []domain.Statements {
	consumed := consumptionIndex(in.Disposals)

	out := make([]domain.Statements, 0, len(in.Periods))
	for _, period := range in.Periods {
		st := domain.Statements{Period: period}

		st.BalanceSheet = g.balanceSheet(in, consumed, period.End)
		st.Income = g.incomeStatement(in, period)
		st.CashFlow = g.cashFlow(in, period)
		st.Tax = g.taxSchedule(in.Disposals, period)
		st.Balances = g.accountBalances(in.Entries, period)

		st.Provisional = st.BalanceSheet.Provisional ||
			st.Income.Provisional || st.CashFlow.Provisional

		out = append(out, st)
	}

	return out
}

type lotUse struct {
	at  time.Time
	qty decimal.Decimal
}

func consumptionIndex(disposals []domain.Disposal) map[string][]lotUse {
	idx := make(map[string][]lotUse)
	for _, d := range disposals {
		for _, m := range d.Matches {
			idx[m.LotID] = append(idx[m.LotID], lotUse{at: d.DisposedAt, qty: m.QuantityConsumed})
		}
	}
	return idx
}

// openQuantityAt reconstructs a lot's remaining quantity just before
// the cutoff from its original quantity and the consumption index.
func openQuantityAt(lot domain.Lot, consumed map[string][]lotUse, cutoff time.Time) decimal.Decimal {
	if !lot.AcquiredAt.Before(cutoff) {
		return decimal.Zero
	}

	qty := lot.Quantity
	for _, use := range consumed[lot.ID] {
		if use.at.Before(cutoff) {
			qty = qty.Sub(use.qty)
		}
	}

	return qty
}

func (g *StatementGenerator) balanceSheet(in GenerateInput, consumed map[string][]lotUse, asOf time.Time) domain.BalanceSheet {
	type position struct {
		qty         decimal.Decimal
		cost        decimal.Decimal
		provisional bool
	}

	byAsset := make(map[string]*position)
	for _, lot := range in.CreatedLots {
		qty := openQuantityAt(lot, consumed, asOf)
		if qty.IsZero() {
			continue
		}

		pos, ok := byAsset[lot.Asset]
		if !ok {
			pos = &position{qty: decimal.Zero, cost: decimal.Zero}
			byAsset[lot.Asset] = pos
		}

		pos.qty = pos.qty.Add(qty)
		pos.cost = pos.cost.Add(qty.Mul(lot.UnitCostUsd))
		if !lot.Priced {
			pos.provisional = true
		}
	}

	assets := make([]string, 0, len(byAsset))
	for asset := range byAsset {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	bs := domain.BalanceSheet{
		AsOf:           asOf,
		TotalAssetsUsd: decimal.Zero,
	}

	for _, asset := range assets {
		pos := byAsset[asset]

		line := domain.BalanceSheetLine{
			Asset:        asset,
			Quantity:     pos.qty,
			CostBasisUsd: pos.cost,
			Provisional:  pos.provisional,
		}

		price, priced := in.EndPrices[PricePoint{Asset: asset, At: asOf}]
		if priced {
			line.PriceUsd = price
			line.MarketValueUsd = pos.qty.Mul(price)
			line.UnrealizedGainUsd = line.MarketValueUsd.Sub(pos.cost)
		} else {
			line.Provisional = true
		}

		if line.Provisional {
			bs.Provisional = true
		}

		bs.TotalAssetsUsd = bs.TotalAssetsUsd.Add(line.MarketValueUsd)
		bs.Lines = append(bs.Lines, line)
	}

	bs.EquityUsd = bs.TotalAssetsUsd

	return bs
}

func (g *StatementGenerator) incomeStatement(in GenerateInput, period domain.Period) domain.IncomeStatement {
	is := domain.IncomeStatement{
		IncomeUsd:        decimal.Zero,
		RealizedGainUsd:  decimal.Zero,
		FeeExpenseUsd:    decimal.Zero,
		IncomeByProtocol: make(map[string]decimal.Decimal),
	}

	for _, e := range in.Entries {
		if !period.Contains(e.At) {
			continue
		}

		switch {
		case e.Account.Kind == domain.KindIncome && e.Side == domain.Credit && e.Category == domain.CategoryIncome:
			is.IncomeUsd = is.IncomeUsd.Add(e.AmountUsd)
			is.IncomeByProtocol[e.Memo] = is.IncomeByProtocol[e.Memo].Add(e.AmountUsd)
		case e.Account.Kind == domain.KindExpense && e.Side == domain.Debit && e.Category == domain.CategoryFee:
			is.FeeExpenseUsd = is.FeeExpenseUsd.Add(e.AmountUsd)
		default:
			continue
		}

		if e.Provisional {
			is.Provisional = true
		}
	}

	for _, d := range in.Disposals {
		if !period.Contains(d.DisposedAt) {
			continue
		}

		is.RealizedGainUsd = is.RealizedGainUsd.Add(d.RealizedGainUsd)
		if d.Provisional {
			is.Provisional = true
		}
	}

	if len(is.IncomeByProtocol) == 0 {
		is.IncomeByProtocol = nil
	}

	is.NetIncomeUsd = is.IncomeUsd.Add(is.RealizedGainUsd).Sub(is.FeeExpenseUsd)

	return is
}

// cashFlow buckets activity per category: Fee and Income are
// operating, Acquisition and Disposal are investing. Transfers between
// own accounts never appear here.
func (g *StatementGenerator) cashFlow(in GenerateInput, period domain.Period) domain.CashFlowStatement {
	cf := domain.CashFlowStatement{
		OperatingUsd: decimal.Zero,
		InvestingUsd: decimal.Zero,
		FinancingUsd: decimal.Zero,
	}

	for _, e := range in.Entries {
		if !period.Contains(e.At) {
			continue
		}

		switch {
		case e.Account.Kind == domain.KindIncome && e.Side == domain.Credit && e.Category == domain.CategoryIncome:
			cf.OperatingUsd = cf.OperatingUsd.Add(e.AmountUsd)
		case e.Account.Kind == domain.KindExpense && e.Side == domain.Debit && e.Category == domain.CategoryFee:
			cf.OperatingUsd = cf.OperatingUsd.Sub(e.AmountUsd)
		case e.Account.Kind == domain.KindAsset && e.Side == domain.Debit && e.Category == domain.CategoryAcquisition:
			cf.InvestingUsd = cf.InvestingUsd.Sub(e.AmountUsd)
		default:
			continue
		}

		if e.Provisional {
			cf.Provisional = true
		}
	}

	for _, d := range in.Disposals {
		if !period.Contains(d.DisposedAt) {
			continue
		}

		cf.InvestingUsd = cf.InvestingUsd.Add(d.ProceedsUsd)
		if d.Provisional {
			cf.Provisional = true
		}
	}

	cf.NetChangeUsd = cf.OperatingUsd.Add(cf.InvestingUsd).Add(cf.FinancingUsd)

	return cf
}

func (g *StatementGenerator) taxSchedule(disposals []domain.Disposal, period domain.Period) domain.TaxSchedule {
	ts := domain.TaxSchedule{
		ShortTermGainUsd: decimal.Zero,
		LongTermGainUsd:  decimal.Zero,
	}

	for _, d := range disposals {
		if !period.Contains(d.DisposedAt) {
			continue
		}

		for _, m := range d.Matches {
			line := domain.TaxLine{
				Asset:        d.Asset,
				AcquiredDate: m.AcquiredAt,
				DisposedDate: d.DisposedAt,
				Quantity:     m.QuantityConsumed,
				ProceedsUsd:  m.ProceedsUsd,
				CostBasisUsd: m.CostBasisUsd,
				GainUsd:      m.RealizedGainUsd,
				Term:         m.Term,
				Provisional:  m.Provisional,
			}

			ts.Lines = append(ts.Lines, line)

			if m.Term == domain.TermLong {
				ts.LongTermGainUsd = ts.LongTermGainUsd.Add(m.RealizedGainUsd)
			} else {
				ts.ShortTermGainUsd = ts.ShortTermGainUsd.Add(m.RealizedGainUsd)
			}
		}
	}

	return ts
}

// accountBalances derives per-account opening and closing balances
// from the entry log, so closing(N) provably equals opening(N+1).
func (g *StatementGenerator) accountBalances(entries []domain.Entry, period domain.Period) []domain.AccountBalance {
	keys := make(map[domain.AccountKey]struct{})
	for _, e := range entries {
		keys[e.Account] = struct{}{}
	}

	sorted := make([]domain.AccountKey, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Asset != sorted[j].Asset {
			return sorted[i].Asset < sorted[j].Asset
		}
		return sorted[i].Kind < sorted[j].Kind
	})

	out := make([]domain.AccountBalance, 0, len(sorted))
	for _, key := range sorted {
		bal := domain.AccountBalance{
			Account: key,
			Opening: decimal.Zero,
			Closing: decimal.Zero,
		}

		for _, e := range entries {
			if e.Account != key {
				continue
			}

			if e.At.Before(period.Start) {
				bal.Opening = bal.Opening.Add(e.BalanceDelta())
			}

			if e.At.Before(period.End) {
				bal.Closing = bal.Closing.Add(e.BalanceDelta())
			}
		}

		out = append(out, bal)
	}

	return out
}

// TaxLines flattens every disposal-lot match into Form-8949-style
// rows, independent of period bucketing.
func (g *StatementGenerator) TaxLines(disposals []domain.Disposal) []domain.TaxLine {
	all := domain.Period{Start: time.Time{}, End: time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)}
	return g.taxSchedule(disposals, all).Lines
}

// LedgerExport builds the canonical ledger export: entries grouped by
// account in posting order with running balances.
func (g *StatementGenerator) LedgerExport(entries []domain.Entry) []domain.LedgerAccountExport {
	grouped := make(map[domain.AccountKey][]domain.EntryWithBalance)
	running := make(map[domain.AccountKey]decimal.Decimal)

	var order []domain.AccountKey
	for _, e := range entries {
		if _, ok := running[e.Account]; !ok {
			running[e.Account] = decimal.Zero
			order = append(order, e.Account)
		}

		next := running[e.Account].Add(e.BalanceDelta())
		running[e.Account] = next

		grouped[e.Account] = append(grouped[e.Account], domain.EntryWithBalance{
			Entry:          e,
			RunningBalance: next,
		})
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].Asset != order[j].Asset {
			return order[i].Asset < order[j].Asset
		}
		return order[i].Kind < order[j].Kind
	})

	out := make([]domain.LedgerAccountExport, 0, len(order))
	for _, key := range order {
		out = append(out, domain.LedgerAccountExport{
			Account: key,
			Closing: running[key],
			Entries: grouped[key],
		})
	}

	return out
}
