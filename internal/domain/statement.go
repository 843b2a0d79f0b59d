package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Period is a half-open reporting interval [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Frequency selects reporting period length.
type Frequency string

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

// ParseFrequency parses a reporting frequency name.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(strings.ToLower(s)) {
	case Monthly:
		return Monthly, nil
	case Quarterly:
		return Quarterly, nil
	case Yearly:
		return Yearly, nil
	}
	return "", ErrUnknownFrequency
}

// SplitPeriods cuts [start, end) into consecutive periods of the given
// frequency, aligned to calendar boundaries.
func SplitPeriods(start, end time.Time, freq Frequency) []Period {
	var months int
	switch freq {
	case Quarterly:
		months = 3
	case Yearly:
		months = 12
	default:
		months = 1
	}

	var periods []Period
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	if freq == Quarterly {
		cur = time.Date(start.Year(), ((start.Month()-1)/3)*3+1, 1, 0, 0, 0, 0, time.UTC)
	}
	if freq == Yearly {
		cur = time.Date(start.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}

	for cur.Before(end) {
		next := cur.AddDate(0, months, 0)
		periods = append(periods, Period{Start: cur, End: next})
		cur = next
	}
	return periods
}

// BalanceSheetLine is one asset position at period end.
type BalanceSheetLine struct {
	Asset             string          `json:"asset"`
	Quantity          decimal.Decimal `json:"quantity"`
	CostBasisUsd      decimal.Decimal `json:"cost_basis_usd"`
	PriceUsd          decimal.Decimal `json:"price_usd"`
	MarketValueUsd    decimal.Decimal `json:"market_value_usd"`
	UnrealizedGainUsd decimal.Decimal `json:"unrealized_gain_usd"`
	Provisional       bool            `json:"provisional"`
}

// BalanceSheet values asset holdings at period end.
type BalanceSheet struct {
	AsOf           time.Time          `json:"as_of"`
	Lines          []BalanceSheetLine `json:"lines"`
	TotalAssetsUsd decimal.Decimal    `json:"total_assets_usd"`
	EquityUsd      decimal.Decimal    `json:"equity_usd"`
	Provisional    bool               `json:"provisional"`
}

// IncomeStatement aggregates income, expenses and realized gains
// recognized within the period.
type IncomeStatement struct {
	IncomeUsd        decimal.Decimal            `json:"income_usd"`
	IncomeByProtocol map[string]decimal.Decimal `json:"income_by_protocol,omitempty"`
	RealizedGainUsd  decimal.Decimal            `json:"realized_gain_usd"`
	FeeExpenseUsd    decimal.Decimal            `json:"fee_expense_usd"`
	NetIncomeUsd     decimal.Decimal            `json:"net_income_usd"`
	Provisional      bool                       `json:"provisional"`
}

// CashFlowStatement buckets postings by activity. Transfers between
// own accounts are non-cash and excluded.
type CashFlowStatement struct {
	OperatingUsd decimal.Decimal `json:"operating_usd"`
	InvestingUsd decimal.Decimal `json:"investing_usd"`
	FinancingUsd decimal.Decimal `json:"financing_usd"`
	NetChangeUsd decimal.Decimal `json:"net_change_usd"`
	Provisional  bool            `json:"provisional"`
}

// TaxLine is one Form-8949-equivalent row: a single disposal-lot match.
type TaxLine struct {
	Asset        string          `json:"asset"`
	AcquiredDate time.Time       `json:"acquired_date"`
	DisposedDate time.Time       `json:"disposed_date"`
	Quantity     decimal.Decimal `json:"quantity"`
	ProceedsUsd  decimal.Decimal `json:"proceeds_usd"`
	CostBasisUsd decimal.Decimal `json:"cost_basis_usd"`
	GainUsd      decimal.Decimal `json:"gain_usd"`
	Term         Term            `json:"term"`
	Provisional  bool            `json:"provisional"`
}

// TaxSchedule is the row set plus its Schedule-D-style aggregation by
// term.
type TaxSchedule struct {
	Lines            []TaxLine       `json:"lines"`
	ShortTermGainUsd decimal.Decimal `json:"short_term_gain_usd"`
	LongTermGainUsd  decimal.Decimal `json:"long_term_gain_usd"`
}

// AccountBalance is a per-account figure inside a statement period.
type AccountBalance struct {
	Account AccountKey      `json:"account"`
	Opening decimal.Decimal `json:"opening"`
	Closing decimal.Decimal `json:"closing"`
}

// Statements is the complete output for one closed reporting period.
// Read-only once produced.
type Statements struct {
	Period       Period             `json:"period"`
	BalanceSheet BalanceSheet       `json:"balance_sheet"`
	Income       IncomeStatement    `json:"income_statement"`
	CashFlow     CashFlowStatement  `json:"cash_flow_statement"`
	Tax          TaxSchedule        `json:"tax_schedule"`
	Balances     []AccountBalance   `json:"balances"`
	Provisional  bool               `json:"provisional"`
}
