package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Method selects the lot-consumption order for cost-basis matching.
type Method string

const (
	FIFO Method = "fifo"
	LIFO Method = "lifo"
)

// ParseMethod parses a cost-basis method name.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(s)) {
	case FIFO:
		return FIFO, nil
	case LIFO:
		return LIFO, nil
	}
	return "", ErrUnknownMethod
}

// Term labels a matched lot as short or long at the 365-day boundary.
type Term string

const (
	TermShort Term = "short"
	TermLong  Term = "long"
)

// Lot is a discrete acquisition of an asset, consumed by later
// disposals. Quantity is the remaining open quantity.
type Lot struct {
	ID              string          `json:"id"`
	Asset           string          `json:"asset"`
	AcquiredOrdinal Ordinal         `json:"acquired_ordinal"`
	AcquiredAt      time.Time       `json:"acquired_at"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitCostUsd     decimal.Decimal `json:"unit_cost_usd"`
	SourceEventID   string          `json:"source_event_id"`
	Priced          bool            `json:"priced"`
}

// CostBasis is the USD cost of the remaining quantity.
func (l Lot) CostBasis() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCostUsd)
}

// LotMatch records one lot's contribution to a disposal.
type LotMatch struct {
	LotID             string
	SourceEventID     string
	QuantityConsumed  decimal.Decimal
	CostBasisUsd      decimal.Decimal
	ProceedsUsd       decimal.Decimal
	RealizedGainUsd   decimal.Decimal
	AcquiredAt        time.Time
	HoldingPeriodDays int
	Term              Term
	Provisional       bool
}

// Disposal is the result of matching a disposal event against open
// lots. A single disposal may span several lots with different ages.
type Disposal struct {
	EventID         string
	Asset           string
	DisposedAt      time.Time
	Ordinal         Ordinal
	Quantity        decimal.Decimal
	ProceedsUsd     decimal.Decimal
	CostBasisUsd    decimal.Decimal
	RealizedGainUsd decimal.Decimal
	Matches         []LotMatch
	Provisional     bool
}

// Position is the mark-to-market view of one still-open lot.
type Position struct {
	Lot               Lot
	CostBasisUsd      decimal.Decimal
	PeriodEndPriceUsd decimal.Decimal
	MarketValueUsd    decimal.Decimal
	UnrealizedGainUsd decimal.Decimal
	Provisional       bool
}

// HoldingDays returns whole elapsed days between acquisition and
// disposal.
func HoldingDays(acquired, disposed time.Time) int {
	return int(disposed.Sub(acquired) / (24 * time.Hour))
}

// TermOf labels a holding period, long strictly beyond longTermDays.
func TermOf(days, longTermDays int) Term {
	if days > longTermDays {
		return TermLong
	}
	return TermShort
}
