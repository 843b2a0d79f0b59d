package usecase

import (
	"fmt"
	"strings"

	"github.com/chainbooks/chainbooks/internal/domain"
)

// Direction restricts a protocol rule to one transfer direction.
type Direction string

const (
	DirectionAny      Direction = "any"
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ProtocolRule maps a known counterparty address to a category and
// protocol tag. Rules are evaluated in slice order; the first match
// wins.
type ProtocolRule struct {
	Counterparty string
	Direction    Direction
	Category     domain.Category
	Protocol     string
}

func (r ProtocolRule) matches(ev domain.TransactionEvent) bool {
	if !strings.EqualFold(r.Counterparty, ev.Counterparty) {
		return false
	}

	switch r.Direction {
	case DirectionInbound:
		return ev.Amount.IsPositive()
	case DirectionOutbound:
		return ev.Amount.IsNegative()
	default:
		return true
	}
}

// DefaultProtocolRules is the built-in registry of known protocol
// counterparties.
func DefaultProtocolRules() []ProtocolRule {
	return []ProtocolRule{
		// Mint/airdrop from the zero address is income at receipt price.
		{Counterparty: domain.ZeroAddress, Direction: DirectionInbound, Category: domain.CategoryIncome, Protocol: "mint"},
		// Burn to the zero address is a disposal.
		{Counterparty: domain.ZeroAddress, Direction: DirectionOutbound, Category: domain.CategoryDisposal, Protocol: "burn"},
		// Lido staking: deposits are internal transfers, not disposals.
		{Counterparty: "0xae7ab96520de3a18e5e111b5eaab095312d7fe84", Direction: DirectionOutbound, Category: domain.CategoryTransfer, Protocol: "stake-deposit"},
		{Counterparty: "0xae7ab96520de3a18e5e111b5eaab095312d7fe84", Direction: DirectionInbound, Category: domain.CategoryIncome, Protocol: "stake-reward"},
		// Uniswap V2/V3 routers: swap legs.
		{Counterparty: "0x7a250d5630b4cf539739df2c5dacb4c659f2488d", Direction: DirectionOutbound, Category: domain.CategoryDisposal, Protocol: "swap"},
		{Counterparty: "0x7a250d5630b4cf539739df2c5dacb4c659f2488d", Direction: DirectionInbound, Category: domain.CategoryAcquisition, Protocol: "swap"},
		{Counterparty: "0xe592427a0aece92de3edee1f18e0157c05861564", Direction: DirectionOutbound, Category: domain.CategoryDisposal, Protocol: "swap"},
		{Counterparty: "0xe592427a0aece92de3edee1f18e0157c05861564", Direction: DirectionInbound, Category: domain.CategoryAcquisition, Protocol: "swap"},
	}
}

// Classifier assigns each event exactly one category using a fixed,
// totally ordered rule set. Classification is a pure function of the
// event and the registry.
type Classifier struct {
	registry []ProtocolRule
}

// NewClassifier creates a Classifier with the given protocol registry.
func NewClassifier(registry []ProtocolRule) *Classifier {
	return &Classifier{registry: registry}
}

// Classify classifies one event. The result contains the primary
// classified event and, when the source transaction burned gas, a
// separate Fee event so fee deductibility is tracked independently of
// the disposal itself.
//
// Rule order is fixed: (1) zero-effect, (2) protocol registry,
// (3) negative amount, (4) positive amount from a counterparty,
// (5) zero-cost income heuristic. An event matching no rule is an
// ErrUnclassifiableEvent.
func (c *Classifier) Classify(ev domain.TransactionEvent) ([]domain.ClassifiedEvent, error) {
	primary, err := c.classifyPrimary(ev)
	if err != nil {
		return nil, err
	}

	out := []domain.ClassifiedEvent{primary}

	if ev.GasFeeEth.IsPositive() {
		out = append(out, splitFeeEvent(ev))
	}

	return out, nil
}

func (c *Classifier) classifyPrimary(ev domain.TransactionEvent) (domain.ClassifiedEvent, error) {
	// Rule 1: failed or zero-effect events post nothing.
	if ev.Amount.IsZero() {
		return domain.ClassifiedEvent{TransactionEvent: ev, Category: domain.CategoryIgnored}, nil
	}

	// Rule 2: known protocol counterparty.
	for _, rule := range c.registry {
		if rule.matches(ev) {
			return domain.ClassifiedEvent{
				TransactionEvent: ev,
				Category:         rule.Category,
				Protocol:         rule.Protocol,
			}, nil
		}
	}

	// Rule 3: outbound with no protocol match is a disposal.
	if ev.Amount.IsNegative() {
		return domain.ClassifiedEvent{TransactionEvent: ev, Category: domain.CategoryDisposal}, nil
	}

	// Rule 4: inbound from an external counterparty is an acquisition.
	// An unpriced acquisition stays an acquisition; the provisional
	// flag propagates instead of reclassifying it.
	zeroCost := ev.Priced && ev.UnitPriceUsd.IsZero()
	if ev.Counterparty != "" && !zeroCost {
		return domain.ClassifiedEvent{TransactionEvent: ev, Category: domain.CategoryAcquisition}, nil
	}

	// Rule 5: inbound at an exactly zero price matches the
	// airdrop/reward pattern and is income with zero basis.
	if zeroCost {
		return domain.ClassifiedEvent{
			TransactionEvent: ev,
			Category:         domain.CategoryIncome,
			Protocol:         "airdrop",
		}, nil
	}

	return domain.ClassifiedEvent{}, fmt.Errorf("%w: event %s", domain.ErrUnclassifiableEvent, ev.ID)
}

// splitFeeEvent derives the Fee event for the gas burned by ev. The
// fee event shares the parent's ordinal so replay ordering is stable.
func splitFeeEvent(ev domain.TransactionEvent) domain.ClassifiedEvent {
	return domain.ClassifiedEvent{
		TransactionEvent: domain.TransactionEvent{
			ID:           ev.ID + "/fee",
			Timestamp:    ev.Timestamp,
			Asset:        AssetEth,
			Counterparty: ev.Counterparty,
			GasFeeEth:    ev.GasFeeEth,
			GasFeeUsd:    ev.GasFeeUsd,
			GasPriced:    ev.GasPriced,
			Priced:       ev.GasPriced,
			Ordinal:      ev.Ordinal,
		},
		Category:  domain.CategoryFee,
		SplitFrom: ev.ID,
	}
}
