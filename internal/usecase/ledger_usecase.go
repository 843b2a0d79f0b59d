package usecase

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/chainbooks/chainbooks/internal/domain"
)

// LedgerEngine posts balanced debit/credit entries per classified
// event against per-asset, per-kind accounts. It requires a stream in
// non-decreasing ordinal order and is fully deterministic: replaying
// the same events yields byte-identical entries.
type LedgerEngine struct {
	accounts map[domain.AccountKey]*domain.Account
	entries  []domain.Entry
	last     domain.Ordinal
	started  bool
}

// NewLedgerEngine creates an empty ledger.
func NewLedgerEngine() *LedgerEngine {
	return &LedgerEngine{
		accounts: make(map[domain.AccountKey]*domain.Account),
	}
}

// NewLedgerEngineFrom seeds a ledger with checkpointed account
// balances so a run can resume without replaying history.
func NewLedgerEngineFrom(balances []domain.Account, last domain.Ordinal) *LedgerEngine {
	eng := NewLedgerEngine()
	for _, acc := range balances {
		copied := acc
		eng.accounts[acc.Key] = &copied
	}

	eng.last = last
	eng.started = true

	return eng
}

// Post converts one classified event into a balanced posting and
// applies it. Transfer and Ignored events post nothing. Violating the
// double-entry invariant is fatal and never silently corrected.
func (l *LedgerEngine) Post(ev domain.ClassifiedEvent) (domain.Posting, error) {
	if l.started && ev.Ordinal.Before(l.last) {
		return nil, fmt.Errorf("%w: event %s at %s after %s",
			domain.ErrUnsortedInput, ev.ID, ev.Ordinal, l.last)
	}

	posting, err := l.buildPosting(ev)
	if err != nil {
		return nil, err
	}

	if !posting.Balanced() {
		return nil, fmt.Errorf("%w: event %s", domain.ErrUnbalancedPosting, ev.ID)
	}

	l.apply(posting)
	l.last = ev.Ordinal
	l.started = true

	return posting, nil
}

// PostRealizedGain posts the gain or loss computed by the lot tracker
// for a matched disposal, as a separate balanced Income/Expense
// posting.
func (l *LedgerEngine) PostRealizedGain(d *domain.Disposal) (domain.Posting, error) {
	if d == nil || d.RealizedGainUsd.IsZero() {
		return nil, nil
	}

	gain := d.RealizedGainUsd

	var posting domain.Posting
	if gain.IsPositive() {
		posting = domain.Posting{
			l.entry(d.EventID+"/gain", 0, d, domain.AccountKey{Asset: d.Asset, Kind: domain.KindEquity}, domain.Debit, gain),
			l.entry(d.EventID+"/gain", 1, d, domain.AccountKey{Asset: d.Asset, Kind: domain.KindIncome}, domain.Credit, gain),
		}
	} else {
		posting = domain.Posting{
			l.entry(d.EventID+"/gain", 0, d, domain.AccountKey{Asset: d.Asset, Kind: domain.KindExpense}, domain.Debit, gain.Neg()),
			l.entry(d.EventID+"/gain", 1, d, domain.AccountKey{Asset: d.Asset, Kind: domain.KindEquity}, domain.Credit, gain.Neg()),
		}
	}

	if !posting.Balanced() {
		return nil, fmt.Errorf("%w: realized gain for event %s", domain.ErrUnbalancedPosting, d.EventID)
	}

	l.apply(posting)

	return posting, nil
}

func (l *LedgerEngine) entry(
	id string,
	seq int,
	d *domain.Disposal,
	account domain.AccountKey,
	side domain.Side,
	amount decimal.Decimal,
) domain.Entry {
	return domain.Entry{
		ID:          fmt.Sprintf("%s/%d", id, seq),
		EventID:     d.EventID,
		Account:     account,
		Side:        side,
		Category:    domain.CategoryDisposal,
		AmountUsd:   amount,
		Ordinal:     d.Ordinal,
		At:          d.DisposedAt,
		Provisional: d.Provisional,
		Memo:        "realized-gain",
	}
}

func (l *LedgerEngine) buildPosting(ev domain.ClassifiedEvent) (domain.Posting, error) {
	asset := domain.AccountKey{Asset: ev.Asset, Kind: domain.KindAsset}
	equity := domain.AccountKey{Asset: ev.Asset, Kind: domain.KindEquity}

	leg := func(seq int, account domain.AccountKey, side domain.Side, amount, units decimal.Decimal, provisional bool, memo string) domain.Entry {
		return domain.Entry{
			ID:          fmt.Sprintf("%s/%d", ev.ID, seq),
			EventID:     ev.ID,
			Account:     account,
			Side:        side,
			Category:    ev.Category,
			AmountUsd:   amount,
			Units:       units,
			Ordinal:     ev.Ordinal,
			At:          ev.Timestamp,
			Provisional: provisional,
			Memo:        memo,
		}
	}

	switch ev.Category {
	case domain.CategoryIgnored, domain.CategoryTransfer:
		// Transfers between own accounts are non-cash; nothing posts.
		return domain.Posting{}, nil

	case domain.CategoryAcquisition:
		value := ev.ValueUsd()
		return domain.Posting{
			leg(0, asset, domain.Debit, value, ev.Amount, !ev.Priced, "capital-in"),
			leg(1, equity, domain.Credit, value, decimal.Zero, !ev.Priced, "capital-in"),
		}, nil

	case domain.CategoryIncome:
		value := ev.ValueUsd()
		memo := ev.Protocol
		if memo == "" {
			memo = "income"
		}

		income := domain.AccountKey{Asset: ev.Asset, Kind: domain.KindIncome}

		return domain.Posting{
			leg(0, asset, domain.Debit, value, ev.Amount, !ev.Priced, memo),
			leg(1, income, domain.Credit, value, decimal.Zero, !ev.Priced, memo),
		}, nil

	case domain.CategoryDisposal:
		qty := ev.Amount.Abs()
		carrying := l.carryingValue(asset, qty)

		return domain.Posting{
			leg(0, asset, domain.Credit, carrying, qty, !ev.Priced, "carrying-value"),
			leg(1, equity, domain.Debit, carrying, decimal.Zero, !ev.Priced, "capital-out"),
		}, nil

	case domain.CategoryFee:
		expense := domain.AccountKey{Asset: ev.Asset, Kind: domain.KindExpense}
		value := ev.GasFeeUsd
		if !ev.GasPriced {
			value = decimal.Zero
		}

		// Gas consumption is tracked on the USD side only; units stay
		// with the lot tracker's inventory so the two reconcile.
		return domain.Posting{
			leg(0, expense, domain.Debit, value, decimal.Zero, !ev.GasPriced, "gas"),
			leg(1, asset, domain.Credit, value, decimal.Zero, !ev.GasPriced, "gas"),
		}, nil
	}

	return nil, fmt.Errorf("%w: %s on event %s", domain.ErrUnknownCategory, ev.Category, ev.ID)
}

// carryingValue is the balance-weighted ledger value of qty units of
// the asset account. A full disposal carries exactly the remaining
// balance so no dust is left behind by division.
func (l *LedgerEngine) carryingValue(key domain.AccountKey, qty decimal.Decimal) decimal.Decimal {
	acc, ok := l.accounts[key]
	if !ok || acc.Units.IsZero() {
		return decimal.Zero
	}

	if qty.Equal(acc.Units) {
		return acc.Balance
	}

	return qty.Mul(acc.Balance).Div(acc.Units)
}

func (l *LedgerEngine) apply(posting domain.Posting) {
	for _, e := range posting {
		acc := l.account(e.Account)

		increase := e.Side == domain.Debit
		if e.Account.Kind == domain.KindIncome || e.Account.Kind == domain.KindEquity {
			increase = e.Side == domain.Credit
		}

		if increase {
			acc.Balance = acc.Balance.Add(e.AmountUsd)
			acc.Units = acc.Units.Add(e.Units)
		} else {
			acc.Balance = acc.Balance.Sub(e.AmountUsd)
			acc.Units = acc.Units.Sub(e.Units)
		}

		l.entries = append(l.entries, e)
	}
}

func (l *LedgerEngine) account(key domain.AccountKey) *domain.Account {
	acc, ok := l.accounts[key]
	if !ok {
		acc = &domain.Account{
			Key:     key,
			Balance: decimal.Zero,
			Units:   decimal.Zero,
		}
		l.accounts[key] = acc
	}

	return acc
}

// Accounts returns all accounts sorted by key.
func (l *LedgerEngine) Accounts() []domain.Account {
	out := make([]domain.Account, 0, len(l.accounts))
	for _, acc := range l.accounts {
		out = append(out, *acc)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Asset != out[j].Key.Asset {
			return out[i].Key.Asset < out[j].Key.Asset
		}
		return out[i].Key.Kind < out[j].Key.Kind
	})

	return out
}

// Entries returns all posted entries in posting order.
func (l *LedgerEngine) Entries() []domain.Entry {
	out := make([]domain.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// UnitsOf returns the asset-account unit balance for one asset.
func (l *LedgerEngine) UnitsOf(asset string) decimal.Decimal {
	acc, ok := l.accounts[domain.AccountKey{Asset: asset, Kind: domain.KindAsset}]
	if !ok {
		return decimal.Zero
	}
	return acc.Units
}
