package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind is the double-entry account class.
type AccountKind string

const (
	KindAsset   AccountKind = "asset"
	KindIncome  AccountKind = "income"
	KindExpense AccountKind = "expense"
	KindEquity  AccountKind = "equity"
)

// AccountKey identifies a ledger account by asset and kind.
type AccountKey struct {
	Asset string      `json:"asset"`
	Kind  AccountKind `json:"kind"`
}

func (k AccountKey) String() string {
	return fmt.Sprintf("%s/%s", k.Asset, k.Kind)
}

// Account is a ledger account. Balance is USD; Units carries the
// asset-native quantity and is meaningful only for KindAsset, where it
// backs the balance-weighted carrying value of disposals.
type Account struct {
	Key     AccountKey      `json:"key"`
	Balance decimal.Decimal `json:"balance"`
	Units   decimal.Decimal `json:"units"`
}

// Side marks an entry as a debit or a credit.
type Side string

const (
	Debit  Side = "debit"
	Credit Side = "credit"
)

// Entry is a single ledger posting leg. AmountUsd is always
// non-negative; Side carries the direction. IDs are deterministic
// (event ID plus leg sequence) so replays are byte-identical.
type Entry struct {
	ID          string
	EventID     string
	Account     AccountKey
	Side        Side
	Category    Category
	AmountUsd   decimal.Decimal
	Units       decimal.Decimal
	Ordinal     Ordinal
	At          time.Time
	Provisional bool
	Memo        string
}

// BalanceDelta is the entry's effect on its account balance under
// normal-balance orientation: Asset and Expense accounts grow on
// debit, Income and Equity accounts grow on credit.
func (e Entry) BalanceDelta() decimal.Decimal {
	if e.Account.Kind == KindIncome || e.Account.Kind == KindEquity {
		return e.Signed().Neg()
	}
	return e.Signed()
}

// Signed returns the entry amount signed by side: debits positive,
// credits negative.
func (e Entry) Signed() decimal.Decimal {
	if e.Side == Credit {
		return e.AmountUsd.Neg()
	}
	return e.AmountUsd
}

// Posting is the full set of entries produced by one event.
type Posting []Entry

// Balanced reports whether debits equal credits exactly.
func (p Posting) Balanced() bool {
	diff := decimal.Zero
	for _, e := range p {
		diff = diff.Add(e.Signed())
	}
	return diff.IsZero()
}
