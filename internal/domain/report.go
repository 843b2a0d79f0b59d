package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryWithBalance pairs a ledger entry with the account's running
// balance after applying it.
type EntryWithBalance struct {
	Entry          Entry           `json:"entry"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// LedgerAccountExport is the canonical export of one account: its
// ordered entries with running balances.
type LedgerAccountExport struct {
	Account AccountKey         `json:"account"`
	Closing decimal.Decimal    `json:"closing"`
	Entries []EntryWithBalance `json:"entries"`
}

// Report is the complete output of one pipeline run.
type Report struct {
	Wallet      string                `json:"wallet"`
	RunID       string                `json:"run_id"`
	Method      Method                `json:"method"`
	GeneratedAt time.Time             `json:"generated_at"`
	Periods     []Statements          `json:"periods"`
	Positions   []Position            `json:"positions"`
	Ledger      []LedgerAccountExport `json:"ledger"`
	TaxLines    []TaxLine             `json:"tax_lines"`
	AuditNotes  []AuditNote           `json:"audit_notes"`
	AssetErrors map[string]string     `json:"asset_errors,omitempty"`
	Provisional bool                  `json:"provisional"`
}
