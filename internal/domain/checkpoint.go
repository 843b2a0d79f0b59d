package domain

import "time"

// Checkpoint is the persisted per-wallet resume state: everything
// needed to continue a run without reprocessing full history.
type Checkpoint struct {
	Wallet      string           `json:"wallet"`
	RunID       string           `json:"run_id"`
	LastOrdinal Ordinal          `json:"last_ordinal"`
	OpenLots    map[string][]Lot `json:"open_lots"`
	Balances    []Account        `json:"balances"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
