package dto

import (
	"time"

	"github.com/chainbooks/chainbooks/internal/domain"
)

// ErrorResponse is the shared error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ReportResponse is the full accounting run output.
type ReportResponse struct {
	Wallet      string                       `json:"wallet"`
	RunID       string                       `json:"run_id"`
	Method      domain.Method                `json:"method"`
	GeneratedAt time.Time                    `json:"generated_at"`
	Provisional bool                         `json:"provisional"`
	Periods     []domain.Statements          `json:"periods"`
	Positions   []domain.Position            `json:"positions,omitempty"`
	Ledger      []domain.LedgerAccountExport `json:"ledger,omitempty"`
	TaxLines    []domain.TaxLine             `json:"tax_lines,omitempty"`
	AuditNotes  []domain.AuditNote           `json:"audit_notes,omitempty"`
	AssetErrors map[string]string            `json:"asset_errors,omitempty"`
}

// ReportFromDomain converts a domain report to a response.
func ReportFromDomain(r *domain.Report) *ReportResponse {
	return &ReportResponse{
		Wallet:      r.Wallet,
		RunID:       r.RunID,
		Method:      r.Method,
		GeneratedAt: r.GeneratedAt,
		Provisional: r.Provisional,
		Periods:     r.Periods,
		Positions:   r.Positions,
		Ledger:      r.Ledger,
		TaxLines:    r.TaxLines,
		AuditNotes:  r.AuditNotes,
		AssetErrors: r.AssetErrors,
	}
}

// CheckpointResponse summarizes a wallet's resume state.
type CheckpointResponse struct {
	Wallet    string    `json:"wallet"`
	RunID     string    `json:"run_id"`
	LastBlock uint64    `json:"last_block"`
	LastLog   uint32    `json:"last_log"`
	OpenLots  int       `json:"open_lots"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckpointFromDomain converts a domain checkpoint to a response.
func CheckpointFromDomain(cp *domain.Checkpoint) *CheckpointResponse {
	lots := 0
	for _, queue := range cp.OpenLots {
		lots += len(queue)
	}

	return &CheckpointResponse{
		Wallet:    cp.Wallet,
		RunID:     cp.RunID,
		LastBlock: cp.LastOrdinal.Block,
		LastLog:   cp.LastOrdinal.Log,
		OpenLots:  lots,
		UpdatedAt: cp.UpdatedAt,
	}
}
