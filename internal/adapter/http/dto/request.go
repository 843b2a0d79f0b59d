package dto

import (
	"github.com/chainbooks/chainbooks/internal/domain"
)

// RunReportRequest asks for a full accounting run over a wallet's
// activity feed.
type RunReportRequest struct {
	Wallet    string `json:"wallet"`
	Method    string `json:"method,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Resume    bool   `json:"resume,omitempty"`
}

// Validate validates the request.
func (r *RunReportRequest) Validate() error {
	if err := domain.ValidateWalletAddress(r.Wallet); err != nil {
		return err
	}

	if r.Method != "" {
		if _, err := domain.ParseMethod(r.Method); err != nil {
			return err
		}
	}

	if r.Frequency != "" {
		if _, err := domain.ParseFrequency(r.Frequency); err != nil {
			return err
		}
	}

	return nil
}
