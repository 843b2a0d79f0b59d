package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Validation errors
var (
	ErrInvalidWalletAddress = errors.New("invalid wallet address")
	ErrInvalidAsset         = errors.New("invalid asset identifier")
	ErrInvalidTxHash        = errors.New("invalid transaction hash")
	ErrInvalidTimestamp     = errors.New("invalid block timestamp")
)

var (
	addressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	txHashRegex  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// ValidateWalletAddress validates an EVM wallet address.
func ValidateWalletAddress(addr string) error {
	if !addressRegex.MatchString(strings.TrimSpace(addr)) {
		return fmt.Errorf("%w: %q", ErrInvalidWalletAddress, addr)
	}
	return nil
}

// ValidateRawRecord validates a raw feed record before normalization.
func ValidateRawRecord(r RawRecord) error {
	if !txHashRegex.MatchString(r.TxHash) {
		return fmt.Errorf("%w: %q", ErrInvalidTxHash, r.TxHash)
	}

	if strings.TrimSpace(r.Asset) == "" {
		return fmt.Errorf("%w: empty asset", ErrInvalidAsset)
	}

	if r.BlockTimestamp.IsZero() || r.BlockTimestamp.After(time.Now().UTC().Add(24*time.Hour)) {
		return fmt.Errorf("%w: %s", ErrInvalidTimestamp, r.BlockTimestamp)
	}

	if r.GasFeeEth.IsNegative() {
		return fmt.Errorf("%w: negative gas fee", ErrInvalidRecord)
	}

	return nil
}
