package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ZeroAddress is the mint/burn counterparty on EVM chains.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Ordinal totally orders events by their on-chain position.
type Ordinal struct {
	Block uint64 `json:"block"`
	Log   uint32 `json:"log"`
}

// Compare returns -1, 0 or 1 ordering o against other.
func (o Ordinal) Compare(other Ordinal) int {
	switch {
	case o.Block < other.Block:
		return -1
	case o.Block > other.Block:
		return 1
	case o.Log < other.Log:
		return -1
	case o.Log > other.Log:
		return 1
	default:
		return 0
	}
}

// Before reports whether o strictly precedes other.
func (o Ordinal) Before(other Ordinal) bool {
	return o.Compare(other) < 0
}

func (o Ordinal) String() string {
	return fmt.Sprintf("%d:%d", o.Block, o.Log)
}

// NewEventID derives the globally unique event ID from the source
// transaction hash and log index.
func NewEventID(txHash string, logIndex uint32) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", txHash, logIndex)))
	return hex.EncodeToString(sum[:16])
}

// RawRecord is one record of the raw activity feed, the shape consumed
// from the chain-data collaborator.
type RawRecord struct {
	TxHash         string          `json:"tx_hash"`
	LogIndex       uint32          `json:"log_index"`
	BlockNumber    uint64          `json:"block_number"`
	BlockTimestamp time.Time       `json:"block_timestamp"`
	FromAddress    string          `json:"from_address"`
	ToAddress      string          `json:"to_address"`
	Asset          string          `json:"asset"`
	Amount         decimal.Decimal `json:"amount"`
	GasFeeEth      decimal.Decimal `json:"gas_fee_eth"`
	Success        bool            `json:"success"`
}

// Ordinal returns the record's on-chain position.
func (r RawRecord) Ordinal() Ordinal {
	return Ordinal{Block: r.BlockNumber, Log: r.LogIndex}
}

// TransactionEvent is the canonical, immutable pipeline input record.
// Amount is signed in asset-native units: positive inbound, negative
// outbound relative to the analyzed wallet.
type TransactionEvent struct {
	ID           string
	Timestamp    time.Time
	Asset        string
	Amount       decimal.Decimal
	UnitPriceUsd decimal.Decimal
	Priced       bool
	Counterparty string
	GasFeeEth    decimal.Decimal
	GasFeeUsd    decimal.Decimal
	GasPriced    bool
	Ordinal      Ordinal
}

// ValueUsd is the absolute USD value of the event amount, zero when
// the event is unpriced.
func (e TransactionEvent) ValueUsd() decimal.Decimal {
	if !e.Priced {
		return decimal.Zero
	}
	return e.Amount.Abs().Mul(e.UnitPriceUsd)
}

// Category is the semantic accounting category of an event.
type Category string

const (
	CategoryAcquisition Category = "acquisition"
	CategoryDisposal    Category = "disposal"
	CategoryIncome      Category = "income"
	CategoryFee         Category = "fee"
	CategoryTransfer    Category = "transfer"
	CategoryIgnored     Category = "ignored"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryAcquisition, CategoryDisposal, CategoryIncome,
		CategoryFee, CategoryTransfer, CategoryIgnored:
		return true
	}
	return false
}

// ClassifiedEvent is a TransactionEvent with exactly one category
// assigned. SplitFrom names the parent event when the classifier split
// a bundled gas fee into its own Fee event.
type ClassifiedEvent struct {
	TransactionEvent

	Category  Category
	Protocol  string
	SplitFrom string
}
