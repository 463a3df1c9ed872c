package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger event labels.
const (
	EventSkipTraceEnrichment = "SKIP TRACE BATCH ENRICHMENT"
	EventWalletCredit        = "WALLET CREDIT"
)

// Transaction is one append-only wallet ledger entry.
type Transaction struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	Event        string          `json:"event"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	BatchID      string          `json:"batch_id,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Wallet funds skip-trace enrichment for one account.
type Wallet struct {
	AccountID    string          `json:"account_id"`
	Balance      decimal.Decimal `json:"balance"`
	Transactions []Transaction   `json:"transactions"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
