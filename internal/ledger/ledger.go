// Package ledger prices skip-trace enrichment and settles it against an
// account wallet.
package ledger

import (
	"time"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"github.com/shopspring/decimal"
)

// Pricing defaults.
var (
	DefaultRate            = decimal.RequireFromString("0.06")
	DefaultFreshnessMonths = 6
)

const centPlaces int32 = 2

// Estimate is the cost preview of enriching a batch.
type Estimate struct {
	EligibleCount      int             `json:"eligible_count"`
	AlreadyTracedCount int             `json:"already_traced_count"`
	RatePerRecord      decimal.Decimal `json:"rate_per_record"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	// PropertyIDs lists the properties needing a trace, in member order.
	PropertyIDs []string `json:"-"`
	// TrackingIDs parallels PropertyIDs.
	TrackingIDs []string `json:"-"`
}

// NeedsTrace reports whether e was never traced or its trace is older than
// freshnessMonths.
func NeedsTrace(e model.TrackingEntity, now time.Time, freshnessMonths int) bool {
	if e.SkipTracedAt == nil {
		return true
	}
	return e.SkipTracedAt.Before(now.AddDate(0, -freshnessMonths, 0))
}

// EstimateCost prices enrichment for members at rate. The total is rounded
// to cents.
func EstimateCost(members []model.TrackingEntity, rate decimal.Decimal, now time.Time, freshnessMonths int) Estimate {
	est := Estimate{RatePerRecord: rate}
	for _, e := range members {
		if NeedsTrace(e, now, freshnessMonths) {
			est.EligibleCount++
			est.PropertyIDs = append(est.PropertyIDs, e.PropertyID)
			est.TrackingIDs = append(est.TrackingIDs, e.ID)
			continue
		}
		est.AlreadyTracedCount++
	}
	est.TotalCost = rate.Mul(decimal.NewFromInt(int64(est.EligibleCount))).Round(centPlaces)
	return est
}

// Settlement is the wallet outcome of a charge.
type Settlement struct {
	Charged     bool
	Transaction model.Transaction
	Balance     decimal.Decimal
}

// Settle checks w can cover est and builds the debit. The wallet is not
// mutated; callers commit the result.
func Settle(w model.Wallet, est Estimate, batchID, txID string, now time.Time) (Settlement, error) {
	if est.EligibleCount == 0 || est.TotalCost.IsZero() {
		return Settlement{Balance: w.Balance}, nil
	}
	if w.Balance.LessThan(est.TotalCost) {
		return Settlement{}, apperr.InsufficientFunds(w.Balance.StringFixed(centPlaces), est.TotalCost.StringFixed(centPlaces))
	}
	after := w.Balance.Sub(est.TotalCost)
	return Settlement{
		Charged: true,
		Balance: after,
		Transaction: model.Transaction{
			ID:           txID,
			AccountID:    w.AccountID,
			Event:        model.EventSkipTraceEnrichment,
			Amount:       est.TotalCost.Neg(),
			BalanceAfter: after,
			BatchID:      batchID,
			Timestamp:    now,
		},
	}, nil
}

// Credit builds a funding transaction for w.
func Credit(w model.Wallet, amount decimal.Decimal, txID string, now time.Time) (model.Transaction, error) {
	if !amount.IsPositive() {
		return model.Transaction{}, apperr.Validation("amount", "credit amount must be positive")
	}
	amount = amount.Round(centPlaces)
	return model.Transaction{
		ID:           txID,
		AccountID:    w.AccountID,
		Event:        model.EventWalletCredit,
		Amount:       amount,
		BalanceAfter: w.Balance.Add(amount),
		Timestamp:    now,
	}, nil
}

// Apply appends tx to w and moves the balance.
func Apply(w *model.Wallet, tx model.Transaction) {
	w.Balance = tx.BalanceAfter
	w.Transactions = append(w.Transactions, tx)
	w.UpdatedAt = tx.Timestamp
}
