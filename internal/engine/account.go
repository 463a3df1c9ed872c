package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/buybox"
	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/ledger"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func accountValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateAccount checks account settings before they are stored.
func ValidateAccount(acct model.Account) error {
	if err := accountValidator().Struct(acct); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperr.Validation(fe.Namespace(), "%s fails %q", fe.Field(), fe.Tag())
		}
		return apperr.Wrap(err, apperr.CodeValidation, "invalid account")
	}
	if err := buybox.Validate(acct.BuyBox); err != nil {
		return err
	}
	if acct.ScoreFloor != nil && *acct.ScoreFloor < 0 {
		return apperr.Validation("score_floor", "score floor must not be negative")
	}
	if acct.SkipTraceRate != nil && acct.SkipTraceRate.IsNegative() {
		return apperr.Validation("skip_trace_rate", "skip-trace rate must not be negative")
	}
	return nil
}

// UpsertAccount creates or replaces an account. New accounts start
// Onboarding unless a status is given.
func (e *Engine) UpsertAccount(ctx context.Context, acct model.Account) (err error) {
	defer func(start time.Time) { observe("upsert_account", start, err) }(time.Now())
	if acct.Status == "" {
		acct.Status = model.AccountOnboarding
	}
	if err := ValidateAccount(acct); err != nil {
		return err
	}
	return e.withAccount(ctx, acct.ID, func() error {
		if err := e.store.SaveAccount(ctx, acct); err != nil {
			return err
		}
		e.accountLog(acct.ID).Info("account saved", zap.String("status", string(acct.Status)))
		return nil
	})
}

// CreditWallet funds the account's wallet.
func (e *Engine) CreditWallet(ctx context.Context, accountID string, amount decimal.Decimal) (tx model.Transaction, err error) {
	defer func(start time.Time) { observe("credit_wallet", start, err) }(time.Now())
	err = e.withAccount(ctx, accountID, func() error {
		if _, err := e.store.GetAccount(ctx, accountID); err != nil {
			return err
		}
		w, err := e.store.GetWallet(ctx, accountID)
		if err != nil {
			return err
		}
		tx, err = ledger.Credit(w, amount, e.newID(), e.now())
		if err != nil {
			return err
		}
		if err := e.store.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		e.accountLog(accountID).Info("wallet credited",
			zap.String("amount", tx.Amount.StringFixed(2)),
			zap.String("balance", tx.BalanceAfter.StringFixed(2)),
		)
		return nil
	})
	return tx, err
}
