// Package engine exposes the lead allocation and cadence operations of an
// account: eligibility, scoring, weekly batch generation and execution with
// skip-trace settlement.
package engine

import (
	"context"
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/buybox"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/cadence"
	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/ledger"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/lock"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/logger"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/metrics"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/scoring"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/skiptrace"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Options are the system defaults accounts fall back to.
type Options struct {
	Policy          cadence.Policy
	SkipTraceRate   decimal.Decimal
	FreshnessMonths int
	WeeklyCapacity  int
	// LockWait bounds how long a mutating call waits for its account.
	LockWait time.Duration
}

// DefaultOptions returns the built-in system settings.
func DefaultOptions() Options {
	return Options{
		Policy:          cadence.DefaultPolicy(),
		SkipTraceRate:   ledger.DefaultRate,
		FreshnessMonths: ledger.DefaultFreshnessMonths,
		WeeklyCapacity:  100,
		LockWait:        10 * time.Second,
	}
}

// Engine runs account cycles over a Store. Mutating operations on one
// account are serialized through the Locker; accounts run independently.
type Engine struct {
	store   store.Store
	catalog scoring.Catalog
	locker  lock.Locker
	tracer  skiptrace.Provider
	log     *zap.Logger
	opts    Options
	now     func() time.Time
	newID   func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLocker sets the per-account lock, e.g. a RedisLocker shared by processes.
func WithLocker(l lock.Locker) Option { return func(e *Engine) { e.locker = l } }

// WithTracer sets the skip-trace provider.
func WithTracer(p skiptrace.Provider) Option { return func(e *Engine) { e.tracer = p } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithIDGenerator replaces uuid generation for batches, entities and transactions.
func WithIDGenerator(gen func() string) Option { return func(e *Engine) { e.newID = gen } }

// New builds an Engine. Without options it uses an in-process lock, no
// skip-trace provider and the wall clock.
func New(st store.Store, cat scoring.Catalog, opts Options, options ...Option) *Engine {
	e := &Engine{
		store:   st,
		catalog: cat,
		locker:  lock.NewKeyedMutex(),
		tracer:  skiptrace.Disabled{},
		log:     zap.NewNop(),
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// withAccount runs fn while holding the account's lock.
func (e *Engine) withAccount(ctx context.Context, accountID string, fn func() error) error {
	lctx := ctx
	if e.opts.LockWait > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, e.opts.LockWait)
		defer cancel()
	}
	unlock, err := e.locker.Lock(lctx, accountID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// observe records the outcome of op.
func observe(op string, start time.Time, err error) {
	code := "OK"
	if err != nil {
		code = string(apperr.CodeOf(err))
	}
	metrics.OperationsTotal.WithLabelValues(op, code).Inc()
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// account loads and validates an account.
func (e *Engine) account(ctx context.Context, id string) (model.Account, error) {
	if id == "" {
		return model.Account{}, apperr.Validation("account_id", "account id is required")
	}
	acct, err := e.store.GetAccount(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	if err := buybox.Validate(acct.BuyBox); err != nil {
		return model.Account{}, err
	}
	return acct, nil
}

func (e *Engine) policyFor(acct model.Account) cadence.Policy {
	return cadence.For(acct, e.opts.Policy)
}

func (e *Engine) rateFor(acct model.Account) decimal.Decimal {
	if acct.SkipTraceRate != nil {
		return *acct.SkipTraceRate
	}
	return e.opts.SkipTraceRate
}

func (e *Engine) capacityFor(acct model.Account) int {
	if acct.WeeklyCapacity > 0 {
		return acct.WeeklyCapacity
	}
	return e.opts.WeeklyCapacity
}

func (e *Engine) accountLog(id string) *zap.Logger {
	return e.log.With(logger.Account(id))
}

// FilterEligible returns the properties inside the account's buy-box.
func (e *Engine) FilterEligible(ctx context.Context, accountID string, props []model.Property) (out []model.Property, err error) {
	defer func(start time.Time) { observe("filter_eligible", start, err) }(time.Now())
	acct, err := e.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return buybox.Filter(acct.BuyBox, props), nil
}

// GetTracking returns every tracking entity of the account.
func (e *Engine) GetTracking(ctx context.Context, accountID string) ([]model.TrackingEntity, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.store.ListTracking(ctx, accountID)
}

// GetWallet returns the account's balance and ledger.
func (e *Engine) GetWallet(ctx context.Context, accountID string) (model.Wallet, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return model.Wallet{}, err
	}
	return e.store.GetWallet(ctx, accountID)
}

// ListBatches returns the account's batches, newest first.
func (e *Engine) ListBatches(ctx context.Context, accountID string) ([]model.Batch, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.store.ListBatches(ctx, accountID)
}

// GetAccount returns the stored account.
func (e *Engine) GetAccount(ctx context.Context, accountID string) (model.Account, error) {
	return e.store.GetAccount(ctx, accountID)
}

// ListAccounts returns every account.
func (e *Engine) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return e.store.ListAccounts(ctx)
}
