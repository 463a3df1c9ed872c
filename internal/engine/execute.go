package engine

import (
	"context"
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/cadence"
	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/ledger"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/metrics"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/scoring"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/skiptrace"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/store"

	"go.uber.org/zap"
)

// ExecuteOptions control a batch execution.
type ExecuteOptions struct {
	IncludeSkipTrace bool `json:"include_skip_trace"`
}

// Execution is the result of executing or re-downloading a batch.
type Execution struct {
	Batch       model.Batch          `json:"batch"`
	Records     []model.ExportRecord `json:"records"`
	Transaction *model.Transaction   `json:"transaction,omitempty"`
}

// ExecuteBatch downloads the latest Generated batch, generating one first if
// none is pending. With skip trace requested, eligible records are enriched
// and charged to the wallet. Touches, charges and the batch status are
// committed together or not at all.
func (e *Engine) ExecuteBatch(ctx context.Context, accountID string, opts ExecuteOptions) (x Execution, err error) {
	defer func(start time.Time) { observe("execute_batch", start, err) }(time.Now())
	err = e.withAccount(ctx, accountID, func() error {
		acct, err := e.account(ctx, accountID)
		if err != nil {
			return err
		}
		x, err = e.execute(ctx, acct, opts)
		return err
	})
	return x, err
}

func (e *Engine) execute(ctx context.Context, acct model.Account, opts ExecuteOptions) (Execution, error) {
	b, ok, err := e.store.LatestGenerated(ctx, acct.ID)
	if err != nil {
		return Execution{}, err
	}
	if !ok {
		if b, err = e.generate(ctx, acct); err != nil {
			return Execution{}, err
		}
	}

	members, err := e.members(ctx, b)
	if err != nil {
		return Execution{}, err
	}
	live := liveMembers(members)

	props, err := e.propertyIndex(ctx)
	if err != nil {
		return Execution{}, err
	}
	now := e.now()
	policy := e.policyFor(acct)
	rate := e.rateFor(acct)
	log := e.accountLog(acct.ID).With(zap.String("batch", b.Label))

	var (
		settlement ledger.Settlement
		contacts   []model.TraceContact
		traced     map[string]struct{}
	)
	if opts.IncludeSkipTrace {
		est := ledger.EstimateCost(live, rate, now, e.opts.FreshnessMonths)
		if est.EligibleCount > 0 {
			wallet, err := e.store.GetWallet(ctx, acct.ID)
			if err != nil {
				return Execution{}, err
			}
			settlement, err = ledger.Settle(wallet, est, b.ID, e.newID(), now)
			if err != nil {
				log.Warn("skip trace declined", zap.Error(err))
				return Execution{}, err
			}
			contacts, err = e.trace(ctx, est, props, acct.ID, now)
			if err != nil {
				return Execution{}, err
			}
			traced = make(map[string]struct{}, len(est.TrackingIDs))
			for _, id := range est.TrackingIDs {
				traced[id] = struct{}{}
			}
			b.SkipTraceCount = est.EligibleCount
			b.SkipTraceCost = est.TotalCost
		}
	}

	for i := range live {
		m := &live[i]
		if _, ok := traced[m.ID]; ok {
			m.SkipTracedAt = model.TimePtr(now)
		}
		m.TouchCount++
		m.LastTouchAt = model.TimePtr(now)
		m.NextEligibleAt = model.TimePtr(cadence.NextDue(m.Lane, policy, now))
		scoring.Redecay(m)
		m.UpdatedAt = now
	}

	b.Status = model.BatchDownloaded
	if b.FirstDownloadAt == nil {
		b.FirstDownloadAt = model.TimePtr(now)
	}
	b.DownloadCount++
	b.UpdatedAt = now

	commit := store.Execution{
		AccountID: acct.ID,
		Tracking:  live,
		Batch:     b,
		Contacts:  contacts,
	}
	if settlement.Charged {
		tx := settlement.Transaction
		commit.Transaction = &tx
	}
	if err := e.store.CommitExecution(ctx, commit); err != nil {
		return Execution{}, err
	}

	if settlement.Charged {
		metrics.SkipTraceRecords.Add(float64(b.SkipTraceCount))
		metrics.WalletDebitCents.Add(b.SkipTraceCost.Shift(2).InexactFloat64())
	}
	records, err := e.records(ctx, b, live, props)
	if err != nil {
		return Execution{}, err
	}
	log.Info("batch executed",
		zap.Int("records", len(records)),
		zap.Int("skip_traced", b.SkipTraceCount),
		zap.String("charged", b.SkipTraceCost.StringFixed(2)),
	)
	return Execution{Batch: b, Records: records, Transaction: commit.Transaction}, nil
}

// trace enriches the estimate's properties. Nothing has been written when it
// fails.
func (e *Engine) trace(ctx context.Context, est ledger.Estimate, props map[string]model.Property, accountID string, now time.Time) ([]model.TraceContact, error) {
	reqs := make([]skiptrace.Request, 0, len(est.PropertyIDs))
	for _, id := range est.PropertyIDs {
		p := props[id]
		reqs = append(reqs, skiptrace.Request{PropertyID: id, OwnerName: p.OwnerName, Address: p.Address})
	}
	contacts, err := e.tracer.Trace(ctx, reqs)
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, apperr.Wrap(err, apperr.CodeUnavailable, "skip trace via %s", e.tracer.Name())
	}
	for i := range contacts {
		contacts[i].AccountID = accountID
		contacts[i].TracedAt = now
		contacts[i].Cost = est.RatePerRecord
		if contacts[i].Provider == "" {
			contacts[i].Provider = e.tracer.Name()
		}
	}
	return contacts, nil
}

// RedownloadBatch returns the records of an already downloaded batch again.
// It counts the download but never touches records or charges the wallet.
func (e *Engine) RedownloadBatch(ctx context.Context, accountID, batchID string) (x Execution, err error) {
	defer func(start time.Time) { observe("redownload_batch", start, err) }(time.Now())
	err = e.withAccount(ctx, accountID, func() error {
		if _, err := e.account(ctx, accountID); err != nil {
			return err
		}
		b, err := e.store.GetBatch(ctx, accountID, batchID)
		if err != nil {
			return err
		}
		if b.Status != model.BatchDownloaded {
			return apperr.New(apperr.CodeConflict, "batch %q is %s, not downloaded", batchID, b.Status)
		}
		members, err := e.members(ctx, b)
		if err != nil {
			return err
		}
		props, err := e.propertyIndex(ctx)
		if err != nil {
			return err
		}
		b.DownloadCount++
		b.UpdatedAt = e.now()
		if err := e.store.SaveBatch(ctx, b); err != nil {
			return err
		}
		records, err := e.records(ctx, b, liveMembers(members), props)
		if err != nil {
			return err
		}
		x = Execution{Batch: b, Records: records}
		e.accountLog(accountID).Info("batch re-downloaded",
			zap.String("batch", b.Label),
			zap.Int("download_count", b.DownloadCount),
		)
		return nil
	})
	return x, err
}

// records builds the export rows of b for the given live members, in batch
// order. Score, lane and source are those frozen at allocation.
func (e *Engine) records(ctx context.Context, b model.Batch, live []model.TrackingEntity, props map[string]model.Property) ([]model.ExportRecord, error) {
	include := make(map[string]struct{}, len(live))
	ids := make([]string, 0, len(live))
	for _, m := range live {
		include[m.ID] = struct{}{}
		ids = append(ids, m.PropertyID)
	}
	contacts, err := e.store.ListContacts(ctx, b.AccountID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.ExportRecord, 0, len(live))
	for _, m := range b.Members {
		if _, ok := include[m.TrackingID]; !ok {
			continue
		}
		p := props[m.PropertyID]
		rec := model.ExportRecord{
			PropertyID: m.PropertyID,
			Address:    p.Address,
			OwnerName:  p.OwnerName,
			Lane:       m.Lane,
			Score:      m.Points,
			SourceType: m.SourceType,
			Signals:    scoring.DisplayNames(scoring.Score(p.Signals, e.catalog).Matched),
		}
		if c, ok := contacts[m.PropertyID]; ok {
			rec.Phone1, rec.Phone1Type = c.Phone1, c.Phone1Type
			rec.Phone2, rec.Phone2Type = c.Phone2, c.Phone2Type
			rec.Phone3, rec.Phone3Type = c.Phone3, c.Phone3Type
			rec.Email = c.Email
		}
		out = append(out, rec)
	}
	return out, nil
}

// liveMembers drops members removed or suppressed since generation. They are
// neither touched nor exported.
func liveMembers(members []model.TrackingEntity) []model.TrackingEntity {
	out := make([]model.TrackingEntity, 0, len(members))
	for _, m := range members {
		if !m.Status.IsTerminal() {
			out = append(out, m)
		}
	}
	return out
}

func (e *Engine) propertyIndex(ctx context.Context) (map[string]model.Property, error) {
	props, err := e.store.ListProperties(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Property, len(props))
	for _, p := range props {
		out[p.ID] = p
	}
	return out, nil
}
