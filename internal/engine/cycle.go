package engine

import (
	"context"
	"errors"
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/allocation"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/buybox"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/cadence"
	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/ledger"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/metrics"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/scoring"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/store"

	"go.uber.org/zap"
)

func (e *Engine) newEntity(accountID, propertyID string, now time.Time) model.TrackingEntity {
	return model.TrackingEntity{
		ID:         e.newID(),
		AccountID:  accountID,
		PropertyID: propertyID,
		Lane:       model.LaneNurture,
		Status:     model.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// RefreshScores re-scores the tracking entities of every property inside
// the buy-box, creating entities for newly eligible properties. Cadence
// state is not advanced.
func (e *Engine) RefreshScores(ctx context.Context, accountID string) (err error) {
	defer func(start time.Time) { observe("refresh_scores", start, err) }(time.Now())
	return e.withAccount(ctx, accountID, func() error {
		acct, err := e.account(ctx, accountID)
		if err != nil {
			return err
		}
		props, err := e.store.ListProperties(ctx)
		if err != nil {
			return err
		}
		tracking, err := e.store.ListTracking(ctx, accountID)
		if err != nil {
			return err
		}
		byProp := indexByProperty(tracking)
		now := e.now()

		var changed []model.TrackingEntity
		for _, p := range buybox.Filter(acct.BuyBox, props) {
			res := scoring.Score(p.Signals, e.catalog)
			ent, ok := byProp[p.ID]
			if !ok {
				ent = e.newEntity(accountID, p.ID, now)
				scoring.Apply(&ent, res)
				changed = append(changed, ent)
				continue
			}
			if !ent.Status.InCadence() {
				continue
			}
			before := ent
			scoring.Apply(&ent, res)
			if ent != before {
				ent.UpdatedAt = now
				changed = append(changed, ent)
			}
		}
		if len(changed) == 0 {
			return nil
		}
		if err := e.store.SaveTracking(ctx, accountID, changed); err != nil {
			return err
		}
		e.accountLog(accountID).Debug("scores refreshed", zap.Int("changed", len(changed)))
		return nil
	})
}

// cycle is the uncommitted outcome of one allocation run.
type cycle struct {
	pool    []model.TrackingEntity
	sel     allocation.Selection
	exits   int
	entries int
}

// runCycle scores and advances every in-box entity, then selects the batch.
// Nothing is persisted. A NoEligibleRecords error still returns the cycle.
func (e *Engine) runCycle(ctx context.Context, acct model.Account, now time.Time) (*cycle, error) {
	props, err := e.store.ListProperties(ctx)
	if err != nil {
		return nil, err
	}
	tracking, err := e.store.ListTracking(ctx, acct.ID)
	if err != nil {
		return nil, err
	}
	byProp := indexByProperty(tracking)
	policy := e.policyFor(acct)

	c := &cycle{}
	eligible := buybox.Filter(acct.BuyBox, props)
	owners := make(map[string]string, len(eligible))
	for _, p := range eligible {
		ent, ok := byProp[p.ID]
		if !ok {
			ent = e.newEntity(acct.ID, p.ID, now)
		}
		tr := cadence.Advance(&ent, scoring.Score(p.Signals, e.catalog), policy, now)
		if tr.Exited {
			c.exits++
		}
		if tr.Entered {
			c.entries++
		}
		c.pool = append(c.pool, ent)
		owners[p.ID] = p.OwnerKey()
	}

	c.sel, err = allocation.Select(allocation.Request{
		AccountID: acct.ID,
		Entities:  c.pool,
		Owners:    owners,
		Capacity:  e.capacityFor(acct),
		Now:       now,
	})
	return c, err
}

// GenerateBatch runs a full cycle and persists the resulting Generated
// batch. An earlier batch still in Generated state is archived.
func (e *Engine) GenerateBatch(ctx context.Context, accountID string) (b model.Batch, err error) {
	defer func(start time.Time) { observe("generate_batch", start, err) }(time.Now())
	err = e.withAccount(ctx, accountID, func() error {
		acct, err := e.account(ctx, accountID)
		if err != nil {
			return err
		}
		b, err = e.generate(ctx, acct)
		return err
	})
	return b, err
}

// generate must run under the account lock.
func (e *Engine) generate(ctx context.Context, acct model.Account) (model.Batch, error) {
	if acct.Status == model.AccountPaused || acct.Status == model.AccountCancelled {
		return model.Batch{}, apperr.Validation("status", "account %q is %s", acct.ID, acct.Status)
	}
	now := e.now()
	c, err := e.runCycle(ctx, acct, now)
	if errors.Is(err, apperr.ErrNoEligibleRecords) && len(c.pool) > 0 {
		// Cooldown transitions still happened.
		if serr := e.store.SaveTracking(ctx, acct.ID, c.pool); serr != nil {
			return model.Batch{}, serr
		}
		e.accountLog(acct.ID).Info("no eligible records",
			zap.Int("tracked", len(c.pool)),
			zap.Int("cooldown_entries", c.entries),
		)
	}
	if err != nil {
		return model.Batch{}, err
	}

	source := make(map[string]model.SourceType, len(c.sel.Selected)+len(c.sel.Queue))
	for _, s := range c.sel.Selected {
		source[s.ID] = s.SourceType
	}
	for _, q := range c.sel.Queue {
		source[q.ID] = q.SourceType
	}
	for i := range c.pool {
		c.pool[i].SourceType = source[c.pool[i].ID]
		c.pool[i].UpdatedAt = now
	}

	gen := store.Generation{
		AccountID: acct.ID,
		Tracking:  c.pool,
		Batch:     allocation.NewBatch(e.newID(), acct.ID, c.sel, now),
	}
	prev, ok, err := e.store.LatestGenerated(ctx, acct.ID)
	if err != nil {
		return model.Batch{}, err
	}
	if ok {
		gen.Supersede = []string{prev.ID}
	}
	if err := e.store.CommitGeneration(ctx, gen); err != nil {
		return model.Batch{}, err
	}

	b := gen.Batch
	metrics.BatchRecords.WithLabelValues(string(model.SourceFresh)).Add(float64(b.FreshCount))
	metrics.BatchRecords.WithLabelValues(string(model.SourceRepeat)).Add(float64(b.RepeatCount))
	metrics.DuplicatesAvoided.Add(float64(b.DuplicatesAvoided))
	metrics.CadenceTransitions.WithLabelValues("exit").Add(float64(c.exits))
	metrics.CadenceTransitions.WithLabelValues("entry").Add(float64(c.entries))

	fields := []zap.Field{
		zap.String("batch", b.Label),
		zap.Int("records", b.TotalRecords),
		zap.Int("fresh", b.FreshCount),
		zap.Int("repeat", b.RepeatCount),
		zap.Int("queue", b.QueueCount),
		zap.Int("duplicates_avoided", b.DuplicatesAvoided),
	}
	if ok {
		fields = append(fields, zap.String("superseded", prev.ID))
	}
	e.accountLog(acct.ID).Info("batch generated", fields...)
	return b, nil
}

// EstimateSkipTrace prices enrichment of the latest Generated batch. With
// no such batch it previews the batch a generation would produce now,
// without persisting anything.
func (e *Engine) EstimateSkipTrace(ctx context.Context, accountID string) (est ledger.Estimate, err error) {
	defer func(start time.Time) { observe("estimate_skip_trace", start, err) }(time.Now())
	acct, err := e.account(ctx, accountID)
	if err != nil {
		return ledger.Estimate{}, err
	}
	now := e.now()
	rate := e.rateFor(acct)

	b, ok, err := e.store.LatestGenerated(ctx, accountID)
	if err != nil {
		return ledger.Estimate{}, err
	}
	if ok {
		members, err := e.members(ctx, b)
		if err != nil {
			return ledger.Estimate{}, err
		}
		return ledger.EstimateCost(liveMembers(members), rate, now, e.opts.FreshnessMonths), nil
	}

	c, err := e.runCycle(ctx, acct, now)
	if errors.Is(err, apperr.ErrNoEligibleRecords) {
		return ledger.EstimateCost(nil, rate, now, e.opts.FreshnessMonths), nil
	}
	if err != nil {
		return ledger.Estimate{}, err
	}
	return ledger.EstimateCost(c.sel.Selected, rate, now, e.opts.FreshnessMonths), nil
}

// members resolves the batch's persisted membership to current entities,
// in batch order.
func (e *Engine) members(ctx context.Context, b model.Batch) ([]model.TrackingEntity, error) {
	tracking, err := e.store.ListTracking(ctx, b.AccountID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.TrackingEntity, len(tracking))
	for _, t := range tracking {
		byID[t.ID] = t
	}
	out := make([]model.TrackingEntity, 0, len(b.Members))
	for _, m := range b.Members {
		t, ok := byID[m.TrackingID]
		if !ok {
			return nil, apperr.NotFound("tracking entity", m.TrackingID)
		}
		out = append(out, t)
	}
	return out, nil
}

func indexByProperty(tracking []model.TrackingEntity) map[string]model.TrackingEntity {
	out := make(map[string]model.TrackingEntity, len(tracking))
	for _, t := range tracking {
		out[t.PropertyID] = t
	}
	return out
}
