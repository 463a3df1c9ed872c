package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)

// stores runs fn against every adapter.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "engine.db"), zaptest.NewLogger(t))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func sampleEntity(id, prop string) model.TrackingEntity {
	return model.TrackingEntity{
		ID:                    id,
		AccountID:             "acct",
		PropertyID:            prop,
		Lane:                  model.LaneBlitz,
		Status:                model.StatusActive,
		BaseScore:             0.0184,
		EffectiveScore:        0.0184,
		FinalAllocationPoints: 1.84,
		CreatedAt:             t0,
		UpdatedAt:             t0,
	}
}

func sampleBatch(id string, at time.Time) model.Batch {
	return model.Batch{
		ID:           id,
		AccountID:    "acct",
		Label:        "acct-2026-W06",
		WeekStart:    at,
		WeekEnd:      at.Add(7 * 24 * time.Hour),
		Members:      []model.BatchMember{{TrackingID: "t1", PropertyID: "p1", SourceType: model.SourceFresh, Lane: model.LaneBlitz, Points: 1.84}},
		TotalRecords: 1,
		FreshCount:   1,
		BlitzCount:   1,
		Status:       model.BatchGenerated,
		GeneratedAt:  at,
		UpdatedAt:    at,
	}
}

func TestAccounts(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.GetAccount(ctx, "acct")
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		acct := model.Account{ID: "acct", Name: "Acme", Status: model.AccountActive, WeeklyCapacity: 100,
			BuyBox: model.BuyBox{Jurisdictions: []string{"12086"}, MinEquity: 30}}
		require.NoError(t, s.SaveAccount(ctx, acct))
		acct.WeeklyCapacity = 150
		require.NoError(t, s.SaveAccount(ctx, acct))

		got, err := s.GetAccount(ctx, "acct")
		require.NoError(t, err)
		assert.Equal(t, 150, got.WeeklyCapacity)
		assert.Equal(t, []string{"12086"}, got.BuyBox.Jurisdictions)

		all, err := s.ListAccounts(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestPropertiesAndTracking(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.UpsertProperties(ctx, []model.Property{
			{ID: "p2", Signals: []string{"vacant"}},
			{ID: "p1", OwnerID: "o1", Signals: []string{"foreclosure"}},
		}))
		props, err := s.ListProperties(ctx)
		require.NoError(t, err)
		require.Len(t, props, 2)
		assert.Equal(t, "p1", props[0].ID)

		e := sampleEntity("t1", "p1")
		e.NextEligibleAt = model.TimePtr(t0.AddDate(0, 0, 14))
		require.NoError(t, s.SaveTracking(ctx, "acct", []model.TrackingEntity{e}))

		e.TouchCount = 1
		e.Status = model.StatusCoolingDown
		e.CooldownEndAt = model.TimePtr(t0.AddDate(0, 6, 0))
		require.NoError(t, s.SaveTracking(ctx, "acct", []model.TrackingEntity{e}))

		got, err := s.ListTracking(ctx, "acct")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 1, got[0].TouchCount)
		assert.Equal(t, model.StatusCoolingDown, got[0].Status)
		require.NotNil(t, got[0].CooldownEndAt)
		assert.True(t, got[0].CooldownEndAt.Equal(t0.AddDate(0, 6, 0)))
		assert.Nil(t, got[0].SkipTracedAt)

		other, err := s.ListTracking(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, other)
	})
}

func TestCommitGeneration_Supersedes(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first := sampleBatch("b1", t0)
		require.NoError(t, s.CommitGeneration(ctx, Generation{AccountID: "acct", Batch: first,
			Tracking: []model.TrackingEntity{sampleEntity("t1", "p1")}}))

		latest, ok, err := s.LatestGenerated(ctx, "acct")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "b1", latest.ID)
		assert.Equal(t, first.Members, latest.Members)

		second := sampleBatch("b2", t0.Add(time.Hour))
		require.NoError(t, s.CommitGeneration(ctx, Generation{AccountID: "acct", Batch: second, Supersede: []string{"b1"}}))

		old, err := s.GetBatch(ctx, "acct", "b1")
		require.NoError(t, err)
		assert.Equal(t, model.BatchArchived, old.Status)

		latest, ok, err = s.LatestGenerated(ctx, "acct")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "b2", latest.ID)

		list, err := s.ListBatches(ctx, "acct")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b2", list[0].ID)

		err = s.CommitGeneration(ctx, Generation{AccountID: "acct", Batch: sampleBatch("b3", t0), Supersede: []string{"missing"}})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = s.GetBatch(ctx, "acct", "b3")
		assert.ErrorIs(t, err, apperr.ErrNotFound, "failed commit must not leave the batch behind")
	})
}

func TestCommitExecution(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.AppendTransaction(ctx, model.Transaction{ID: "c1", AccountID: "acct",
			Event: model.EventWalletCredit, Amount: decimal.RequireFromString("50"),
			BalanceAfter: decimal.RequireFromString("50"), Timestamp: t0}))

		b := sampleBatch("b1", t0)
		require.NoError(t, s.CommitGeneration(ctx, Generation{AccountID: "acct", Batch: b,
			Tracking: []model.TrackingEntity{sampleEntity("t1", "p1")}}))

		later := t0.Add(time.Minute)
		e := sampleEntity("t1", "p1")
		e.TouchCount = 1
		e.LastTouchAt = model.TimePtr(later)
		e.SkipTracedAt = model.TimePtr(later)
		b.Status = model.BatchDownloaded
		b.DownloadCount = 1
		b.FirstDownloadAt = model.TimePtr(later)
		b.SkipTraceCount = 1
		b.SkipTraceCost = decimal.RequireFromString("0.06")
		tx := model.Transaction{ID: "d1", AccountID: "acct", Event: model.EventSkipTraceEnrichment,
			Amount: decimal.RequireFromString("-0.06"), BalanceAfter: decimal.RequireFromString("49.94"),
			BatchID: "b1", Timestamp: later}

		require.NoError(t, s.CommitExecution(ctx, Execution{
			AccountID:   "acct",
			Tracking:    []model.TrackingEntity{e},
			Batch:       b,
			Transaction: &tx,
			Contacts:    []model.TraceContact{{PropertyID: "p1", Phone1: "3055550100", Phone1Type: "mobile", Provider: "test", TracedAt: later}},
		}))

		w, err := s.GetWallet(ctx, "acct")
		require.NoError(t, err)
		assert.Equal(t, "49.94", w.Balance.StringFixed(2))
		require.Len(t, w.Transactions, 2)
		assert.Equal(t, "-0.06", w.Transactions[1].Amount.StringFixed(2))
		assert.Equal(t, "b1", w.Transactions[1].BatchID)

		got, err := s.GetBatch(ctx, "acct", "b1")
		require.NoError(t, err)
		assert.Equal(t, model.BatchDownloaded, got.Status)
		assert.Equal(t, 1, got.DownloadCount)
		assert.Equal(t, "0.06", got.SkipTraceCost.StringFixed(2))

		_, ok, err := s.LatestGenerated(ctx, "acct")
		require.NoError(t, err)
		assert.False(t, ok)

		contacts, err := s.ListContacts(ctx, "acct", []string{"p1", "p9"})
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, "3055550100", contacts["p1"].Phone1)
	})
}

func TestGetWallet_Unfunded(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		w, err := s.GetWallet(context.Background(), "nobody")
		require.NoError(t, err)
		assert.True(t, w.Balance.IsZero())
		assert.Empty(t, w.Transactions)
	})
}

func TestMemoryStore_SnapshotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	s, err := OpenMemoryStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveAccount(ctx, model.Account{ID: "acct", WeeklyCapacity: 10}))
	require.NoError(t, s.AppendTransaction(ctx, model.Transaction{ID: "c1", AccountID: "acct",
		Amount: decimal.RequireFromString("12.50"), BalanceAfter: decimal.RequireFromString("12.50"), Timestamp: t0}))
	require.NoError(t, s.Close())

	reopened, err := OpenMemoryStore(path)
	require.NoError(t, err)
	acct, err := reopened.GetAccount(ctx, "acct")
	require.NoError(t, err)
	assert.Equal(t, 10, acct.WeeklyCapacity)
	w, err := reopened.GetWallet(ctx, "acct")
	require.NoError(t, err)
	assert.Equal(t, "12.50", w.Balance.StringFixed(2))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SaveBatch(ctx, sampleBatch("b1", t0)))

	b, err := s.GetBatch(ctx, "acct", "b1")
	require.NoError(t, err)
	b.Members[0].PropertyID = "mutated"

	again, err := s.GetBatch(ctx, "acct", "b1")
	require.NoError(t, err)
	assert.Equal(t, "p1", again.Members[0].PropertyID)
}

func TestMemoryStore_FailedFlushLeavesStateUntouched(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	require.NoError(t, os.Mkdir(dir, 0o755))
	ctx := context.Background()

	s, err := OpenMemoryStore(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	require.NoError(t, s.AppendTransaction(ctx, model.Transaction{ID: "c1", AccountID: "acct",
		Event: model.EventWalletCredit, Amount: decimal.RequireFromString("50"),
		BalanceAfter: decimal.RequireFromString("50"), Timestamp: t0}))
	b := sampleBatch("b1", t0)
	require.NoError(t, s.CommitGeneration(ctx, Generation{AccountID: "acct", Batch: b,
		Tracking: []model.TrackingEntity{sampleEntity("t1", "p1")}}))

	// Snapshot directory gone: every further write fails.
	require.NoError(t, os.RemoveAll(dir))

	e := sampleEntity("t1", "p1")
	e.TouchCount = 1
	b.Status = model.BatchDownloaded
	b.DownloadCount = 1
	tx := model.Transaction{ID: "d1", AccountID: "acct", Event: model.EventSkipTraceEnrichment,
		Amount: decimal.RequireFromString("-12"), BalanceAfter: decimal.RequireFromString("38"),
		BatchID: "b1", Timestamp: t0}
	err = s.CommitExecution(ctx, Execution{AccountID: "acct", Tracking: []model.TrackingEntity{e},
		Batch: b, Transaction: &tx, Contacts: []model.TraceContact{{PropertyID: "p1", Phone1: "3055550100"}}})
	assert.ErrorIs(t, err, apperr.ErrUnavailable)

	w, err := s.GetWallet(ctx, "acct")
	require.NoError(t, err)
	assert.Equal(t, "50.00", w.Balance.StringFixed(2))
	assert.Len(t, w.Transactions, 1)

	got, err := s.GetBatch(ctx, "acct", "b1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchGenerated, got.Status)
	assert.Zero(t, got.DownloadCount)

	tracking, err := s.ListTracking(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, tracking, 1)
	assert.Zero(t, tracking[0].TouchCount)

	contacts, err := s.ListContacts(ctx, "acct", []string{"p1"})
	require.NoError(t, err)
	assert.Empty(t, contacts)

	err = s.CommitGeneration(ctx, Generation{AccountID: "acct", Batch: sampleBatch("b2", t0), Supersede: []string{"b1"}})
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	latest, ok, err := s.LatestGenerated(ctx, "acct")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b1", latest.ID)
}

func TestMemoryStore_AccountPointersCopied(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	floor := 0.25
	rate := decimal.RequireFromString("0.12")
	require.NoError(t, s.SaveAccount(ctx, model.Account{ID: "acct", ScoreFloor: &floor, SkipTraceRate: &rate}))

	floor = 0.9
	a, err := s.GetAccount(ctx, "acct")
	require.NoError(t, err)
	*a.ScoreFloor = 0.5
	*a.SkipTraceRate = decimal.RequireFromString("9")

	again, err := s.GetAccount(ctx, "acct")
	require.NoError(t, err)
	assert.Equal(t, 0.25, *again.ScoreFloor)
	assert.Equal(t, "0.12", again.SkipTraceRate.StringFixed(2))
}
