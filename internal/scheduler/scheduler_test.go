package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/collector"
	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeEngine struct {
	accounts []model.Account
	fail     map[string]error

	mu        sync.Mutex
	generated []string
	refreshed []string
	inflight  atomic.Int32
	peak      atomic.Int32
}

func (f *fakeEngine) ListAccounts(context.Context) ([]model.Account, error) {
	return f.accounts, nil
}

func (f *fakeEngine) GenerateBatch(_ context.Context, id string) (model.Batch, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.generated = append(f.generated, id)
	f.mu.Unlock()
	if err := f.fail[id]; err != nil {
		return model.Batch{}, err
	}
	return model.Batch{AccountID: id, Label: id + "-2026-W10", TotalRecords: 3, FreshCount: 3}, nil
}

func (f *fakeEngine) RefreshScores(_ context.Context, id string) error {
	f.mu.Lock()
	f.refreshed = append(f.refreshed, id)
	f.mu.Unlock()
	return f.fail[id]
}

func (f *fakeEngine) ListBatches(_ context.Context, id string) ([]model.Batch, error) {
	if id == "ghost" {
		return nil, apperr.NotFound("account", id)
	}
	return []model.Batch{{AccountID: id, Label: id + "-2026-W10"}}, nil
}

func (f *fakeEngine) GetWallet(_ context.Context, id string) (model.Wallet, error) {
	return model.Wallet{AccountID: id, Balance: decimal.RequireFromString("12.5")}, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingNotifier) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

type stubCollector struct {
	res collector.Result
	err error
}

func (s stubCollector) Collect(context.Context, time.Time) (collector.Result, error) {
	return s.res, s.err
}

func newTestScheduler(t *testing.T, eng *fakeEngine, col Collector, parallelism int) (*Scheduler, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	s := NewScheduler(context.Background(), eng, col, n, Options{Parallelism: parallelism}, zaptest.NewLogger(t))
	return s, n
}

func TestRunWeeklyNow(t *testing.T) {
	eng := &fakeEngine{
		accounts: []model.Account{
			{ID: "a", Status: model.AccountActive},
			{ID: "b", Status: model.AccountActive},
			{ID: "c", Status: model.AccountPaused},
			{ID: "d"},
			{ID: "e", Status: model.AccountActive},
		},
		fail: map[string]error{"e": apperr.NoEligibleRecords("e")},
	}
	s, n := newTestScheduler(t, eng, nil, 2)

	outcomes := s.RunWeeklyNow(context.Background())
	require.Len(t, outcomes, 4)
	assert.Equal(t, "a", outcomes[0].AccountID)
	require.NotNil(t, outcomes[0].Batch)
	assert.Equal(t, "e", outcomes[3].AccountID)
	assert.ErrorIs(t, outcomes[3].Err, apperr.ErrNoEligibleRecords)
	assert.ElementsMatch(t, []string{"a", "b", "d", "e"}, eng.generated)
	assert.LessOrEqual(t, eng.peak.Load(), int32(2))

	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "Generated 3 | Empty 1 | Failed 0")
}

func TestRunWeeklyNow_SkipsDedicatedAccounts(t *testing.T) {
	eng := &fakeEngine{accounts: []model.Account{
		{ID: "a", Status: model.AccountActive},
		{ID: "b", Status: model.AccountActive, CycleDay: "Wednesday", CycleTime: "09:30"},
	}}
	s, _ := newTestScheduler(t, eng, nil, 4)
	require.NoError(t, s.RegisterAll("0 0 8 * * 1", "0 0 6 * * *", eng.accounts))
	assert.Len(t, s.Cron.Entries(), 3)

	outcomes := s.RunWeeklyNow(context.Background())
	require.Len(t, outcomes, 1)
	assert.Equal(t, "a", outcomes[0].AccountID)
}

func TestRegisterAccount_Replaces(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeEngine{}, nil, 1)
	a := model.Account{ID: "a", CycleDay: "Friday"}
	require.NoError(t, s.RegisterAccount(a))
	require.NoError(t, s.RegisterAccount(a))
	assert.Len(t, s.Cron.Entries(), 1)

	err := s.RegisterAccount(model.Account{ID: "b", CycleDay: "Funday"})
	assert.Error(t, err)
}

func TestRunDailyNow(t *testing.T) {
	eng := &fakeEngine{
		accounts: []model.Account{
			{ID: "a", Status: model.AccountActive},
			{ID: "b", Status: model.AccountActive},
			{ID: "z", Status: model.AccountCancelled},
		},
		fail: map[string]error{"b": errors.New("locked")},
	}
	col := stubCollector{res: collector.Result{Properties: 4, Events: 2}}
	s, n := newTestScheduler(t, eng, col, 3)

	report := s.RunDailyNow(context.Background())
	assert.Equal(t, 1, report.Refreshed)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "b", report.Failed[0].AccountID)
	assert.Equal(t, 4, report.Properties)
	assert.ElementsMatch(t, []string{"a", "b"}, eng.refreshed)

	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "4 properties, 2 status events")
}

func TestRunDailyNow_CollectorFailureStillRefreshes(t *testing.T) {
	eng := &fakeEngine{accounts: []model.Account{{ID: "a", Status: model.AccountActive}}}
	s, _ := newTestScheduler(t, eng, stubCollector{err: errors.New("feed down")}, 1)

	report := s.RunDailyNow(context.Background())
	assert.EqualError(t, report.CollectErr, "feed down")
	assert.Equal(t, 1, report.Refreshed)
}

func TestHandleCommand(t *testing.T) {
	eng := &fakeEngine{accounts: []model.Account{{ID: "acme", Status: model.AccountActive}}}
	s, _ := newTestScheduler(t, eng, nil, 1)
	ctx := context.Background()

	assert.Contains(t, s.HandleCommand(ctx, "/accounts"), "acme (Active)")
	assert.Contains(t, s.HandleCommand(ctx, "/wallet acme"), "Balance: $12.50")
	assert.Contains(t, s.HandleCommand(ctx, "/batch acme"), "acme-2026-W10")
	assert.Contains(t, s.HandleCommand(ctx, "/batch ghost"), "not found")
	assert.Contains(t, s.HandleCommand(ctx, "/generate acme"), "Records: 3")
	assert.Contains(t, s.HandleCommand(ctx, "/wallet"), "Available commands")
	assert.Contains(t, s.HandleCommand(ctx, "hello"), "Available commands")
}

func TestCycleCron(t *testing.T) {
	spec, err := CycleCron("Wednesday", "09:30")
	require.NoError(t, err)
	assert.Equal(t, "0 30 9 * * 3", spec)

	spec, err = CycleCron("sunday", "")
	require.NoError(t, err)
	assert.Equal(t, "0 0 8 * * 0", spec)

	_, err = CycleCron("Monday", "25:00")
	assert.Error(t, err)
}
