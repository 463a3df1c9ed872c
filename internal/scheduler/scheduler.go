// Package scheduler runs the recurring account cycles on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/collector"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/logger"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/metrics"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/notifier"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine is the subset of engine operations the scheduler drives.
type Engine interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
	GenerateBatch(ctx context.Context, accountID string) (model.Batch, error)
	RefreshScores(ctx context.Context, accountID string) error
	ListBatches(ctx context.Context, accountID string) ([]model.Batch, error)
	GetWallet(ctx context.Context, accountID string) (model.Wallet, error)
}

// Collector pulls upstream property and status updates.
type Collector interface {
	Collect(ctx context.Context, now time.Time) (collector.Result, error)
}

// Options tune a Scheduler.
type Options struct {
	Location *time.Location
	// Parallelism bounds how many accounts one run processes at once.
	Parallelism int
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Engine    Engine
	Collector Collector
	Notifier  notifier.Notifier

	ctx         context.Context
	log         *zap.Logger
	parallelism int
	now         func() time.Time

	mu sync.Mutex
	// dedicated holds accounts running on their own cycle day.
	dedicated map[string]cron.EntryID
}

// NewScheduler creates a new Scheduler. col may be nil when no upstream
// feed is configured.
func NewScheduler(ctx context.Context, eng Engine, col Collector, n notifier.Notifier, opts Options, log *zap.Logger) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if n == nil {
		n = notifier.Noop{}
	}
	return &Scheduler{
		Cron:        cron.New(cron.WithSeconds(), cron.WithLocation(opts.Location)),
		Engine:      eng,
		Collector:   col,
		Notifier:    n,
		ctx:         ctx,
		log:         log.Named("scheduler"),
		parallelism: opts.Parallelism,
		now:         func() time.Time { return time.Now().In(opts.Location) },
		dedicated:   make(map[string]cron.EntryID),
	}
}

// RegisterAll registers the global weekly and daily jobs plus a dedicated
// weekly job for every account with its own cycle day.
func (s *Scheduler) RegisterAll(weeklyCron, dailyCron string, accounts []model.Account) error {
	if _, err := s.Cron.AddFunc(weeklyCron, func() { s.RunWeeklyNow(s.ctx) }); err != nil {
		return fmt.Errorf("register weekly task: %w", err)
	}
	if _, err := s.Cron.AddFunc(dailyCron, func() { s.RunDailyNow(s.ctx) }); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	for _, a := range accounts {
		if err := s.RegisterAccount(a); err != nil {
			return err
		}
	}
	return nil
}

// RegisterAccount schedules a dedicated weekly cycle for an account with a
// cycle day. Other accounts run with the global weekly job.
func (s *Scheduler) RegisterAccount(a model.Account) error {
	if a.CycleDay == "" {
		return nil
	}
	spec, err := CycleCron(a.CycleDay, a.CycleTime)
	if err != nil {
		return fmt.Errorf("account %s: %w", a.ID, err)
	}
	id := a.ID
	entry, err := s.Cron.AddFunc(spec, func() { s.runAccounts(s.ctx, "account_cycle", []string{id}) })
	if err != nil {
		return fmt.Errorf("register cycle for account %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.dedicated[id]; ok {
		s.Cron.Remove(prev)
	}
	s.dedicated[id] = entry
	s.log.Info("account cycle registered", logger.Account(id), zap.String("cron", spec))
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started", zap.Int("entries", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunWeeklyNow generates a batch for every schedulable account without a
// dedicated cycle.
func (s *Scheduler) RunWeeklyNow(ctx context.Context) []notifier.Outcome {
	accts, err := s.Engine.ListAccounts(ctx)
	if err != nil {
		s.log.Error("list accounts", zap.Error(err))
		metrics.ScheduledRuns.WithLabelValues("weekly", "error").Inc()
		return nil
	}
	s.mu.Lock()
	var ids []string
	for _, a := range accts {
		if _, ok := s.dedicated[a.ID]; ok || !a.Schedulable() {
			continue
		}
		ids = append(ids, a.ID)
	}
	s.mu.Unlock()
	return s.runAccounts(ctx, "weekly", ids)
}

func (s *Scheduler) runAccounts(ctx context.Context, job string, ids []string) []notifier.Outcome {
	s.log.Info("running cycle", zap.String("job", job), zap.Int("accounts", len(ids)))
	outcomes := make([]notifier.Outcome, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, id := range ids {
		g.Go(func() error {
			b, err := s.Engine.GenerateBatch(gctx, id)
			o := notifier.Outcome{AccountID: id, Err: err}
			if err == nil {
				o.Batch = &b
			} else {
				s.log.Warn("cycle failed", logger.Account(id), zap.Error(err))
			}
			outcomes[i] = o
			// Account failures are reported, never propagated.
			return nil
		})
	}
	_ = g.Wait()

	result := "ok"
	for _, o := range outcomes {
		if o.Err != nil {
			result = "partial"
		}
	}
	metrics.ScheduledRuns.WithLabelValues(job, result).Inc()
	if len(outcomes) > 0 {
		s.trySend(ctx, notifier.FormatWeeklySummary(s.now(), outcomes))
	}
	return outcomes
}

// RunDailyNow pulls upstream updates, then refreshes the scores of every
// schedulable account.
func (s *Scheduler) RunDailyNow(ctx context.Context) notifier.DailyReport {
	report := notifier.DailyReport{At: s.now()}
	if s.Collector != nil {
		res, err := s.Collector.Collect(ctx, report.At)
		if err != nil {
			s.log.Error("daily collect", zap.Error(err))
			report.CollectErr = err
		}
		report.Properties, report.Events, report.EventFailures = res.Properties, res.Events, res.Failed
	}

	accts, err := s.Engine.ListAccounts(ctx)
	if err != nil {
		s.log.Error("list accounts", zap.Error(err))
		metrics.ScheduledRuns.WithLabelValues("daily", "error").Inc()
		return report
	}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.parallelism)
	for _, a := range accts {
		if !a.Schedulable() {
			continue
		}
		g.Go(func() error {
			err := s.Engine.RefreshScores(ctx, a.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn("refresh failed", logger.Account(a.ID), zap.Error(err))
				report.Failed = append(report.Failed, notifier.Outcome{AccountID: a.ID, Err: err})
				return nil
			}
			report.Refreshed++
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].AccountID < report.Failed[j].AccountID })

	result := "ok"
	if report.CollectErr != nil || len(report.Failed) > 0 {
		result = "partial"
	}
	metrics.ScheduledRuns.WithLabelValues("daily", result).Inc()
	s.trySend(ctx, notifier.FormatDailySummary(report))
	return report
}

// HandleCommand processes a bot command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch fields[0] {
	case "/accounts":
		accts, err := s.Engine.ListAccounts(ctx)
		if err != nil {
			return "❌ " + err.Error()
		}
		var sb strings.Builder
		for _, a := range accts {
			sb.WriteString(fmt.Sprintf("• %s (%s)\n", a.ID, a.Status))
		}
		if sb.Len() == 0 {
			return "No accounts configured"
		}
		return sb.String()
	case "/batch":
		if arg == "" {
			return notifier.FormatHelp()
		}
		bs, err := s.Engine.ListBatches(ctx, arg)
		if err != nil {
			return "❌ " + err.Error()
		}
		if len(bs) == 0 {
			return "No batches yet for " + arg
		}
		return notifier.FormatBatchReport(bs[0])
	case "/wallet":
		if arg == "" {
			return notifier.FormatHelp()
		}
		w, err := s.Engine.GetWallet(ctx, arg)
		if err != nil {
			return "❌ " + err.Error()
		}
		return notifier.FormatWalletStatus(w)
	case "/generate":
		if arg == "" {
			return notifier.FormatHelp()
		}
		b, err := s.Engine.GenerateBatch(ctx, arg)
		if err != nil {
			return "❌ " + err.Error()
		}
		return notifier.FormatBatchReport(b)
	default:
		return notifier.FormatHelp()
	}
}

// CycleCron builds the seconds-resolution cron spec for a weekly cycle on
// day at hh:mm. An empty time means 08:00.
func CycleCron(day, at string) (string, error) {
	wd, ok := weekdays[strings.ToLower(day)]
	if !ok {
		return "", fmt.Errorf("unknown cycle day %q", day)
	}
	if at == "" {
		at = "08:00"
	}
	t, err := time.Parse("15:04", at)
	if err != nil {
		return "", fmt.Errorf("invalid cycle time %q: %w", at, err)
	}
	return fmt.Sprintf("0 %d %d * * %d", t.Minute(), t.Hour(), wd), nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if err := s.Notifier.Send(ctx, text); err != nil {
		s.log.Error("send notification", zap.Error(err))
	}
}
