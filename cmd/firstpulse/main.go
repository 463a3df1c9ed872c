package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/api"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/cadence"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/catalog"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/collector"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/config"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/engine"
	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/lock"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/logger"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/notifier"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/scheduler"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/skiptrace"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("firstpulse stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("FirstPulse starting")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	locker, closeLocker, err := newLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLocker()

	var tracer skiptrace.Provider = skiptrace.Disabled{}
	if cfg.SkipTrace.BaseURL != "" {
		p := skiptrace.NewHTTPProvider(cfg.SkipTrace.BaseURL, cfg.SkipTrace.APIKey, cfg.Proxy, cfg.SkipTrace.Timeout)
		p.BatchSize = cfg.SkipTrace.BatchSize
		tracer = p
	}
	log.Info("skip-trace provider", zap.String("provider", tracer.Name()))

	eng := engine.New(st, cat, engineOptions(cfg),
		engine.WithLocker(locker),
		engine.WithTracer(tracer),
		engine.WithLogger(log.Named("engine")),
	)
	if err := seedAccounts(ctx, eng, cfg); err != nil {
		return err
	}

	var col scheduler.Collector
	if cfg.Collector.BaseURL != "" {
		col = collector.NewCollector(collector.NewHTTPFetcher(cfg.Collector.BaseURL, cfg.Collector.APIKey, cfg.Proxy), eng, log.Named("collector"))
	}

	var (
		n  notifier.Notifier = notifier.Noop{}
		tn *notifier.TelegramNotifier
	)
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		n = notifier.Retrying{TelegramNotifier: tn, MaxRetries: 3}
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	sched := scheduler.NewScheduler(ctx, eng, col, n, scheduler.Options{
		Location:    loc,
		Parallelism: cfg.Schedule.Parallelism,
	}, log)
	accts, err := eng.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	if err := sched.RegisterAll(cfg.Schedule.WeeklyCron, cfg.Schedule.DailyCron, accts); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info("RUN_ON_START enabled, running weekly cycle now")
		go sched.RunWeeklyNow(ctx)
	}

	srv := api.NewServer(cfg.HTTP.Addr, api.NewRouter(eng, sched, log), log)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	log.Info("FirstPulse is running")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	log.Info("FirstPulse stopped")
	return nil
}

func openStore(cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case "memory":
		if cfg.Database.SnapshotPath == "" {
			log.Warn("memory store without snapshot, state is lost on exit")
			return store.NewMemoryStore(), nil
		}
		return store.OpenMemoryStore(cfg.Database.SnapshotPath)
	default:
		return store.OpenSQLite(cfg.Database.SQLitePath, log.Named("store"))
	}
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	signals := append([]model.Signal(nil), catalog.Defaults...)
	if cfg.SignalsFile != "" {
		fromFile, err := catalog.LoadFile(cfg.SignalsFile)
		if err != nil {
			return nil, err
		}
		signals = mergeSignals(signals, fromFile)
	}
	signals = mergeSignals(signals, cfg.Signals)
	return catalog.New(signals)
}

// mergeSignals overrides base rows by key and appends new keys.
func mergeSignals(base, over []model.Signal) []model.Signal {
	idx := make(map[string]int, len(base))
	for i, s := range base {
		idx[s.Key] = i
	}
	for _, s := range over {
		if i, ok := idx[s.Key]; ok {
			base[i] = s
			continue
		}
		idx[s.Key] = len(base)
		base = append(base, s)
	}
	return base
}

func newLocker(ctx context.Context, cfg *config.Config, log *zap.Logger) (lock.Locker, func(), error) {
	if cfg.Redis.Addr == "" {
		return lock.NewKeyedMutex(), func() {}, nil
	}
	client := lock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := lock.Ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	log.Info("redis locker enabled", zap.String("addr", cfg.Redis.Addr))
	l := lock.NewRedisLocker(client, lock.RedisOptions{TTL: cfg.Redis.LockTTL}, log.Named("lock"))
	return l, func() { _ = client.Close() }, nil
}

func engineOptions(cfg *config.Config) engine.Options {
	d := cfg.Defaults
	return engine.Options{
		Policy: cadence.Policy{
			Cadence:        d.Cadence,
			CooldownMonths: d.CooldownMonths,
			ScoreFloor:     d.ScoreFloor,
		},
		SkipTraceRate:   d.Rate(),
		FreshnessMonths: d.FreshnessMonths,
		WeeklyCapacity:  d.WeeklyCapacity,
		LockWait:        d.LockWait,
	}
}

// seedAccounts creates configured accounts that do not exist yet. Stored
// accounts win over the file.
func seedAccounts(ctx context.Context, eng *engine.Engine, cfg *config.Config) error {
	for _, ac := range cfg.Accounts {
		acct := ac.ToAccount()
		_, err := eng.GetAccount(ctx, acct.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		if err := eng.UpsertAccount(ctx, acct); err != nil {
			return fmt.Errorf("seed account %s: %w", acct.ID, err)
		}
	}
	return nil
}
