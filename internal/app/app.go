// Package app assembles the bot: config, logging, queue store, worker,
// content generators, scheduler, and the control-plane API.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hypexbt/hypexbt/internal/api"
	"github.com/hypexbt/hypexbt/internal/config"
	"github.com/hypexbt/hypexbt/internal/queue"
	"github.com/hypexbt/hypexbt/internal/queue/jobs"
	"github.com/hypexbt/hypexbt/internal/scheduler"
	"github.com/hypexbt/hypexbt/internal/sources"
	"github.com/hypexbt/hypexbt/internal/tweets"
	"github.com/hypexbt/hypexbt/internal/twitter"
	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	log  logx.Logger
	logs *logx.Service

	store   queue.Store
	reg     *queue.Registry
	limiter *queue.RateLimiter
	worker  *queue.Worker

	sched *scheduler.Service
	api   *api.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return config.Validate(c)
	})

	// Queue store: Redis when a URL is configured, in-process otherwise.
	var store queue.Store
	if url := strings.TrimSpace(cfg.Redis.URL); url != "" {
		timeout, _ := config.ParseDurationOrDefault("redis.connect_timeout", cfg.Redis.ConnectTimeout, 5*time.Second)
		rs, err := queue.ConnectRedis(ctx, url, timeout, log.With(logx.String("comp", "queue")))
		if err != nil {
			logSvc.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		store = rs
	} else {
		log.Warn("no redis url configured; jobs will not survive restarts")
		store = queue.NewMemoryStore()
	}

	limits, policies := mapLimits(cfg)
	limiter := queue.NewRateLimiter(limits)

	reg := queue.NewRegistry()
	jobs.RegisterAll(reg, policies, log.With(logx.String("comp", "jobs")))

	clients := queue.NewClients(log.With(logx.String("comp", "clients")), newPosterFactory(cfg, log))
	worker := queue.NewWorker(queue.WorkerConfig{}, store, reg, limiter, clients, log.With(logx.String("comp", "worker")))

	// Market data clients. The read-side twitter client works for both live
	// and dry-run modes; timeline reads don't post anything.
	metaTTL := durationOr("sources.metadata_ttl", cfg.Sources.MetadataTTL, time.Hour)
	eventsTTL := durationOr("sources.events_ttl", cfg.Sources.EventsTTL, time.Hour)

	hl := sources.NewHyperliquid(cfg.Sources.HyperliquidURL, metaTTL, log.With(logx.String("comp", "hyperliquid")))
	cg := sources.NewCoinGecko(cfg.Sources.CoinGeckoURL, log.With(logx.String("comp", "coingecko")))

	reader := twitter.New(twitter.Config{
		AccessToken: cfg.Twitter.AccessToken,
		BearerToken: cfg.Twitter.BearerToken,
		RatePerMin:  cfg.Twitter.RatePerMin,
	}, log.With(logx.String("comp", "twitter")))
	ll := sources.NewLiquidLaunch(reader, cfg.Twitter.LiquidLaunchAccount, eventsTTL, log.With(logx.String("comp", "liquidlaunch")))

	genLog := log.With(logx.String("comp", "tweets"))
	signalGen := tweets.NewTradingSignal(hl, genLog)
	launchGen := tweets.NewTokenLaunch(ll)
	gradGen := tweets.NewTokenGraduation(ll)
	planned := []scheduler.Generator{
		tweets.NewDailyStats(hl),
		signalGen,
		tweets.NewFundamentals(cg, hl, genLog),
		launchGen,
		gradGen,
		tweets.NewNews(reader, cfg.Twitter.HyperliquidAccounts, genLog),
	}

	sched := scheduler.New(mapSchedulerConfig(cfg), store, planned, signalGen, launchGen, gradGen,
		log.With(logx.String("comp", "scheduler")))

	apiSvc := api.New(api.Config{
		Enabled:      cfg.API.Enabled,
		Addr:         cfg.API.Addr,
		ReadTimeout:  durationOr("api.read_timeout", cfg.API.ReadTimeout, 0),
		WriteTimeout: durationOr("api.write_timeout", cfg.API.WriteTimeout, 0),
		IdleTimeout:  durationOr("api.idle_timeout", cfg.API.IdleTimeout, 0),
		Pprof:        cfg.API.Pprof,
	}, store, reg, worker, sched, log.With(logx.String("comp", "api")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		reg:     reg,
		limiter: limiter,
		worker:  worker,
		sched:   sched,
		api:     apiSvc,
	}, nil
}

// newPosterFactory defers the posting-client choice to first use so a
// dry-run process never touches the write credentials.
func newPosterFactory(cfg *config.Config, log logx.Logger) func() (queue.Poster, error) {
	live := cfg.Twitter.Live
	tcfg := twitter.Config{
		AccessToken: cfg.Twitter.AccessToken,
		BearerToken: cfg.Twitter.BearerToken,
		RatePerMin:  cfg.Twitter.RatePerMin,
	}
	return func() (queue.Poster, error) {
		if !live {
			return twitter.NewDryRun(log), nil
		}
		return twitter.New(tcfg, log.With(logx.String("comp", "twitter"))), nil
	}
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.worker.Start(runCtx); err != nil {
		cancel()
		return err
	}
	a.sched.Start(runCtx)
	a.api.Start(runCtx)

	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Error("config watcher exited", logx.Err(err))
		}
	}()

	a.log.Info("app started")
	return nil
}

// reloadLoop applies hot config changes: log sinks, posting limits, and the
// schedule. Store and credential changes need a restart and are only logged.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}

			a.logs.Apply(logx.Config{
				Level:   newCfg.Logging.Level,
				Console: newCfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: newCfg.Logging.File.Enabled,
					Path:    newCfg.Logging.File.Path,
				},
			})

			limits, _ := mapLimits(newCfg)
			a.limiter.SetLimits(limits)

			prevEnabled := a.sched.Enabled()
			a.sched.Apply(mapSchedulerConfig(newCfg))
			if prevEnabled && !newCfg.Schedule.Enabled {
				a.log.Info("scheduler disabled via config")
				stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				a.sched.Stop(stopCtx)
				cancel()
			} else if !prevEnabled && newCfg.Schedule.Enabled {
				a.log.Info("scheduler enabled via config")
				a.sched.Start(ctx)
			}

			for _, s := range sections {
				if s == "redis" || s == "twitter" {
					a.log.Warn("config section needs a restart to take effect", logx.String("section", s))
				}
			}

			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			a.log.Info("config reloaded", fields...)
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel == nil {
		return nil
	}
	a.log.Info("stopping")
	a.cancel()

	// Each step is bounded so one stuck component can't stall the stop.
	step := func(name string, max time.Duration, fn func(context.Context)) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		start := time.Now()
		fn(stepCtx)
		a.log.Debug("stop step done", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("scheduler", 2*time.Second, func(c context.Context) { a.sched.Stop(c) })
	step("worker", 10*time.Second, func(c context.Context) {
		if err := a.worker.Stop(c); err != nil {
			a.log.Warn("worker stop", logx.Err(err))
		}
	})
	step("api", 2*time.Second, func(c context.Context) { a.api.Stop(c) })

	done := make(chan struct{})
	go func() { a.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", logx.Err(err))
	}

	a.log.Info("stopped")
	a.logs.Close()
	return nil
}
