// Package app wires the bot together: config, logging, storage, the
// reminder engine, the assistant and the chat router.
package app

import (
	"context"
	"fmt"
	"time"

	"sarabot/internal/assist"
	"sarabot/internal/bot"
	"sarabot/internal/config"
	"sarabot/internal/eventbus"
	"sarabot/internal/observe"
	"sarabot/internal/remind"
	"sarabot/internal/runtime/supervisor"
	"sarabot/internal/shortcut"
	"sarabot/internal/store"
	"sarabot/internal/transport/telegram"
	logx "sarabot/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	adapter *telegram.Adapter
	store   *store.Store
	bus     eventbus.Bus
	engine  *remind.Service
	router  *bot.Router
	observe *observe.Service

	sup *supervisor.Supervisor
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logxConfig(cfg.Logging), nil)
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	logSvc.SetSender(adapter)
	if cfg.Telegram.LogChatID != 0 {
		logSvc.SetTelegramTarget(cfg.Telegram.LogChatID)
	}

	busyTimeout, err := config.ParseDurationOrDefault("database.busy_timeout", cfg.Database.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	assistant, err := assist.NewClient(assist.ClientConfig{
		APIKey:       cfg.Assistant.APIKey,
		BaseURL:      cfg.Assistant.BaseURL,
		ChatModel:    cfg.Assistant.ChatModel,
		WhisperModel: cfg.Assistant.WhisperModel,
	}, log.With(logx.String("comp", "assist")))
	if err != nil {
		return nil, fmt.Errorf("assistant client: %w", err)
	}

	engineCfg, err := engineConfig(cfg.Engine)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	engine := remind.NewService(engineCfg, st, adapter, bus, log.With(logx.String("comp", "remind")))

	router := bot.NewRouter(bot.Config{
		Workers:      cfg.Engine.Workers,
		QueueSize:    cfg.Engine.QueueSize,
		HistoryLimit: cfg.Assistant.HistoryLimit,
		DefaultTZ:    cfg.Engine.DefaultTimezone,
	}, adapter, st, engine, assistant, assistant,
		shortcut.NewBuilder(cfg.Assistant.ShortcutName),
		log.With(logx.String("comp", "bot")))

	obs := observe.New(observe.Config{
		Enabled: cfg.Pprof.Enabled,
		Addr:    cfg.Pprof.Addr,
		Token:   cfg.Pprof.Token,
	}, log.With(logx.String("comp", "observe")))

	return &App{
		cfgMgr:  mgr,
		logSvc:  logSvc,
		log:     log,
		adapter: adapter,
		store:   st,
		bus:     bus,
		engine:  engine,
		router:  router,
		observe: obs,
	}, nil
}

func engineConfig(c config.EngineConfig) (remind.Config, error) {
	sweep, err := config.ParseDurationOrDefault("engine.sweep_interval", c.SweepInterval, 5*time.Minute)
	if err != nil {
		return remind.Config{}, err
	}
	grace, err := config.ParseDurationOrDefault("engine.grace_window", c.GraceWindow, time.Minute)
	if err != nil {
		return remind.Config{}, err
	}
	tolerance, err := config.ParseDurationField("engine.past_due_tolerance", c.PastDueTolerance)
	if err != nil {
		return remind.Config{}, err
	}
	return remind.Config{
		SweepInterval:    sweep,
		GraceWindow:      grace,
		PastDueTolerance: tolerance,
		Workers:          c.Workers,
		QueueSize:        c.QueueSize,
		SendRatePerSec:   float64(c.SendRatePerSec),
	}, nil
}

func logxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    c.Telegram.Enabled,
			MinLevel:   c.Telegram.MinLevel,
			RatePerSec: c.Telegram.RatePerSec,
		},
	}
}

func (a *App) Start(ctx context.Context) error {
	// Router first so the adapter is polling before due reminders fire.
	if err := a.router.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}
	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	if err := a.observe.Start(ctx); err != nil {
		a.log.Warn("observe start failed", logx.Err(err))
	}

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))
	a.sup.Go("config.watch", a.cfgMgr.Watch)

	updates := a.cfgMgr.Subscribe(1)
	a.sup.Go0("config.reload", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-updates:
				if !ok || cfg == nil {
					return
				}
				a.applyReload(cfg)
			}
		}
	})

	a.log.Info("sarabot started")
	return nil
}

// applyReload applies the hot-reloadable slice of a config: logging
// sinks and the log mirror target. Everything else needs a restart.
func (a *App) applyReload(cfg *config.Config) {
	a.logSvc.Apply(logxConfig(cfg.Logging))
	a.logSvc.SetTelegramTarget(cfg.Telegram.LogChatID)
	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup != nil {
		a.sup.Cancel()
		_ = a.sup.Wait(ctx)
	}

	// Engine stops before the router so in-flight deliveries still have
	// a live adapter underneath them.
	if err := a.engine.Stop(ctx); err != nil {
		a.log.Warn("engine stop", logx.Err(err))
	}
	if err := a.router.Stop(ctx); err != nil {
		a.log.Warn("router stop", logx.Err(err))
	}
	if err := a.observe.Stop(ctx); err != nil {
		a.log.Warn("observe stop", logx.Err(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", logx.Err(err))
	}
	a.log.Info("sarabot stopped")
	return a.logSvc.Close()
}
