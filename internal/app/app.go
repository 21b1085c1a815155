// Package app wires configuration, logging, storage, sources, and the
// monitor into one runnable daemon.
package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"resaleradar/internal/config"
	"resaleradar/internal/eventbus"
	"resaleradar/internal/monitor"
	"resaleradar/internal/notifier"
	"resaleradar/internal/runtime/sdnotify"
	"resaleradar/internal/runtime/supervisor"
	"resaleradar/internal/seenstore"
	"resaleradar/internal/source"
	kit "resaleradar/internal/transport"
	"resaleradar/internal/transport/telegram"
	logx "resaleradar/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store    seenstore.Store
	adapter  kit.Adapter
	registry *source.Registry

	notif *notifier.Service
	mon   *monitor.Service
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := mapMonitorConfig(cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{Token: cfg.ResolveToken()}, bootLog)
	if err != nil {
		return nil, err
	}

	// logx.New applies immediately; bootstrap with the Telegram sink off, set
	// the target, then Apply the real config so the first Apply can't warn
	// about a missing chat.
	baseLogCfg := mapLoggingConfig(cfg)
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	logSvc.SetTelegramTarget(kit.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID})
	logSvc.Apply(mapLoggingConfig(cfg))

	bus := eventbus.New()

	store, err := seenstore.Open(mapStoreConfig(cfg), log.With(logx.String("comp", "seenstore")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	registry := source.NewRegistry()

	notifSvc, err := notifier.New(ad, mapNotifierConfig(cfg), log.With(logx.String("comp", "notifier")))
	if err != nil {
		_ = store.Close()
		logSvc.Close()
		return nil, err
	}

	monSvc := monitor.New(registry, store, notifSvc, bus, log.With(logx.String("comp", "monitor")))
	mcfg, _ := mapMonitorConfig(cfg)
	monSvc.Apply(mcfg)
	monSvc.SetRetention(mapRetention(cfg))

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		adapter:  ad,
		registry: registry,
		notif:    notifSvc,
		mon:      monSvc,
	}, nil
}

// Sources exposes the adapter registry so main can register sources before
// Start, the same way new sites are added to the config.
func (a *App) Sources() *source.Registry { return a.registry }

// Monitor exposes the monitor service (manual trigger, history).
func (a *App) Monitor() *monitor.Service { return a.mon }

// Log returns the root app logger, for deriving component loggers in main.
func (a *App) Log() logx.Logger { return a.log }

// Done is closed when the app supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(false),
	)

	// Transactional reload: a config revision is committed and published only
	// after it validates, so a broken edit never reaches running services.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		_ = c
		if err := cfg.Validate(); err != nil {
			return err
		}
		if _, err := mapMonitorConfig(cfg); err != nil {
			return err
		}
		for name := range cfg.Monitor.Sources {
			if _, ok := a.registry.Get(name); !ok {
				return fmt.Errorf("monitor.sources.%s: no such source adapter (have: %s)",
					name, strings.Join(a.registry.Names(), ", "))
			}
		}
		return nil
	})

	// Initial config was loaded before adapters were registered; verify the
	// source names now.
	cfg := a.cfgm.Get()
	for name, sc := range cfg.Monitor.Sources {
		if _, ok := a.registry.Get(name); !ok && sc.Enabled {
			return fmt.Errorf("monitor.sources.%s: no such source adapter (have: %s)",
				name, strings.Join(a.registry.Names(), ", "))
		}
	}

	a.sup.GoRestart("monitor", a.mon.Run)
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		sdnotify.Watchdog(c, a.log.With(logx.String("comp", "sdnotify")))
	})

	// Debug visibility into bus traffic.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// Config hot reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest revision.
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
				a.applyReload(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.log.Info("app started", logx.String("sources", strings.Join(a.registry.Names(), ",")))
	return nil
}

func (a *App) applyReload(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.log.Debug("config change summary",
		append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	for _, s := range sections {
		if s == "storage" {
			a.log.Warn("storage config changed; restart required for driver/path changes")
			break
		}
	}

	// Log target first so a Telegram-sink enable can't race an empty target.
	a.logs.SetTelegramTarget(kit.ChatTarget{ChatID: newCfg.Telegram.ChatID, ThreadID: newCfg.Telegram.ThreadID})
	a.logs.Apply(mapLoggingConfig(newCfg))

	a.notif.Apply(mapNotifierConfig(newCfg))

	if mcfg, err := mapMonitorConfig(newCfg); err != nil {
		a.log.Warn("invalid monitor config; keeping previous", logx.Err(err))
	} else {
		a.mon.Apply(mcfg)
	}
	a.mon.SetRetention(mapRetention(newCfg))

	a.log.Info("config reloaded",
		append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	sdnotify.Stopping(a.log)

	// Cancel the run context first so loops start unwinding immediately.
	a.sup.Cancel()

	// Run each shutdown step with an upper bound so one component can't
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem > 0 && rem < max {
					max = rem
				}
			}
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("monitor", 3*time.Second, a.mon.Drain)
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("storage", 1*time.Second, func(context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

// ---- config mapping ----

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapNotifierConfig(cfg *config.Config) notifier.Config {
	rps := 1
	if cfg.Notifier != nil && cfg.Notifier.RatePerSec > 0 {
		rps = cfg.Notifier.RatePerSec
	}
	return notifier.Config{
		Target:     kit.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID},
		RatePerSec: rps,
	}
}

func mapStoreConfig(cfg *config.Config) seenstore.Config {
	out := seenstore.Config{Driver: "file", Path: "./radar_store"}
	if s := cfg.Storage; s != nil {
		if d := strings.TrimSpace(s.Driver); d != "" {
			out.Driver = d
		}
		if p := strings.TrimSpace(s.Path); p != "" {
			out.Path = p
		}
		// Validated in config.Validate; a parse failure here keeps the default.
		if bt, err := config.ParseDurationField("storage.busy_timeout", s.BusyTimeout); err == nil {
			out.BusyTimeout = bt
		}
	}
	return out
}

func mapRetention(cfg *config.Config) time.Duration {
	if cfg.Storage == nil {
		return 0
	}
	d, err := config.ParseDurationField("storage.retention", cfg.Storage.Retention)
	if err != nil {
		return 0
	}
	return d
}

func mapMonitorConfig(cfg *config.Config) (monitor.Config, error) {
	reqIv, err := config.ParseDurationOrDefault("monitor.request_interval", cfg.Monitor.RequestInterval, monitor.DefaultRequestInterval)
	if err != nil {
		return monitor.Config{}, err
	}

	schedule := strings.TrimSpace(cfg.Monitor.Schedule)
	if schedule == "" {
		schedule = monitor.DefaultSchedule
	}
	if _, err := monitor.ParseSchedule(schedule); err != nil {
		return monitor.Config{}, fmt.Errorf("monitor.schedule: %w", err)
	}

	names := make([]string, 0, len(cfg.Monitor.Sources))
	for name, sc := range cfg.Monitor.Sources {
		if sc.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	jobs := make([]monitor.SourceJob, 0, len(names))
	for _, name := range names {
		sc := cfg.Monitor.Sources[name]
		jobs = append(jobs, monitor.SourceJob{
			Name:           name,
			Keywords:       sc.Keywords,
			MinPrice:       sc.MinPrice,
			SeedOnFirstRun: sc.SeedOnFirstRun,
		})
	}

	return monitor.Config{
		Enabled:         cfg.Monitor.Enabled,
		Schedule:        schedule,
		RequestInterval: reqIv,
		HistorySize:     cfg.Monitor.HistorySize,
		Timezone:        cfg.Monitor.Timezone,
		Sources:         jobs,
	}, nil
}
