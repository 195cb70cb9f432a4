package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"workflow/internal/api"
	"workflow/internal/chat"
	"workflow/internal/classroom"
	"workflow/internal/config"
	"workflow/internal/eventbus"
	"workflow/internal/httpx"
	"workflow/internal/notifier"
	"workflow/internal/push"
	"workflow/internal/registry"
	"workflow/internal/runtime/supervisor"
	"workflow/internal/storage"
	"workflow/internal/task/scheduler"
	logx "workflow/pkg/logx"
	"workflow/pkg/systemd"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	reg   *registry.Registry

	notif *notifier.Service
	sched *scheduler.Service
	http  api.Server
	sd    systemd.Notifier

	jobs            jobSettings
	shutdownTimeout time.Duration
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	a, err := build(cfgm, cfg, logSvc, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	a.cfgPath = cfgPath
	return a, nil
}

// build wires every component from an already validated config.
func build(cfgm *config.ConfigManager, cfg *config.Config, logSvc *logx.Service, log logx.Logger) (_ *App, err error) {
	srv, err := mapServerConfig(cfg)
	if err != nil {
		return nil, err
	}
	jobs, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	pol, loc, err := mapPolicy(cfg)
	if err != nil {
		return nil, err
	}
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	gs, err := mapGoogleConfig(cfg, loc)
	if err != nil {
		return nil, err
	}
	cc, err := mapChatConfig(cfg)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = store.Close()
		}
	}()
	log.Info("storage opened", logx.String("driver", sc.Driver))

	reg, err := registry.Open(context.Background(), store,
		registry.WithLogger(log.With(logx.String("comp", "registry"))),
		registry.WithBus(bus),
	)
	if err != nil {
		return nil, err
	}

	pushLog := log.With(logx.String("comp", "push"))
	keys, err := push.LoadOrCreateKeys(cfg.Push.KeysPath, pushLog)
	if err != nil {
		return nil, err
	}
	pc, err := mapPushConfig(cfg, keys)
	if err != nil {
		return nil, err
	}
	dispatcher := push.NewDispatcher(pc, httpx.NewClient(pc.Timeout, nil, pushLog))

	googleLog := log.With(logx.String("comp", "google"))
	auth := classroom.NewAuth(gs.auth, httpx.NewClient(gs.timeout, gs.limiter, googleLog))
	fetcher := classroom.NewFetcher(gs.fetch, httpx.NewRetryTransport(nil, gs.limiter, googleLog), googleLog)

	nopts := []notifier.Option{
		notifier.WithLogger(log.With(logx.String("comp", "notifier"))),
		notifier.WithBus(bus),
	}
	if auth.Configured() {
		nopts = append(nopts, notifier.WithClassroom(auth, fetcher))
	} else {
		log.Warn("google client not configured; reminders use assignments sent by the web client only")
	}
	notif := notifier.New(ncfg, reg, pol, dispatcher, nopts...)

	chatLog := log.With(logx.String("comp", "chat"))
	relay := chat.NewRelay(cc, httpx.NewClient(cc.Timeout, nil, chatLog))
	if !relay.Configured() {
		log.Info("chat relay disabled (no api key)")
	}

	sched := scheduler.New(scheduler.Config{Timezone: jobs.timezone}, log.With(logx.String("comp", "scheduler")))

	httpSrv := api.NewServer(api.Options{
		Addr:         srv.addr,
		StaticDir:    strings.TrimSpace(cfg.Server.StaticDir),
		Pprof:        cfg.Server.Pprof,
		BodyLimit:    strings.TrimSpace(cfg.Server.BodyLimit),
		ReadTimeout:  srv.readTimeout,
		WriteTimeout: srv.writeTimeout,
		Registry:     reg,
		Keys:         dispatcher,
		Google:       auth,
		Chat:         relay,
		Schedules:    func() []scheduler.ScheduleInfo { return sched.Snapshot().Schedules },
		Stats:        notif.Stats,
		Logger:       log.With(logx.String("comp", "http")),
	})

	return &App{
		cfgm:            cfgm,
		log:             log,
		logs:            logSvc,
		bus:             bus,
		store:           store,
		reg:             reg,
		notif:           notif,
		sched:           sched,
		http:            httpSrv,
		sd:              systemd.New(log.With(logx.String("comp", "systemd"))),
		jobs:            jobs,
		shutdownTimeout: srv.shutdownTimeout,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Handler exposes the HTTP API without a listener.
func (a *App) Handler() api.Server { return a.http }

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: reject what the running app could not apply
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, _, err := mapPolicy(cfg); err != nil {
			return err
		}
		if _, err := mapNotifierConfig(cfg); err != nil {
			return err
		}
		_, err := mapSchedulerConfig(cfg)
		return err
	})

	if err := a.addJobs(); err != nil {
		return err
	}
	a.sched.Start(a.sup.Context())
	if a.jobs.runOnStart {
		if err := a.sched.RunNow(jobPoll); err != nil {
			a.log.Warn("initial poll not started", logx.Err(err))
		}
	}

	a.sup.GoRestart("http", a.serveHTTP, supervisor.WithRestartBackoff(time.Second, 30*time.Second))

	if a.bus != nil {
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
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
				}
			}
		})
	}

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
				// Coalesce bursts: keep only the latest config in the channel.
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
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.sup.Go("systemd.watchdog", a.sd.Watchdog)

	a.sd.Ready()
	a.sd.Status(fmt.Sprintf("serving %d registrations", a.reg.Len()))
	a.log.Info("app started",
		logx.Int("registrations", a.reg.Len()),
		logx.String("poll", a.jobs.poll),
		logx.String("drain", a.jobs.drain),
	)
	return nil
}

func (a *App) addJobs() error {
	if err := a.sched.Add(jobPoll, a.jobs.poll, pollJobTimeout, func(ctx context.Context) error {
		a.notif.Poll(ctx)
		return ctx.Err()
	}); err != nil {
		return fmt.Errorf("scheduler.poll: %w", err)
	}
	if err := a.sched.Add(jobDrain, a.jobs.drain, drainJobTimeout, func(ctx context.Context) error {
		a.notif.Drain(ctx)
		return ctx.Err()
	}); err != nil {
		return fmt.Errorf("scheduler.drain: %w", err)
	}
	return nil
}

// serveHTTP runs the listener until it fails or c ends, then shuts it down gracefully.
func (a *App) serveHTTP(c context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.http.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-c.Done():
		sctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		if err := a.http.Stop(sctx); err != nil {
			a.log.Warn("http shutdown", logx.Err(err))
		}
		select {
		case <-errCh:
		case <-sctx.Done():
		}
		return nil
	}
}

// applyConfig pushes the hot-reloadable sections into the running components.
func (a *App) applyConfig(prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	if rr := config.RestartRequired(sections); len(rr) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(rr, ",")))
	}

	a.logs.Apply(mapLoggingConfig(next))

	if ncfg, err := mapNotifierConfig(next); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}
	if pol, _, err := mapPolicy(next); err != nil {
		a.log.Warn("invalid reminder policy; keeping previous", logx.Err(err))
	} else {
		a.notif.SetPolicy(pol)
	}

	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	// Cancel the run context first so background loops start unwinding immediately.
	a.sup.Cancel()

	a.step(ctx, "scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "supervisor", a.shutdownTimeout+time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	a.step(ctx, "storage", 2*time.Second, func(c context.Context) error { return a.store.Close() })

	a.log.Info("stopped", logx.Any("persist_failures", a.reg.PersistFailures()))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step with an upper bound so one component can't stall the whole stop.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

	stepCtx := ctx
	if max > 0 {
		// respect the caller's deadline; never extend it
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			max = time.Millisecond
		}
		var cancel context.CancelFunc
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
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		// fn must honor stepCtx; report the leak if it doesn't.
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
		go func() {
			err := <-done
			took := time.Since(start)
			if err != nil {
				a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
			} else {
				a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
			}
		}()
	}
}
