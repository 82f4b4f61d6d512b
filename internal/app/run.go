package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cheaphours/internal/messaging"
	"cheaphours/internal/metrics"
	"cheaphours/internal/scheduler"
	"cheaphours/internal/service"
)

// Run executes the long-running refresh loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.Metrics == nil {
		m, err := metrics.New(nil)
		if err != nil {
			return err
		}
		a.Metrics = m
	}
	if listen := a.Config.Metrics.Listen; listen != "" {
		stop := a.serveMetrics(listen)
		defer stop()
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	a.Metrics.SetStoreSize(store.Len())

	sources, closeSources, err := a.newSources(ctx)
	if err != nil {
		return err
	}
	defer closeSources()

	targets, err := a.newTargets()
	if err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		Immediate:    true,
	}, a.Logger)
	if err != nil {
		return err
	}

	svc := a.newService(store)
	sender := &changeSender{app: a, svc: svc, targets: targets}

	a.Logger.Info().Strs("sources", sources.Names()).Strs("targets", targets.Names()).Msg("starting refresh loop")
	err = sched.Run(ctx, func(ctx context.Context, slot time.Time) error {
		refreshErr := a.refresh(ctx, svc, sources)
		if a.Config.Scheduler.Send {
			return errors.Join(refreshErr, sender.send(ctx, a.now()))
		}
		return refreshErr
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("refresh loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("refresh loop stopped")
	return nil
}

// changeSender pushes the cheapest hours to each target only when they
// differ from what that target last accepted, so devices do not collect
// duplicate jobs. A target that failed is retried on the next refresh.
type changeSender struct {
	app     *App
	svc     *service.Service
	targets *messaging.Registry
	// sent maps a target name to the selection it last accepted.
	sent map[string]string
}

func (s *changeSender) send(ctx context.Context, now time.Time) error {
	order, err := service.ParseOrder(s.app.Config.Cheapest.Order)
	if err != nil {
		return err
	}
	sel := s.svc.FindCheapestHours(now, s.app.Config.Cheapest.Hours, order)
	if sel.Len() == 0 {
		return nil
	}

	key := sel.String()
	var pending []string
	for _, name := range s.app.Config.Scheduler.Targets {
		if s.sent[name] != key {
			pending = append(pending, name)
		}
	}
	if len(pending) == 0 {
		s.app.Logger.Debug().Str("ranges", key).Msg("selection unchanged; not sending")
		return nil
	}

	statuses, err := s.targets.SendAll(ctx, sel, pending...)
	if s.sent == nil {
		s.sent = make(map[string]string)
	}
	for _, st := range statuses {
		if st.OK {
			s.sent[st.Target] = key
		}
	}
	return err
}

func (a *App) serveMetrics(listen string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.Logger.Info().Str("listen", listen).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
