package remind

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"sarabot/internal/eventbus"
	"sarabot/internal/store"
	logx "sarabot/pkg/logx"
)

// Sweeper reconciles the in-memory timers against the store. On startup
// it re-arms a timer for every pending reminder; afterwards a periodic
// sweep catches anything the timers missed (crash between fire and
// delivery, dropped queue entries, clock jumps).
type Sweeper struct {
	store *store.Store
	sched *Scheduler
	bus   eventbus.Bus
	log   logx.Logger

	dispatch DispatchFunc
	interval time.Duration
	grace    time.Duration

	cron *cron.Cron
}

type SweeperConfig struct {
	// Interval is how often the periodic sweep runs.
	Interval time.Duration
	// GraceWindow is how overdue a pending reminder must be before the
	// sweep picks it up, leaving freshly-fired timers room to finish.
	GraceWindow time.Duration
}

func NewSweeper(cfg SweeperConfig, st *store.Store, sched *Scheduler, dispatch DispatchFunc, bus eventbus.Bus, log logx.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = time.Minute
	}
	return &Sweeper{
		store:    st,
		sched:    sched,
		bus:      bus,
		log:      log,
		dispatch: dispatch,
		interval: cfg.Interval,
		grace:    cfg.GraceWindow,
	}
}

// Reconcile arms a timer for every pending reminder in the store.
// Past-due reminders get a zero-delay timer, so missed deliveries flow
// through the same dispatch path as on-time ones.
func (w *Sweeper) Reconcile(ctx context.Context) error {
	pending, err := w.store.AllPending(ctx)
	if err != nil {
		return err
	}

	var missed int
	for _, r := range pending {
		if time.Now().After(r.DueAt) {
			missed++
		}
		handle := w.sched.Schedule(r.ID, r.DueAt)
		if handle == "" {
			continue
		}
		if err := w.store.SetJobHandle(ctx, r.ID, handle); err != nil && !w.log.IsZero() {
			w.log.Warn("persisting job handle failed", logx.Int64("id", r.ID), logx.Err(err))
		}
	}

	if !w.log.IsZero() {
		w.log.Info("reminders rescheduled",
			logx.Int("pending", len(pending)), logx.Int("past_due", missed))
	}
	return nil
}

// Start runs the initial reconcile and arms the periodic sweep.
func (w *Sweeper) Start(ctx context.Context) error {
	if err := w.Reconcile(ctx); err != nil {
		return err
	}

	w.cron = cron.New()
	_, err := w.cron.AddFunc("@every "+w.interval.String(), func() {
		sctx, cancel := context.WithTimeout(context.Background(), w.interval/2)
		defer cancel()
		w.sweepOnce(sctx)
	})
	if err != nil {
		return err
	}
	w.cron.Start()
	return nil
}

// sweepOnce dispatches pending reminders overdue past the grace window
// that no armed timer is covering.
func (w *Sweeper) sweepOnce(ctx context.Context) {
	cutoff := time.Now().Add(-w.grace)
	due, err := w.store.DuePending(ctx, cutoff)
	if err != nil {
		if !w.log.IsZero() {
			w.log.Warn("sweep query failed", logx.Err(err))
		}
		return
	}

	var recovered int
	for _, r := range due {
		if w.sched.Has(r.ID) {
			// A timer owns it; cancel the stale timer so we don't race
			// our own recovery dispatch.
			w.sched.Cancel(r.ID)
		}
		recovered++
		w.dispatch(ctx, r.ID)
	}

	if recovered > 0 {
		if !w.log.IsZero() {
			w.log.Info("sweep recovered overdue reminders", logx.Int("count", recovered))
		}
		if w.bus != nil {
			w.bus.Publish(eventbus.Event{
				Type: eventbus.EventSweepRecovered,
				Time: time.Now(),
				Data: map[string]any{"count": recovered},
			})
		}
	}
}

// Stop halts the periodic sweep, waiting for an in-flight run to finish
// or the context to expire.
func (w *Sweeper) Stop(ctx context.Context) error {
	if w.cron == nil {
		return nil
	}
	done := w.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
