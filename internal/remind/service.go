package remind

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sarabot/internal/eventbus"
	"sarabot/internal/store"
	logx "sarabot/pkg/logx"
)

// Config collects the engine tunables.
type Config struct {
	SweepInterval time.Duration
	GraceWindow   time.Duration

	// PastDueTolerance rejects creations whose due time is further in
	// the past than this. Zero disables the check; past-due reminders
	// are then accepted and fire immediately.
	PastDueTolerance time.Duration

	Workers        int
	QueueSize      int
	SendRatePerSec float64
}

// Service is the reminder engine facade: creation, user actions, and
// the Start/Stop lifecycle of the scheduler and sweeper.
type Service struct {
	cfg   Config
	store *store.Store
	sched *Scheduler
	disp  *Dispatcher
	sweep *Sweeper
	bus   eventbus.Bus
	log   logx.Logger
}

func NewService(cfg Config, st *store.Store, sender Sender, bus eventbus.Bus, log logx.Logger) *Service {
	s := &Service{cfg: cfg, store: st, bus: bus, log: log}
	s.disp = NewDispatcher(DispatcherConfig{SendRatePerSec: cfg.SendRatePerSec}, st, sender, bus, log)
	s.sched = NewScheduler(SchedulerConfig{Workers: cfg.Workers, QueueSize: cfg.QueueSize}, s.DispatchByID, log)
	s.sweep = NewSweeper(SweeperConfig{Interval: cfg.SweepInterval, GraceWindow: cfg.GraceWindow},
		st, s.sched, s.DispatchByID, bus, log)
	return s
}

func (s *Service) Start(ctx context.Context) error {
	if err := s.sched.Start(ctx); err != nil {
		return err
	}
	return s.sweep.Start(ctx)
}

func (s *Service) Stop(ctx context.Context) error {
	serr := s.sweep.Stop(ctx)
	if err := s.sched.Stop(ctx); err != nil {
		return err
	}
	return serr
}

// CreateInput carries a validated creation request.
type CreateInput struct {
	UserID      int64
	Description string
	DueAt       time.Time
	Urgency     store.Urgency
	ShortcutURL string
}

// Create persists the reminder, arms its timer and returns the stored
// row with its id and job handle filled in.
func (s *Service) Create(ctx context.Context, in CreateInput) (store.Reminder, error) {
	if s.cfg.PastDueTolerance > 0 && in.DueAt.Before(time.Now().Add(-s.cfg.PastDueTolerance)) {
		return store.Reminder{}, fmt.Errorf("%w: due time %s is in the past",
			store.ErrValidation, in.DueAt.Format(time.RFC3339))
	}

	r := store.Reminder{
		UserID:      in.UserID,
		Description: in.Description,
		DueAt:       in.DueAt,
		Urgency:     in.Urgency,
		ShortcutURL: in.ShortcutURL,
	}
	if err := s.store.CreateReminder(ctx, &r); err != nil {
		return store.Reminder{}, err
	}

	handle := s.sched.Schedule(r.ID, r.DueAt)
	if handle != "" {
		if err := s.store.SetJobHandle(ctx, r.ID, handle); err != nil && !s.log.IsZero() {
			s.log.Warn("persisting job handle failed", logx.Int64("id", r.ID), logx.Err(err))
		}
		r.JobHandle = handle
	}

	if !s.log.IsZero() {
		s.log.Info("reminder created",
			logx.Int64("id", r.ID), logx.Int64("user_id", r.UserID),
			logx.Time("due_at", r.DueAt), logx.String("urgency", string(r.Urgency)))
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventReminderCreated,
			Time: time.Now(),
			Data: map[string]any{"id": r.ID, "user_id": r.UserID},
		})
	}
	return r, nil
}

// DispatchByID loads a fresh row and delivers it if it is still
// pending. Callers hand it ids that may have been handled or cancelled
// since they were queued.
func (s *Service) DispatchByID(ctx context.Context, id int64) {
	r, err := s.store.GetReminder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		if !s.log.IsZero() {
			s.log.Warn("loading due reminder failed", logx.Int64("id", id), logx.Err(err))
		}
		return
	}
	if r.State != store.StatePending {
		return
	}
	if owner, err := s.store.UserByID(ctx, r.UserID); err == nil && !owner.Active {
		// Deliveries are paused. The row stays pending so the sweeper
		// catches it up once the user is back.
		return
	}
	// Errors leave the row pending; the sweeper retries.
	_ = s.disp.Dispatch(ctx, r)
}

// Complete marks a delivered reminder done.
func (s *Service) Complete(ctx context.Context, id int64) error {
	if err := s.store.MarkCompleted(ctx, id); err != nil {
		return err
	}
	s.sched.Cancel(id)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventReminderCompleted,
			Time: time.Now(),
			Data: map[string]any{"id": id},
		})
	}
	return nil
}

// Cancel marks the reminder cancelled and disarms its timer. The store
// transition goes first: whoever lands the CAS owns the outcome, so a
// delivery racing this call either loses cleanly or already delivered.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	if err := s.store.MarkCancelled(ctx, id); err != nil {
		return err
	}
	s.sched.Cancel(id)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventReminderCancelled,
			Time: time.Now(),
			Data: map[string]any{"id": id},
		})
	}
	return nil
}

// Delete removes the reminder row entirely, disarming any timer first.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.sched.Cancel(id)
	return s.store.DeleteReminder(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (store.Reminder, error) {
	return s.store.GetReminder(ctx, id)
}

func (s *Service) ListActive(ctx context.Context, userID int64) ([]store.Reminder, error) {
	return s.store.ListActive(ctx, userID)
}

func (s *Service) Stats(ctx context.Context, userID int64) (store.Stats, error) {
	return s.store.UserReminderStats(ctx, userID, time.Now())
}

// ScheduledCount reports the number of armed timers, for /status.
func (s *Service) ScheduledCount() int {
	return s.sched.Len()
}
