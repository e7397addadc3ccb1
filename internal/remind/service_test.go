package remind

import (
	"context"
	"errors"
	"testing"
	"time"

	"sarabot/internal/store"
)

func newTestService(t *testing.T, sender Sender, cfg Config) (*Service, *store.Store, store.User) {
	t.Helper()
	st := newTestStore(t)
	u := seedUser(t, st)
	if cfg.SendRatePerSec == 0 {
		cfg.SendRatePerSec = 1000
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Hour
	}
	svc := NewService(cfg, st, sender, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(func() {
		_ = svc.Stop(context.Background())
		cancel()
	})
	return svc, st, u
}

func TestServiceCreateSchedulesAndDelivers(t *testing.T) {
	sender := &fakeSender{}
	svc, st, u := newTestService(t, sender, Config{})

	r, err := svc.Create(context.Background(), CreateInput{
		UserID:      u.ID,
		Description: "take medicine",
		DueAt:       time.Now().Add(30 * time.Millisecond),
		Urgency:     store.UrgencyHigh,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.JobHandle == "" {
		t.Fatalf("expected a job handle on the created reminder")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := st.GetReminder(context.Background(), r.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.State == store.StateDelivered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("reminder never delivered, state %s", got.State)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if sender.sentCount() != 1 {
		t.Fatalf("expected 1 message, got %d", sender.sentCount())
	}
}

func TestServicePastDueTolerance(t *testing.T) {
	sender := &fakeSender{}
	svc, _, u := newTestService(t, sender, Config{PastDueTolerance: time.Minute})

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:      u.ID,
		Description: "too late",
		DueAt:       time.Now().Add(-time.Hour),
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for far-past due time, got %v", err)
	}

	// Slightly past due is inside the tolerance and accepted.
	if _, err := svc.Create(context.Background(), CreateInput{
		UserID:      u.ID,
		Description: "barely late",
		DueAt:       time.Now().Add(-time.Second),
	}); err != nil {
		t.Fatalf("create within tolerance: %v", err)
	}
}

func TestServiceCancelDisarmsTimer(t *testing.T) {
	sender := &fakeSender{}
	svc, st, u := newTestService(t, sender, Config{})

	r, err := svc.Create(context.Background(), CreateInput{
		UserID:      u.ID,
		Description: "cancel me",
		DueAt:       time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Cancel(context.Background(), r.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if svc.ScheduledCount() != 0 {
		t.Fatalf("expected timer disarmed, %d still armed", svc.ScheduledCount())
	}

	got, _ := st.GetReminder(context.Background(), r.ID)
	if got.State != store.StateCancelled {
		t.Fatalf("expected cancelled, got %s", got.State)
	}

	// Dispatching the stale id afterwards is a no-op.
	svc.DispatchByID(context.Background(), r.ID)
	if sender.sentCount() != 0 {
		t.Fatalf("cancelled reminder must not be sent")
	}
}

func TestServiceCompleteFlow(t *testing.T) {
	sender := &fakeSender{}
	svc, st, u := newTestService(t, sender, Config{})

	r, err := svc.Create(context.Background(), CreateInput{
		UserID:      u.ID,
		Description: "water plants",
		DueAt:       time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Completing before delivery is rejected.
	if err := svc.Complete(context.Background(), r.ID); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	if err := st.MarkDelivered(context.Background(), r.ID); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := svc.Complete(context.Background(), r.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := st.GetReminder(context.Background(), r.ID)
	if got.State != store.StateCompleted {
		t.Fatalf("expected completed, got %s", got.State)
	}
}

func TestServiceDispatchSkipsInactiveUser(t *testing.T) {
	sender := &fakeSender{}
	svc, st, u := newTestService(t, sender, Config{})

	r := store.Reminder{UserID: u.ID, Description: "while away", DueAt: time.Now().Add(-time.Minute)}
	if err := st.CreateReminder(context.Background(), &r); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.DeactivateUser(context.Background(), u.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	svc.DispatchByID(context.Background(), r.ID)
	if sender.sentCount() != 0 {
		t.Fatalf("paused user must not receive messages")
	}
	got, _ := st.GetReminder(context.Background(), r.ID)
	if got.State != store.StatePending {
		t.Fatalf("row must stay pending for the sweeper, got %s", got.State)
	}

	// Reactivation lets the same dispatch go through.
	if _, err := st.GetOrCreateUser(context.Background(), u.TelegramID, u.ChatID, u.Username, u.FirstName); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	svc.DispatchByID(context.Background(), r.ID)
	if sender.sentCount() != 1 {
		t.Fatalf("expected delivery after reactivation, got %d", sender.sentCount())
	}
}

func TestServiceDeleteRemovesRowAndTimer(t *testing.T) {
	sender := &fakeSender{}
	svc, st, u := newTestService(t, sender, Config{})

	r, err := svc.Create(context.Background(), CreateInput{
		UserID:      u.ID,
		Description: "delete me",
		DueAt:       time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(context.Background(), r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if svc.ScheduledCount() != 0 {
		t.Fatalf("expected timer disarmed after delete")
	}
	if _, err := st.GetReminder(context.Background(), r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected row gone, got %v", err)
	}
}
