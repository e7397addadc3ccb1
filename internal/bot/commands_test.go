package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"sarabot/internal/remind"
	"sarabot/internal/store"
	"sarabot/internal/transport"
	logx "sarabot/pkg/logx"
)

// fakeAdapter satisfies transport.Adapter for command handling tests.
type fakeAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                               { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	return nil, nil
}

func (f *fakeAdapter) last(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatalf("no reply was sent")
	}
	return f.sent[len(f.sent)-1]
}

func newTestRouter(t *testing.T) (*Router, *fakeAdapter, *store.Store, store.User) {
	t.Helper()
	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	u, err := st.GetOrCreateUser(context.Background(), 42, 4242, "eve", "Eve")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	adapter := &fakeAdapter{}
	engine := remind.NewService(remind.Config{SweepInterval: time.Hour, SendRatePerSec: 1000}, st, adapter, nil, logx.Nop())
	r := NewRouter(Config{}, adapter, st, engine, nil, nil, nil, logx.Nop())
	return r, adapter, st, u
}

func seedDelivered(t *testing.T, st *store.Store, userID int64) store.Reminder {
	t.Helper()
	r := store.Reminder{UserID: userID, Description: "feed the cat", DueAt: time.Now().Add(-time.Minute)}
	if err := st.CreateReminder(context.Background(), &r); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := st.MarkDelivered(context.Background(), r.ID); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	return r
}

func TestCommandDone(t *testing.T) {
	router, adapter, st, u := newTestRouter(t)
	rem := seedDelivered(t, st, u.ID)

	router.handleCommand(context.Background(), u, "/done_"+itoa(rem.ID))
	if !strings.Contains(adapter.last(t), "Done") {
		t.Fatalf("unexpected reply: %q", adapter.last(t))
	}

	got, _ := st.GetReminder(context.Background(), rem.ID)
	if got.State != store.StateCompleted {
		t.Fatalf("expected completed, got %s", got.State)
	}
}

func TestCommandCancel(t *testing.T) {
	router, adapter, st, u := newTestRouter(t)
	rem := store.Reminder{UserID: u.ID, Description: "dentist", DueAt: time.Now().Add(time.Hour)}
	if err := st.CreateReminder(context.Background(), &rem); err != nil {
		t.Fatalf("seed: %v", err)
	}

	router.handleCommand(context.Background(), u, "/cancel_"+itoa(rem.ID))
	if !strings.Contains(adapter.last(t), "Cancelled") {
		t.Fatalf("unexpected reply: %q", adapter.last(t))
	}

	got, _ := st.GetReminder(context.Background(), rem.ID)
	if got.State != store.StateCancelled {
		t.Fatalf("expected cancelled, got %s", got.State)
	}
}

func TestCommandDoneRejectsForeignReminder(t *testing.T) {
	router, adapter, st, u := newTestRouter(t)

	other, err := st.GetOrCreateUser(context.Background(), 43, 4343, "mallory", "Mallory")
	if err != nil {
		t.Fatalf("seed other: %v", err)
	}
	rem := seedDelivered(t, st, other.ID)

	router.handleCommand(context.Background(), u, "/done_"+itoa(rem.ID))
	if !strings.Contains(adapter.last(t), "couldn't find") {
		t.Fatalf("foreign reminder must look missing: %q", adapter.last(t))
	}

	got, _ := st.GetReminder(context.Background(), rem.ID)
	if got.State != store.StateDelivered {
		t.Fatalf("foreign reminder must be untouched, got %s", got.State)
	}
}

func TestCommandBadSuffix(t *testing.T) {
	router, adapter, _, u := newTestRouter(t)

	router.handleCommand(context.Background(), u, "/done_banana")
	if !strings.Contains(adapter.last(t), "reminder number") {
		t.Fatalf("unexpected reply: %q", adapter.last(t))
	}
}

func TestCommandUnknown(t *testing.T) {
	router, adapter, _, u := newTestRouter(t)

	router.handleCommand(context.Background(), u, "/frobnicate")
	if !strings.Contains(adapter.last(t), "/help") {
		t.Fatalf("unexpected reply: %q", adapter.last(t))
	}
}

func TestCommandWithBotSuffix(t *testing.T) {
	router, adapter, _, u := newTestRouter(t)

	router.handleCommand(context.Background(), u, "/help@SaraBot")
	if !strings.Contains(adapter.last(t), "What I can do") {
		t.Fatalf("@bot suffix not stripped: %q", adapter.last(t))
	}
}

func TestCommandStatusAndReminders(t *testing.T) {
	router, adapter, st, u := newTestRouter(t)
	seedDelivered(t, st, u.ID)

	router.handleCommand(context.Background(), u, "/reminders")
	if !strings.Contains(adapter.last(t), "feed the cat") {
		t.Fatalf("reminders list missing entry: %q", adapter.last(t))
	}

	router.handleCommand(context.Background(), u, "/status")
	if !strings.Contains(adapter.last(t), "Total: 1") {
		t.Fatalf("status missing counts: %q", adapter.last(t))
	}
}

func TestCommandTimezone(t *testing.T) {
	router, adapter, st, u := newTestRouter(t)

	router.handleCommand(context.Background(), u, "/timezone")
	if !strings.Contains(adapter.last(t), "UTC") {
		t.Fatalf("bare /timezone should show the current zone: %q", adapter.last(t))
	}

	router.handleCommand(context.Background(), u, "/timezone America/Sao_Paulo")
	if !strings.Contains(adapter.last(t), "America/Sao_Paulo") {
		t.Fatalf("unexpected reply: %q", adapter.last(t))
	}
	got, err := st.UserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Timezone != "America/Sao_Paulo" {
		t.Fatalf("timezone not stored: %q", got.Timezone)
	}

	router.handleCommand(context.Background(), u, "/timezone Narnia/Lantern")
	if !strings.Contains(adapter.last(t), "don't know") {
		t.Fatalf("bogus zone should be rejected: %q", adapter.last(t))
	}
	got, _ = st.UserByID(context.Background(), u.ID)
	if got.Timezone != "America/Sao_Paulo" {
		t.Fatalf("bogus zone overwrote the stored one: %q", got.Timezone)
	}
}

func TestCommandStop(t *testing.T) {
	router, adapter, st, u := newTestRouter(t)

	router.handleCommand(context.Background(), u, "/stop")
	if !strings.Contains(adapter.last(t), "paused") {
		t.Fatalf("unexpected reply: %q", adapter.last(t))
	}

	got, err := st.UserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Active {
		t.Fatalf("user still active after /stop")
	}
}

func TestCommandDelete(t *testing.T) {
	router, adapter, st, u := newTestRouter(t)
	rem := seedDelivered(t, st, u.ID)

	router.handleCommand(context.Background(), u, "/delete_"+itoa(rem.ID))
	if !strings.Contains(adapter.last(t), "Deleted") {
		t.Fatalf("unexpected reply: %q", adapter.last(t))
	}

	if _, err := st.GetReminder(context.Background(), rem.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("row should be gone, got %v", err)
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
