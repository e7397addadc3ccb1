// Package remind implements the reminder engine: in-memory timers, a
// rate-limited delivery dispatcher, and the recovery sweeper that
// reconciles timers against the store.
package remind

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sarabot/internal/runtime/supervisor"
	logx "sarabot/pkg/logx"
)

// DispatchFunc delivers the reminder with the given store id. It is
// expected to be safe to call with stale or already-handled ids.
type DispatchFunc func(ctx context.Context, id int64)

type jobTimer struct {
	handle string
	t      *time.Timer
}

// Scheduler holds one timer per pending reminder. Fired ids are handed
// to a bounded queue drained by a small worker pool, so a burst of
// simultaneous due times never blocks the timer goroutines.
type Scheduler struct {
	log      logx.Logger
	dispatch DispatchFunc

	mu      sync.Mutex
	timers  map[int64]*jobTimer
	queue   chan int64
	started bool
	stopped bool

	workers int
	sup     *supervisor.Supervisor
	dropped int64
}

type SchedulerConfig struct {
	Workers   int
	QueueSize int
}

func NewScheduler(cfg SchedulerConfig, dispatch DispatchFunc, log logx.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Scheduler{
		log:      log,
		dispatch: dispatch,
		timers:   make(map[int64]*jobTimer),
		queue:    make(chan int64, cfg.QueueSize),
		workers:  cfg.Workers,
	}
}

// newHandle builds a stable identifier for a scheduled job, useful in
// logs and persisted on the reminder row for post-crash inspection.
func newHandle(id int64) string {
	u := uuid.New()
	return fmt.Sprintf("reminder_%s_%d", hex.EncodeToString(u[:4]), id)
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.started = true
	s.mu.Unlock()

	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log))
	for i := 0; i < s.workers; i++ {
		s.sup.Go(fmt.Sprintf("dispatch_worker_%d", i), func(ctx context.Context) error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case id, ok := <-s.queue:
					if !ok {
						return nil
					}
					s.dispatch(ctx, id)
				}
			}
		})
	}
	return nil
}

// Schedule arms a timer for the reminder, replacing any existing one,
// and returns the new job handle. A due time in the past fires
// immediately.
func (s *Scheduler) Schedule(id int64, dueAt time.Time) string {
	handle := newHandle(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ""
	}
	if old, ok := s.timers[id]; ok {
		old.t.Stop()
	}

	delay := time.Until(dueAt)
	if delay < 0 {
		delay = 0
	}
	jt := &jobTimer{handle: handle}
	jt.t = time.AfterFunc(delay, func() { s.fire(id, handle) })
	s.timers[id] = jt
	return handle
}

func (s *Scheduler) fire(id int64, handle string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	// Ignore fires from timers that have since been replaced.
	if cur, ok := s.timers[id]; !ok || cur.handle != handle {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)

	select {
	case s.queue <- id:
		s.mu.Unlock()
	default:
		s.dropped++
		n := s.dropped
		s.mu.Unlock()
		if !s.log.IsZero() {
			s.log.Warn("dispatch queue full; reminder left to sweeper",
				logx.Int64("id", id), logx.Int64("dropped_total", n))
		}
	}
}

// Cancel disarms the reminder's timer if one exists.
func (s *Scheduler) Cancel(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	jt, ok := s.timers[id]
	if !ok {
		return false
	}
	jt.t.Stop()
	delete(s.timers, id)
	return true
}

// Reschedule is Schedule; it exists to make call sites read correctly.
func (s *Scheduler) Reschedule(id int64, dueAt time.Time) string {
	return s.Schedule(id, dueAt)
}

// Has reports whether the reminder currently holds an armed timer.
func (s *Scheduler) Has(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

// Len returns the number of armed timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer and waits for in-flight dispatches to drain
// or the context to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for id, jt := range s.timers {
		jt.t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if s.sup == nil {
		return nil
	}
	s.sup.Cancel()
	return s.sup.Wait(ctx)
}
