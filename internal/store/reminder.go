package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "sarabot/pkg/logx"
)

const reminderCols = `r.id, r.user_id, u.chat_id, r.description, r.due_at, r.urgency, r.state,
	COALESCE(r.job_handle, ''), COALESCE(r.shortcut_url, ''), r.created_at, r.updated_at`

func scanReminder(row interface{ Scan(...any) error }) (Reminder, error) {
	var (
		r       Reminder
		dueMS   int64
		created string
		updated string
	)
	err := row.Scan(&r.ID, &r.UserID, &r.ChatID, &r.Description, &dueMS, &r.Urgency, &r.State,
		&r.JobHandle, &r.ShortcutURL, &created, &updated)
	if err != nil {
		return Reminder{}, err
	}
	r.DueAt = time.UnixMilli(dueMS).UTC()
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return r, nil
}

// CreateReminder inserts a new pending reminder and fills in its ID and
// timestamps. Validation failures wrap ErrValidation.
func (s *Store) CreateReminder(ctx context.Context, r *Reminder) error {
	if r == nil {
		return fmt.Errorf("%w: nil reminder", ErrValidation)
	}
	if r.UserID <= 0 {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if r.DueAt.IsZero() {
		return fmt.Errorf("%w: due time is required", ErrValidation)
	}
	if r.Urgency == "" {
		r.Urgency = UrgencyMedium
	}
	if !r.Urgency.Valid() {
		return fmt.Errorf("%w: unknown urgency %q", ErrValidation, r.Urgency)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(user_id, description, due_at, urgency, state, job_handle, shortcut_url, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		r.UserID, r.Description, r.DueAt.UnixMilli(), string(r.Urgency), string(StatePending),
		nullStr(r.JobHandle), nullStr(r.ShortcutURL), fmtTime(now), fmtTime(now),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	r.State = StatePending
	r.DueAt = r.DueAt.UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

func (s *Store) GetReminder(ctx context.Context, id int64) (Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reminderCols+` FROM reminders r JOIN users u ON u.id = r.user_id WHERE r.id = ?`, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Reminder{}, ErrNotFound
	}
	return r, err
}

// ListActive returns a user's pending and delivered reminders ordered by
// due time.
func (s *Store) ListActive(ctx context.Context, userID int64) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderCols+` FROM reminders r JOIN users u ON u.id = r.user_id
		 WHERE r.user_id = ? AND r.state IN (?, ?)
		 ORDER BY r.due_at ASC, r.id ASC`,
		userID, string(StatePending), string(StateDelivered))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

// ListPending returns a user's pending reminders ordered by due time.
func (s *Store) ListPending(ctx context.Context, userID int64) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderCols+` FROM reminders r JOIN users u ON u.id = r.user_id
		 WHERE r.user_id = ? AND r.state = ?
		 ORDER BY r.due_at ASC, r.id ASC`,
		userID, string(StatePending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

// DuePending returns pending reminders whose due time is at or before
// cutoff, oldest first. The sweeper uses this to find missed deliveries.
func (s *Store) DuePending(ctx context.Context, cutoff time.Time) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderCols+` FROM reminders r JOIN users u ON u.id = r.user_id
		 WHERE r.state = ? AND r.due_at <= ?
		 ORDER BY r.due_at ASC, r.id ASC`,
		string(StatePending), cutoff.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

// AllPending returns every pending reminder regardless of due time, for
// startup rescheduling.
func (s *Store) AllPending(ctx context.Context) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderCols+` FROM reminders r JOIN users u ON u.id = r.user_id
		 WHERE r.state = ?
		 ORDER BY r.due_at ASC, r.id ASC`,
		string(StatePending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

func collectReminders(rows *sql.Rows) ([]Reminder, error) {
	var out []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkDelivered transitions pending -> delivered. If the reminder is
// already delivered or completed it returns ErrAlreadyDelivered so the
// caller can treat a duplicate firing as success.
func (s *Store) MarkDelivered(ctx context.Context, id int64) error {
	err := s.transition(ctx, id, []State{StatePending}, StateDelivered)
	if errors.Is(err, ErrInvalidTransition) {
		if cur, gerr := s.GetReminder(ctx, id); gerr == nil {
			if cur.State == StateDelivered || cur.State == StateCompleted {
				return ErrAlreadyDelivered
			}
		}
	}
	return err
}

// MarkCompleted transitions delivered -> completed.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	return s.transition(ctx, id, []State{StateDelivered}, StateCompleted)
}

// MarkCancelled transitions pending or delivered -> cancelled.
func (s *Store) MarkCancelled(ctx context.Context, id int64) error {
	return s.transition(ctx, id, []State{StatePending, StateDelivered}, StateCancelled)
}

// transition applies a compare-and-set state change. The UPDATE only
// matches when the row is still in one of the expected states, so a
// losing racer never touches the row (updated_at included).
func (s *Store) transition(ctx context.Context, id int64, from []State, to State) error {
	args := make([]any, 0, len(from)+3)
	args = append(args, string(to), fmtTime(time.Now().UTC()), id)
	marks := make([]string, len(from))
	for i, st := range from {
		marks[i] = "?"
		args = append(args, string(st))
	}

	var got string
	err := s.db.QueryRowContext(ctx,
		`UPDATE reminders SET state = ?, updated_at = ?
		 WHERE id = ? AND state IN (`+strings.Join(marks, ",")+`)
		 RETURNING state`, args...).Scan(&got)
	if err == nil {
		if !s.log.IsZero() {
			s.log.Debug("reminder state changed", logx.Int64("id", id), logx.String("state", got))
		}
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	// CAS missed; classify against the current row.
	var cur string
	err = s.db.QueryRowContext(ctx, `SELECT state FROM reminders WHERE id = ?`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, to)
}

// SetJobHandle records the scheduler handle currently owning the
// reminder's timer. An empty handle clears it.
func (s *Store) SetJobHandle(ctx context.Context, id int64, handle string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET job_handle = ?, updated_at = ? WHERE id = ?`,
		nullStr(handle), fmtTime(time.Now().UTC()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteReminder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UserReminderStats counts a user's reminders for the status report.
// Upcoming is pending with a future due time; overdue is pending or
// delivered with a past due time.
func (s *Store) UserReminderStats(ctx context.Context, userID int64, now time.Time) (Stats, error) {
	ms := now.UnixMilli()
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(state = 'completed'), 0),
		        COALESCE(SUM(state = 'pending' AND due_at > ?), 0),
		        COALESCE(SUM(state IN ('pending','delivered') AND due_at <= ?), 0)
		 FROM reminders WHERE user_id = ?`,
		ms, ms, userID).Scan(&st.Total, &st.Completed, &st.Upcoming, &st.Overdue)
	return st, err
}
