package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const userCols = `id, telegram_id, chat_id, COALESCE(username, ''), COALESCE(first_name, ''),
	timezone, active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var (
		u       User
		created string
		updated string
	)
	err := row.Scan(&u.ID, &u.TelegramID, &u.ChatID, &u.Username, &u.FirstName,
		&u.Timezone, &u.Active, &created, &updated)
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = parseTime(created)
	u.UpdatedAt = parseTime(updated)
	return u, nil
}

// GetOrCreateUser upserts by telegram id, refreshing the chat id and
// profile fields on every contact so renames stick.
func (s *Store) GetOrCreateUser(ctx context.Context, telegramID, chatID int64, username, firstName string) (User, error) {
	now := fmtTime(time.Now().UTC())
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO users(telegram_id, chat_id, username, first_name, timezone, active, created_at, updated_at)
		 VALUES(?,?,?,?,'UTC',1,?,?)
		 ON CONFLICT(telegram_id) DO UPDATE SET
		   chat_id = excluded.chat_id,
		   username = excluded.username,
		   first_name = excluded.first_name,
		   active = 1,
		   updated_at = excluded.updated_at
		 RETURNING `+userCols,
		telegramID, chatID, nullStr(username), nullStr(firstName), now, now)
	return scanUser(row)
}

func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// SetTimezone stores the user's IANA timezone name. The caller validates
// it loads before writing.
func (s *Store) SetTimezone(ctx context.Context, userID int64, tz string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET timezone = ?, updated_at = ? WHERE id = ?`,
		tz, fmtTime(time.Now().UTC()), userID)
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

func (s *Store) DeactivateUser(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET active = 0, updated_at = ? WHERE id = ?`,
		fmtTime(time.Now().UTC()), userID)
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
