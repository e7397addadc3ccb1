package store

import (
	"context"
	"time"
)

// AppendConversation records one chat turn. Role is "user" or
// "assistant".
func (s *Store) AppendConversation(ctx context.Context, userID int64, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations(user_id, role, content, created_at) VALUES(?,?,?,?)`,
		userID, role, content, fmtTime(time.Now().UTC()))
	return err
}

// RecentConversation returns up to limit most recent turns in
// chronological order.
func (s *Store) RecentConversation(ctx context.Context, userID int64, limit int) ([]ConversationEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, content, created_at FROM (
		   SELECT id, user_id, role, content, created_at FROM conversations
		   WHERE user_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConversationEntry
	for rows.Next() {
		var (
			e       ConversationEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Role, &e.Content, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearConversation deletes a user's chat history.
func (s *Store) ClearConversation(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
