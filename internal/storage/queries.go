package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the statements used by the repository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const getSetting = `SELECT value FROM settings WHERE key = ?`

func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, getSetting, key).Scan(&value)
	return value, err
}

const upsertSetting = `
INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, upsertSetting, key, value)
	return err
}

const deleteSetting = `DELETE FROM settings WHERE key = ?`

func (q *Queries) DeleteSetting(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteSetting, key)
	return err
}

type ChatMessage struct {
	ID          int64
	UserID      string
	Role        string
	Text        string
	CreatedAtNs int64
}

type InsertChatMessageParams struct {
	UserID      string
	Role        string
	Text        string
	CreatedAtNs int64
}

const insertChatMessage = `
INSERT INTO chat_messages (user_id, role, text, created_at_ns) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertChatMessage(ctx context.Context, arg InsertChatMessageParams) error {
	_, err := q.db.ExecContext(ctx, insertChatMessage, arg.UserID, arg.Role, arg.Text, arg.CreatedAtNs)
	return err
}

// Newest first; callers reverse for chronological order.
const recentChatMessages = `
SELECT id, user_id, role, text, created_at_ns FROM chat_messages
WHERE user_id = ? ORDER BY id DESC LIMIT ?`

func (q *Queries) RecentChatMessages(ctx context.Context, userID string, limit int64) ([]ChatMessage, error) {
	rows, err := q.db.QueryContext(ctx, recentChatMessages, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Text, &m.CreatedAtNs); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const trimChatMessages = `
DELETE FROM chat_messages WHERE user_id = ? AND id NOT IN (
    SELECT id FROM chat_messages WHERE user_id = ? ORDER BY id DESC LIMIT ?
)`

func (q *Queries) TrimChatMessages(ctx context.Context, userID string, keep int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, trimChatMessages, userID, userID, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteChatMessages = `DELETE FROM chat_messages WHERE user_id = ?`

func (q *Queries) DeleteChatMessages(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, deleteChatMessages, userID)
	return err
}
