// Package storage persists the client's local state in SQLite: key/value
// settings (session token, current user) and per-user chat history.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a setting does not exist.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *applog.Logger
}

func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; history appends run in a transaction.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(applog.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetSetting returns the value stored under key, or ErrNotFound.
func (r *SQLiteRepository) GetSetting(ctx context.Context, key string) (string, error) {
	v, err := r.queries.GetSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, nil
}

func (r *SQLiteRepository) SetSetting(ctx context.Context, key, value string) error {
	if err := r.queries.UpsertSetting(ctx, key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key. Deleting a missing key is not an error.
func (r *SQLiteRepository) DeleteSetting(ctx context.Context, key string) error {
	if err := r.queries.DeleteSetting(ctx, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// AppendTurns stores turns for userID in order, then drops everything but
// the newest keep messages. keep <= 0 disables trimming.
func (r *SQLiteRepository) AppendTurns(ctx context.Context, userID string, keep int, turns ...core.Turn) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("append turn: invalid role %q", t.Role)
		}
		err := q.InsertChatMessage(ctx, InsertChatMessageParams{
			UserID:      userID,
			Role:        string(t.Role),
			Text:        t.Text,
			CreatedAtNs: t.At.UnixNano(),
		})
		if err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
	}

	var trimmed int64
	if keep > 0 {
		trimmed, err = q.TrimChatMessages(ctx, userID, int64(keep))
		if err != nil {
			return fmt.Errorf("trim chat history: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.DebugContext(ctx, "Chat turns stored",
		applog.FieldUserID, userID,
		"appended", len(turns),
		"trimmed", trimmed)
	return nil
}

// RecentTurns returns at most limit of the newest turns for userID in
// chronological order.
func (r *SQLiteRepository) RecentTurns(ctx context.Context, userID string, limit int) ([]core.Turn, error) {
	if limit <= 0 {
		return []core.Turn{}, nil
	}
	rows, err := r.queries.RecentChatMessages(ctx, userID, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	turns := make([]core.Turn, len(rows))
	for i, m := range rows {
		turns[len(rows)-1-i] = core.Turn{
			Role: core.Role(m.Role),
			Text: m.Text,
			At:   time.Unix(0, m.CreatedAtNs).UTC(),
		}
	}
	return turns, nil
}

// ClearHistory deletes every stored turn for userID.
func (r *SQLiteRepository) ClearHistory(ctx context.Context, userID string) error {
	if err := r.queries.DeleteChatMessages(ctx, userID); err != nil {
		return fmt.Errorf("clear chat history: %w", err)
	}
	r.logger.InfoContext(ctx, "Chat history cleared", applog.FieldUserID, userID)
	return nil
}
