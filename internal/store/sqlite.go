package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"KievAlerts/internal/model"
)

// SQLiteStore persists bot state to a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger.With(zap.String("component", "sqlite"))}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.logger.Info("sqlite store opened", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS window_state (
			name         TEXT PRIMARY KEY,
			last_success INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS quotas (
			identity TEXT PRIMARY KEY,
			weather  INTEGER NOT NULL,
			btc      INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS subscribers (
			chat_id    TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS broadcasts (
			id        TEXT PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			window_name TEXT NOT NULL,
			recipient TEXT,
			success   INTEGER NOT NULL,
			note      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_broadcasts_ts ON broadcasts(timestamp)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:30], err)
		}
	}
	return nil
}

func (s *SQLiteStore) LoadLastSuccess(ctx context.Context, window string) (int64, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx, `SELECT last_success FROM window_state WHERE name = ?`, window).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load last success %s: %w", window, err)
	}
	return ts, nil
}

func (s *SQLiteStore) SaveLastSuccess(ctx context.Context, window string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO window_state (name, last_success) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET last_success = max(last_success, excluded.last_success)`,
		window, ts)
	if err != nil {
		return fmt.Errorf("save last success %s: %w", window, err)
	}
	return nil
}

func (s *SQLiteStore) LoadQuotas(ctx context.Context) (map[string]model.Quota, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identity, weather, btc FROM quotas`)
	if err != nil {
		return nil, fmt.Errorf("load quotas: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Quota)
	for rows.Next() {
		var id string
		var q model.Quota
		if err := rows.Scan(&id, &q.Weather, &q.BTC); err != nil {
			return nil, fmt.Errorf("scan quota: %w", err)
		}
		out[id] = q
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveQuotas(ctx context.Context, quotas map[string]model.Quota) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM quotas`); err != nil {
		return fmt.Errorf("clear quotas: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO quotas (identity, weather, btc) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare quota insert: %w", err)
	}
	defer stmt.Close()
	for id, q := range quotas {
		if _, err := stmt.ExecContext(ctx, id, q.Weather, q.BTC); err != nil {
			return fmt.Errorf("insert quota %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadSubscribers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM subscribers ORDER BY created_at, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddSubscriber(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO subscribers (chat_id, created_at) VALUES (?, ?)`,
		chatID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("add subscriber %s: %w", chatID, err)
	}
	return nil
}

func (s *SQLiteStore) RecordBroadcast(ctx context.Context, evt BroadcastEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt = withDefaults(evt)
	_, err := s.db.ExecContext(ctx, `INSERT INTO broadcasts
		(id, timestamp, window_name, recipient, success, note)
		VALUES (?,?,?,?,?,?)`,
		evt.ID, evt.Timestamp.Unix(), evt.Window, evt.Recipient, evt.Success, evt.Note,
	)
	if err != nil {
		return fmt.Errorf("record broadcast: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentBroadcasts(ctx context.Context, limit int) ([]BroadcastEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, timestamp, window_name, recipient, success, note
		FROM broadcasts ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query broadcasts: %w", err)
	}
	defer rows.Close()

	var out []BroadcastEvent
	for rows.Next() {
		var (
			evt BroadcastEvent
			ts  int64
		)
		if err := rows.Scan(&evt.ID, &ts, &evt.Window, &evt.Recipient, &evt.Success, &evt.Note); err != nil {
			return nil, fmt.Errorf("scan broadcast: %w", err)
		}
		evt.Timestamp = time.Unix(ts, 0)
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.logger.Info("closing sqlite store")
	return s.db.Close()
}

func withDefaults(evt BroadcastEvent) BroadcastEvent {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	return evt
}
