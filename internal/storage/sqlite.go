package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "puasapush/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	endpoint           TEXT PRIMARY KEY,
	p256dh             TEXT NOT NULL,
	auth               TEXT NOT NULL,
	last_answered_date TEXT,
	updated_at         TEXT NOT NULL
);`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; this also serializes every operation.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) ListAll(ctx context.Context) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT endpoint, p256dh, auth, last_answered_date, updated_at FROM subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var (
			sub      Subscription
			answered sql.NullString
			updated  string
		)
		if err := rows.Scan(&sub.Endpoint, &sub.Keys.P256dh, &sub.Keys.Auth, &answered, &updated); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.LastAnsweredDate = answered.String
		ts, err := time.Parse(time.RFC3339, updated)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at for %s: %w", sub.Endpoint, err)
		}
		sub.UpdatedAt = ts
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Upsert(ctx context.Context, endpoint string, keys Keys) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (endpoint, p256dh, auth, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			p256dh=excluded.p256dh,
			auth=excluded.auth,
			updated_at=excluded.updated_at`,
		endpoint, keys.P256dh, keys.Auth, nowUTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *sqliteStore) MarkAnswered(ctx context.Context, endpoint, date string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_answered_date = ?, updated_at = ? WHERE endpoint = ?`,
		date, nowUTC().Format(time.RFC3339), endpoint,
	)
	if err != nil {
		return false, fmt.Errorf("mark answered: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) Remove(ctx context.Context, endpoint string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("remove subscription: %w", err)
	}
	return nil
}
