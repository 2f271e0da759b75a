package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	logx "puasapush/pkg/logx"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	endpoint           TEXT PRIMARY KEY,
	p256dh             TEXT NOT NULL,
	auth               TEXT NOT NULL,
	last_answered_date DATE,
	updated_at         TIMESTAMPTZ NOT NULL
)`

type postgresStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	log.Debug("postgres store opened")
	return &postgresStore{pool: pool, log: log}, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *postgresStore) ListAll(ctx context.Context) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT endpoint, p256dh, auth, COALESCE(to_char(last_answered_date, 'YYYY-MM-DD'), ''), updated_at
		FROM subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Subscription, error) {
		var sub Subscription
		err := row.Scan(&sub.Endpoint, &sub.Keys.P256dh, &sub.Keys.Auth, &sub.LastAnsweredDate, &sub.UpdatedAt)
		return sub, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan subscriptions: %w", err)
	}
	return out, nil
}

func (s *postgresStore) Upsert(ctx context.Context, endpoint string, keys Keys) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (endpoint, p256dh, auth, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (endpoint) DO UPDATE SET
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth,
			updated_at = EXCLUDED.updated_at`,
		endpoint, keys.P256dh, keys.Auth, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *postgresStore) MarkAnswered(ctx context.Context, endpoint, date string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subscriptions SET last_answered_date = $1::date, updated_at = $2 WHERE endpoint = $3`,
		date, nowUTC(), endpoint,
	)
	if err != nil {
		return false, fmt.Errorf("mark answered: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *postgresStore) Remove(ctx context.Context, endpoint string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM subscriptions WHERE endpoint = $1`, endpoint); err != nil {
		return fmt.Errorf("remove subscription: %w", err)
	}
	return nil
}
