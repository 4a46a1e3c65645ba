package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver

	"coffeeshop/internal/core"
	"coffeeshop/internal/storage"
)

const uniqueViolation = "23505"

// Store реализует storage.Store поверх PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open подключается по DSN и выполняет миграции.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

const drinksTable = `CREATE TABLE IF NOT EXISTS drinks (
	id BIGSERIAL PRIMARY KEY,
	title VARCHAR(80) NOT NULL UNIQUE,
	recipe TEXT NOT NULL
);`

func migrate(ctx context.Context, db *sql.DB) error {
	schema := []string{
		drinksTable,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			subject TEXT,
			action TEXT,
			source TEXT,
			status TEXT,
			request_id TEXT,
			payload BYTEA
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_events(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_subject_ts ON audit_events(subject, ts);`,
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Reset пересоздает таблицу напитков с начальной записью.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS drinks`); err != nil {
		return fmt.Errorf("drop drinks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, drinksTable); err != nil {
		return fmt.Errorf("create drinks: %w", err)
	}
	recipe, err := storage.EncodeRecipe(storage.SeedDrink.Recipe)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO drinks(title, recipe) VALUES($1,$2)`, storage.SeedDrink.Title, recipe); err != nil {
		return fmt.Errorf("seed drinks: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListDrinks(ctx context.Context) ([]core.Drink, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, recipe FROM drinks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query drinks: %w", err)
	}
	defer rows.Close()

	drinks := make([]core.Drink, 0)
	for rows.Next() {
		var d core.Drink
		var recipe string
		if err := rows.Scan(&d.ID, &d.Title, &recipe); err != nil {
			return nil, fmt.Errorf("scan drink: %w", err)
		}
		if d.Recipe, err = storage.DecodeRecipe(recipe); err != nil {
			return nil, fmt.Errorf("drink %d: %w", d.ID, err)
		}
		drinks = append(drinks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drinks: %w", err)
	}
	return drinks, nil
}

func (s *Store) GetDrink(ctx context.Context, id int64) (core.Drink, error) {
	return getDrink(ctx, s.db.QueryRowContext(ctx, `SELECT id, title, recipe FROM drinks WHERE id = $1`, id), id)
}

func (s *Store) CreateDrink(ctx context.Context, d core.Drink) (core.Drink, error) {
	recipe, err := storage.EncodeRecipe(d.Recipe)
	if err != nil {
		return core.Drink{}, err
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO drinks(title, recipe) VALUES($1,$2) RETURNING id`,
		d.Title, recipe,
	).Scan(&d.ID)
	if err != nil {
		return core.Drink{}, fmt.Errorf("insert drink: %w", translate(err))
	}
	return d, nil
}

func (s *Store) UpdateDrink(ctx context.Context, id int64, apply func(*core.Drink) error) (core.Drink, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Drink{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	d, err := getDrink(ctx, tx.QueryRowContext(ctx, `SELECT id, title, recipe FROM drinks WHERE id = $1 FOR UPDATE`, id), id)
	if err != nil {
		return core.Drink{}, err
	}
	if err := apply(&d); err != nil {
		return core.Drink{}, err
	}
	d.ID = id

	recipe, err := storage.EncodeRecipe(d.Recipe)
	if err != nil {
		return core.Drink{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE drinks SET title = $1, recipe = $2 WHERE id = $3`, d.Title, recipe, id); err != nil {
		return core.Drink{}, fmt.Errorf("update drink %d: %w", id, translate(err))
	}
	if err := tx.Commit(); err != nil {
		return core.Drink{}, fmt.Errorf("commit update: %w", err)
	}
	return d, nil
}

func (s *Store) DeleteDrink(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drinks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete drink %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete drink %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("drink %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) SaveAudit(ctx context.Context, ev storage.AuditEvent) error {
	ts := ev.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_events(subject, action, source, status, request_id, payload, ts) VALUES($1,$2,$3,$4,$5,$6,$7)`,
		ev.Subject, ev.Action, ev.Source, ev.Status, ev.RequestID, ev.Payload, ts)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func (s *Store) QueryAudit(ctx context.Context, q storage.AuditQuery) ([]storage.AuditEvent, error) {
	q = storage.NormalizeAuditQuery(q, time.Now())

	rows, err := s.db.QueryContext(ctx, `
SELECT subject, action, source, status, request_id, payload, ts
FROM audit_events
WHERE ts >= $1 AND ts <= $2 AND ($3 = '' OR subject = $3)
ORDER BY ts DESC
LIMIT $4`, q.From, q.To, q.Subject, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	events := make([]storage.AuditEvent, 0, q.Limit)
	for rows.Next() {
		var ev storage.AuditEvent
		if err := rows.Scan(&ev.Subject, &ev.Action, &ev.Source, &ev.Status, &ev.RequestID, &ev.Payload, &ev.TS); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		ev.TS = ev.TS.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit: %w", err)
	}
	return events, nil
}

func (s *Store) PruneAudit(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE ts < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune audit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune audit: %w", err)
	}
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func getDrink(ctx context.Context, row *sql.Row, id int64) (core.Drink, error) {
	var d core.Drink
	var recipe string
	if err := row.Scan(&d.ID, &d.Title, &recipe); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Drink{}, fmt.Errorf("drink %d: %w", id, core.ErrNotFound)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.Drink{}, fmt.Errorf("get drink %d: %w", id, ctxErr)
		}
		return core.Drink{}, fmt.Errorf("get drink %d: %w", id, err)
	}
	r, err := storage.DecodeRecipe(recipe)
	if err != nil {
		return core.Drink{}, fmt.Errorf("drink %d: %w", id, err)
	}
	d.Recipe = r
	return d, nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("title already exists: %w", core.ErrConflict)
	}
	return err
}
