package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"coffeeshop/internal/core"
	"coffeeshop/internal/storage"
)

// Store реализует storage.Store поверх SQLite.
type Store struct {
	db *sql.DB
}

// Open инициализирует соединение и выполняет миграции.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=5000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

const drinksTable = `CREATE TABLE IF NOT EXISTS drinks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title VARCHAR(80) NOT NULL UNIQUE,
	recipe TEXT NOT NULL
);`

func migrate(db *sql.DB) error {
	schema := []string{
		drinksTable,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			subject TEXT,
			action TEXT,
			source TEXT,
			status TEXT,
			request_id TEXT,
			payload BLOB
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_events(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_subject_ts ON audit_events(subject, ts);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Reset удаляет все напитки и добавляет начальную запись.
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
	if _, err := tx.ExecContext(ctx, `INSERT INTO drinks(title, recipe) VALUES(?,?)`, storage.SeedDrink.Title, recipe); err != nil {
		return fmt.Errorf("seed drinks: %w", err)
	}
	return tx.Commit()
}

// ListDrinks возвращает все напитки по возрастанию id.
func (s *Store) ListDrinks(ctx context.Context) ([]core.Drink, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, recipe FROM drinks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query drinks: %w", err)
	}
	defer rows.Close()

	drinks := make([]core.Drink, 0)
	for rows.Next() {
		d, err := scanDrink(rows)
		if err != nil {
			return nil, err
		}
		drinks = append(drinks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drinks: %w", err)
	}
	return drinks, nil
}

// GetDrink возвращает напиток по id.
func (s *Store) GetDrink(ctx context.Context, id int64) (core.Drink, error) {
	return getDrink(ctx, s.db, id)
}

// CreateDrink сохраняет новый напиток и возвращает его с присвоенным id.
func (s *Store) CreateDrink(ctx context.Context, d core.Drink) (core.Drink, error) {
	recipe, err := storage.EncodeRecipe(d.Recipe)
	if err != nil {
		return core.Drink{}, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO drinks(title, recipe) VALUES(?,?)`, d.Title, recipe)
	if err != nil {
		return core.Drink{}, fmt.Errorf("insert drink: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Drink{}, fmt.Errorf("insert drink id: %w", err)
	}
	d.ID = id
	return d, nil
}

// UpdateDrink применяет apply к существующей записи в транзакции.
func (s *Store) UpdateDrink(ctx context.Context, id int64, apply func(*core.Drink) error) (core.Drink, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Drink{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	d, err := getDrink(ctx, tx, id)
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
	if _, err := tx.ExecContext(ctx, `UPDATE drinks SET title = ?, recipe = ? WHERE id = ?`, d.Title, recipe, id); err != nil {
		return core.Drink{}, fmt.Errorf("update drink %d: %w", id, translate(err))
	}
	if err := tx.Commit(); err != nil {
		return core.Drink{}, fmt.Errorf("commit update: %w", err)
	}
	return d, nil
}

// DeleteDrink удаляет напиток по id.
func (s *Store) DeleteDrink(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drinks WHERE id = ?`, id)
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

// SaveAudit сохраняет аудиторное событие.
func (s *Store) SaveAudit(ctx context.Context, ev storage.AuditEvent) error {
	ts := ev.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_events(subject, action, source, status, request_id, payload, ts) VALUES(?,?,?,?,?,?,?)`,
		ev.Subject, ev.Action, ev.Source, ev.Status, ev.RequestID, ev.Payload, ts.UTC())
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// QueryAudit возвращает аудит по фильтрам.
func (s *Store) QueryAudit(ctx context.Context, q storage.AuditQuery) ([]storage.AuditEvent, error) {
	q = storage.NormalizeAuditQuery(q, time.Now())

	rows, err := s.db.QueryContext(ctx, `
SELECT subject, action, source, status, request_id, payload, ts
FROM audit_events
WHERE ts >= ? AND ts <= ? AND (? = '' OR subject = ?)
ORDER BY ts DESC
LIMIT ?`, q.From.UTC(), q.To.UTC(), q.Subject, q.Subject, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	events := make([]storage.AuditEvent, 0, q.Limit)
	for rows.Next() {
		var ev storage.AuditEvent
		var ts string
		if err := rows.Scan(&ev.Subject, &ev.Action, &ev.Source, &ev.Status, &ev.RequestID, &ev.Payload, &ts); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		parsedTS, err := parseSQLiteTS(ts)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		ev.TS = parsedTS
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit: %w", err)
	}
	return events, nil
}

// PruneAudit удаляет события старше before.
func (s *Store) PruneAudit(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE ts < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune audit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune audit: %w", err)
	}
	return n, nil
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close закрывает соединение.
func (s *Store) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getDrink(ctx context.Context, q queryer, id int64) (core.Drink, error) {
	row := q.QueryRowContext(ctx, `SELECT id, title, recipe FROM drinks WHERE id = ?`, id)
	d, err := scanDrink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Drink{}, fmt.Errorf("drink %d: %w", id, core.ErrNotFound)
		}
		return core.Drink{}, err
	}
	return d, nil
}

func scanDrink(row scanner) (core.Drink, error) {
	var d core.Drink
	var recipe string
	if err := row.Scan(&d.ID, &d.Title, &recipe); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Drink{}, err
		}
		return core.Drink{}, fmt.Errorf("scan drink: %w", err)
	}
	r, err := storage.DecodeRecipe(recipe)
	if err != nil {
		return core.Drink{}, fmt.Errorf("drink %d: %w", d.ID, err)
	}
	d.Recipe = r
	return d, nil
}

func translate(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("title already exists: %w", core.ErrConflict)
	}
	return err
}

func parseSQLiteTS(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported sqlite time format: %q", v)
}
