package storage

import (
	"context"
	"time"

	"coffeeshop/internal/core"
)

// AuditEvent фиксирует действия субъектов над напитками.
type AuditEvent struct {
	Subject   string
	Action    string
	Source    string
	Status    string
	RequestID string
	Payload   []byte
	TS        time.Time
}

// AuditQuery задает фильтры выборки аудита.
type AuditQuery struct {
	From    time.Time
	To      time.Time
	Subject string
	Limit   int
}

// DrinkStore описывает операции над таблицей напитков.
//
// Ошибки оборачивают core.ErrNotFound, если запись не найдена,
// и core.ErrConflict при нарушении уникальности названия.
type DrinkStore interface {
	ListDrinks(ctx context.Context) ([]core.Drink, error)
	GetDrink(ctx context.Context, id int64) (core.Drink, error)
	CreateDrink(ctx context.Context, d core.Drink) (core.Drink, error)
	// UpdateDrink загружает запись, применяет apply и сохраняет в одной транзакции.
	UpdateDrink(ctx context.Context, id int64, apply func(*core.Drink) error) (core.Drink, error)
	DeleteDrink(ctx context.Context, id int64) error
}

// AuditStore описывает журнал аудита.
type AuditStore interface {
	SaveAudit(ctx context.Context, ev AuditEvent) error
	QueryAudit(ctx context.Context, q AuditQuery) ([]AuditEvent, error)
	PruneAudit(ctx context.Context, before time.Time) (int64, error)
}

// Store описывает операции хранилища.
type Store interface {
	DrinkStore
	AuditStore
	Ping(ctx context.Context) error
	// Reset пересоздает таблицу напитков и добавляет начальную запись.
	Reset(ctx context.Context) error
	Close() error
}
