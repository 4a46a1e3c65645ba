package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"coffeeshop/internal/core"
)

// Предел выборки аудита.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 200
)

// SeedDrink запись, которую Reset добавляет в пустую таблицу.
var SeedDrink = core.Drink{
	Title:  "water",
	Recipe: core.Recipe{{Name: "water", Color: "blue", Parts: 1}},
}

// EncodeRecipe сериализует рецепт в текст для колонки recipe.
func EncodeRecipe(r core.Recipe) (string, error) {
	if r == nil {
		r = core.Recipe{}
	}
	buf, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode recipe: %w", err)
	}
	return string(buf), nil
}

// DecodeRecipe разбирает текст колонки recipe.
func DecodeRecipe(s string) (core.Recipe, error) {
	var r core.Recipe
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, fmt.Errorf("decode recipe: %w", err)
	}
	return r, nil
}

// NormalizeAuditQuery применяет значения по умолчанию к фильтрам аудита.
func NormalizeAuditQuery(q AuditQuery, now time.Time) AuditQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultAuditLimit
	}
	if q.Limit > MaxAuditLimit {
		q.Limit = MaxAuditLimit
	}
	if q.From.IsZero() {
		q.From = time.Unix(0, 0).UTC()
	}
	if q.To.IsZero() {
		q.To = now.UTC()
	}
	return q
}
