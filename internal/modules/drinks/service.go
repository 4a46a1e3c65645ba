// Package drinks реализует операции над напитками поверх storage.DrinkStore.
package drinks

import (
	"context"
	"fmt"
	"strings"

	"coffeeshop/internal/core"
	"coffeeshop/internal/storage"
)

// Input поля запроса на создание или изменение напитка.
// Nil означает, что поле не передано.
type Input struct {
	Title  *string     `json:"title"`
	Recipe core.Recipe `json:"recipe"`
}

// Service владеет хранилищем и выполняет по одной операции на запрос.
type Service struct {
	store storage.DrinkStore
}

// NewService создает сервис напитков.
func NewService(store storage.DrinkStore) *Service {
	return &Service{store: store}
}

// List возвращает все напитки.
func (s *Service) List(ctx context.Context) ([]core.Drink, error) {
	return s.store.ListDrinks(ctx)
}

// Create проверяет и сохраняет новый напиток.
func (s *Service) Create(ctx context.Context, in Input) (core.Drink, error) {
	if in.Title == nil {
		return core.Drink{}, fmt.Errorf("title is required: %w", core.ErrInvalid)
	}
	d := core.Drink{Title: strings.TrimSpace(*in.Title), Recipe: in.Recipe}
	if err := d.Validate(); err != nil {
		return core.Drink{}, err
	}
	return s.store.CreateDrink(ctx, d)
}

// Update применяет переданные поля к существующему напитку.
func (s *Service) Update(ctx context.Context, id int64, in Input) (core.Drink, error) {
	return s.store.UpdateDrink(ctx, id, func(d *core.Drink) error {
		if in.Title != nil {
			d.Title = strings.TrimSpace(*in.Title)
		}
		if in.Recipe != nil {
			d.Recipe = in.Recipe
		}
		return d.Validate()
	})
}

// Delete удаляет напиток и возвращает его id.
func (s *Service) Delete(ctx context.Context, id int64) (int64, error) {
	if err := s.store.DeleteDrink(ctx, id); err != nil {
		return 0, err
	}
	return id, nil
}
