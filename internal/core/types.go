package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxTitleLen ограничивает длину названия напитка.
const MaxTitleLen = 80

// Ingredient описывает одну часть рецепта.
type Ingredient struct {
	Color string `json:"color"`
	Name  string `json:"name"`
	Parts int    `json:"parts"`
}

// Recipe список ингредиентов напитка.
// При декодировании принимает как массив, так и одиночный объект.
type Recipe []Ingredient

// UnmarshalJSON нормализует одиночный объект в список из одного элемента.
func (r *Recipe) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var one Ingredient
		if err := decodeStrict(trimmed, &one); err != nil {
			return err
		}
		*r = Recipe{one}
		return nil
	}
	var list []Ingredient
	if err := decodeStrict(trimmed, &list); err != nil {
		return err
	}
	*r = list
	return nil
}

// decodeStrict отклоняет неизвестные поля ингредиентов.
func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Drink запись таблицы напитков.
type Drink struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Recipe Recipe `json:"recipe"`
}

// ShortIngredient ингредиент без названия.
type ShortIngredient struct {
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

// ShortDrink краткое представление напитка.
type ShortDrink struct {
	ID     int64             `json:"id"`
	Title  string            `json:"title"`
	Recipe []ShortIngredient `json:"recipe"`
}

// Short возвращает краткое представление: только цвет и доли ингредиентов.
func (d Drink) Short() ShortDrink {
	recipe := make([]ShortIngredient, 0, len(d.Recipe))
	for _, ing := range d.Recipe {
		recipe = append(recipe, ShortIngredient{Color: ing.Color, Parts: ing.Parts})
	}
	return ShortDrink{ID: d.ID, Title: d.Title, Recipe: recipe}
}

// Long возвращает полное представление напитка.
func (d Drink) Long() Drink {
	recipe := make(Recipe, len(d.Recipe))
	copy(recipe, d.Recipe)
	return Drink{ID: d.ID, Title: d.Title, Recipe: recipe}
}

// Validate проверяет поля напитка перед сохранением.
func (d Drink) Validate() error {
	if err := ValidateTitle(d.Title); err != nil {
		return err
	}
	return d.Recipe.Validate()
}

// ValidateTitle проверяет название напитка.
func ValidateTitle(title string) error {
	t := strings.TrimSpace(title)
	if t == "" {
		return fmt.Errorf("title is required: %w", ErrInvalid)
	}
	if utf8.RuneCountInString(t) > MaxTitleLen {
		return fmt.Errorf("title exceeds %d characters: %w", MaxTitleLen, ErrInvalid)
	}
	return nil
}

// Validate проверяет рецепт.
func (r Recipe) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("recipe must have at least one ingredient: %w", ErrInvalid)
	}
	for i, ing := range r {
		if strings.TrimSpace(ing.Name) == "" {
			return fmt.Errorf("ingredient %d: name is required: %w", i, ErrInvalid)
		}
		if strings.TrimSpace(ing.Color) == "" {
			return fmt.Errorf("ingredient %d: color is required: %w", i, ErrInvalid)
		}
		if ing.Parts < 1 {
			return fmt.Errorf("ingredient %d: parts must be positive: %w", i, ErrInvalid)
		}
	}
	return nil
}
