package core

import "errors"

// Виды ошибок, которые транспорт переводит в HTTP-статусы.
var (
	ErrNotFound  = errors.New("not found")
	ErrInvalid   = errors.New("invalid input")
	ErrConflict  = errors.New("conflict")
	errEmptyName = errors.New("empty name")
)
