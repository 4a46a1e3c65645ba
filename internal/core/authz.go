package core

import (
	"errors"
	"fmt"
)

// Permission строка разрешения из claim-набора токена.
type Permission string

// Разрешения маршрутов API.
const (
	PermGetDrinks       Permission = "get:drinks"
	PermGetDrinksDetail Permission = "get:drinks-detail"
	PermPostDrinks      Permission = "post:drinks"
	PermPatchDrinks     Permission = "patch:drinks"
	PermDeleteDrinks    Permission = "delete:drinks"
)

var (
	// ErrPermissionsMissing токен не содержит claim с разрешениями.
	ErrPermissionsMissing = errors.New("permissions not included in token")
	// ErrPermissionDenied требуемого разрешения нет в токене.
	ErrPermissionDenied = errors.New("permission not found")
)

// Subject описывает проверенного владельца токена.
type Subject struct {
	ID          string
	Permissions []string
	// HasPermissions false, если в токене вообще нет claim с разрешениями.
	HasPermissions bool
}

// Authorizer отвечает за решение доступа к маршруту.
type Authorizer interface {
	Authorize(subject Subject, perm Permission) error
}

// ClaimsAuthorizer разрешает доступ, если разрешение присутствует в claims субъекта.
type ClaimsAuthorizer struct{}

// NewClaimsAuthorizer создает authorizer по claims токена.
func NewClaimsAuthorizer() *ClaimsAuthorizer {
	return &ClaimsAuthorizer{}
}

// Authorize возвращает ошибку, если разрешения нет в claims.
func (a *ClaimsAuthorizer) Authorize(subject Subject, perm Permission) error {
	if !subject.HasPermissions {
		return ErrPermissionsMissing
	}
	for _, p := range subject.Permissions {
		if Permission(p) == perm {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", perm, ErrPermissionDenied)
}
