package auth

import (
	"fmt"
	"net/http"
)

// Коды ошибок аутентификации, возвращаемые клиенту.
const (
	CodeHeaderMissing = "authorization_header_missing"
	CodeInvalidHeader = "invalid_header"
	CodeTokenExpired  = "token_expired"
	CodeInvalidClaims = "invalid_claims"
	CodeUnauthorized  = "unauthorized"
)

// Error ошибка проверки токена с HTTP-статусом и машинным кодом.
type Error struct {
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.Err }

func unauthorized(code, description string, err error) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: code, Description: description, Err: err}
}
