// Package auth проверяет bearer-токены, выпущенные внешним identity provider.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coffeeshop/internal/core"
)

// Claims набор claims токена Auth0 с RBAC.
type Claims struct {
	jwt.RegisteredClaims
	// Permissions nil, если claim отсутствует в токене.
	Permissions []string `json:"permissions"`
	Scope       string   `json:"scope,omitempty"`
}

// Config параметры проверки токена.
type Config struct {
	Issuer     string
	Audience   string
	Algorithms []string
	Leeway     time.Duration
}

// Verifier проверяет подпись, issuer и audience токена.
type Verifier struct {
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
}

// NewVerifier создает verifier с функцией выбора ключа.
func NewVerifier(keyfunc jwt.Keyfunc, cfg Config) (*Verifier, error) {
	if keyfunc == nil {
		return nil, errors.New("auth: keyfunc is nil")
	}
	if cfg.Audience == "" {
		return nil, errors.New("auth: audience is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("auth: issuer is required")
	}
	algs := cfg.Algorithms
	if len(algs) == 0 {
		algs = []string{"RS256"}
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(algs),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	return &Verifier{keyfunc: keyfunc, parser: jwt.NewParser(opts...)}, nil
}

// Authenticate извлекает токен из заголовка и проверяет его.
func (v *Verifier) Authenticate(ctx context.Context, header string) (core.Subject, error) {
	raw, err := TokenFromHeader(header)
	if err != nil {
		return core.Subject{}, err
	}
	return v.Verify(ctx, raw)
}

// Verify проверяет токен и возвращает субъект с разрешениями.
func (v *Verifier) Verify(ctx context.Context, raw string) (core.Subject, error) {
	if err := ctx.Err(); err != nil {
		return core.Subject{}, err
	}
	var claims Claims
	if _, err := v.parser.ParseWithClaims(raw, &claims, v.keyfunc); err != nil {
		return core.Subject{}, classify(err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return core.Subject{}, unauthorized(CodeInvalidClaims, "Token subject is missing.", nil)
	}
	subject := core.Subject{ID: claims.Subject}
	switch {
	case claims.Permissions != nil:
		subject.Permissions = append([]string(nil), claims.Permissions...)
		subject.HasPermissions = true
	case strings.TrimSpace(claims.Scope) != "":
		subject.Permissions = strings.Fields(claims.Scope)
		subject.HasPermissions = true
	}
	return subject, nil
}

func classify(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return unauthorized(CodeTokenExpired, "Token expired.", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return unauthorized(CodeInvalidClaims, "Incorrect claims. Please, check the audience and issuer.", err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing), errors.Is(err, jwt.ErrTokenNotValidYet):
		return unauthorized(CodeInvalidClaims, "Token claims are not valid.", err)
	default:
		return unauthorized(CodeInvalidHeader, "Unable to parse authentication token.", err)
	}
}
