// Package authtest выпускает подписанные токены для тестов.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coffeeshop/internal/auth"
)

// Тестовые issuer и audience.
const (
	Issuer   = "https://coffeeshop.test/"
	Audience = "coffeeshop"
)

// TokenIssuer подписывает токены тестовым RSA-ключом.
type TokenIssuer struct {
	Key *rsa.PrivateKey
}

// NewIssuer генерирует ключ RSA-2048.
func NewIssuer(t testing.TB) *TokenIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return &TokenIssuer{Key: key}
}

// Verifier возвращает verifier, принимающий токены этого issuer.
func (i *TokenIssuer) Verifier(t testing.TB) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier(auth.StaticKeyfunc(&i.Key.PublicKey), auth.Config{Issuer: Issuer, Audience: Audience})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

// Sign подписывает произвольный набор claims.
func (i *TokenIssuer) Sign(t testing.TB, claims auth.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.Key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

// Token выпускает валидный на час токен с разрешениями.
func (i *TokenIssuer) Token(t testing.TB, subject string, permissions ...string) string {
	t.Helper()
	// Пустой список сохраняет claim, в отличие от nil.
	if permissions == nil {
		permissions = []string{}
	}
	return i.Sign(t, Claims(subject, time.Hour, permissions))
}

// Claims строит стандартный набор claims со сроком жизни ttl.
func Claims(subject string, ttl time.Duration, permissions []string) auth.Claims {
	now := time.Now()
	return auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Permissions: permissions,
	}
}
