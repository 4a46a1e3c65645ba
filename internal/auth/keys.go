package auth

import (
	"context"
	"crypto"
	"fmt"
	"os"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// JWKSURL строит адрес набора ключей для домена identity provider.
func JWKSURL(domain string) string {
	return "https://" + strings.TrimSuffix(strings.TrimPrefix(domain, "https://"), "/") + "/.well-known/jwks.json"
}

// IssuerURL строит ожидаемый issuer для домена identity provider.
func IssuerURL(domain string) string {
	return "https://" + strings.TrimSuffix(strings.TrimPrefix(domain, "https://"), "/") + "/"
}

// NewJWKSKeyfunc загружает JWKS и обновляет его в фоне до отмены ctx.
func NewJWKSKeyfunc(ctx context.Context, url string) (jwt.Keyfunc, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{url})
	if err != nil {
		return nil, fmt.Errorf("load jwks %s: %w", url, err)
	}
	return k.Keyfunc, nil
}

// NewStaticKeyfunc читает PEM-файл с публичным ключом RSA или ECDSA.
func NewStaticKeyfunc(path string) (jwt.Keyfunc, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- путь к ключу задается оператором.
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	key, err := parsePublicKey(data)
	if err != nil {
		return nil, err
	}
	return StaticKeyfunc(key), nil
}

// StaticKeyfunc возвращает один и тот же ключ для любого токена.
func StaticKeyfunc(key crypto.PublicKey) jwt.Keyfunc {
	return func(*jwt.Token) (interface{}, error) {
		return key, nil
	}
}

func parsePublicKey(data []byte) (crypto.PublicKey, error) {
	if key, err := jwt.ParseRSAPublicKeyFromPEM(data); err == nil {
		return key, nil
	}
	if key, err := jwt.ParseECPublicKeyFromPEM(data); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("public key is neither RSA nor ECDSA PEM")
}
