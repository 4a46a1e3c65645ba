package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coffeeshop/internal/auth"
	"coffeeshop/internal/auth/authtest"
)

func TestVerifyValidToken(t *testing.T) {
	iss := authtest.NewIssuer(t)
	v := iss.Verifier(t)

	subject, err := v.Authenticate(context.Background(), "Bearer "+iss.Token(t, "auth0|manager", "get:drinks", "post:drinks"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if subject.ID != "auth0|manager" || !subject.HasPermissions || len(subject.Permissions) != 2 {
		t.Fatalf("unexpected subject: %#v", subject)
	}
}

func TestVerifyPermissionsClaimAbsent(t *testing.T) {
	iss := authtest.NewIssuer(t)
	claims := authtest.Claims("auth0|guest", time.Hour, nil)
	subject, err := iss.Verifier(t).Verify(context.Background(), iss.Sign(t, claims))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject.HasPermissions {
		t.Fatalf("expected no permissions claim, got %#v", subject)
	}
}

func TestVerifyScopeFallback(t *testing.T) {
	iss := authtest.NewIssuer(t)
	claims := authtest.Claims("auth0|barista", time.Hour, nil)
	claims.Scope = "get:drinks get:drinks-detail"
	subject, err := iss.Verifier(t).Verify(context.Background(), iss.Sign(t, claims))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !subject.HasPermissions || len(subject.Permissions) != 2 || subject.Permissions[1] != "get:drinks-detail" {
		t.Fatalf("unexpected subject: %#v", subject)
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var aerr *auth.Error
	if !errors.As(err, &aerr) {
		t.Fatalf("expected *auth.Error, got %v", err)
	}
	if aerr.Code != code {
		t.Fatalf("code = %s, want %s (%v)", aerr.Code, code, err)
	}
}

func TestVerifyMissingSubject(t *testing.T) {
	iss := authtest.NewIssuer(t)
	_, err := iss.Verifier(t).Verify(context.Background(), iss.Token(t, "", "get:drinks"))
	assertCode(t, err, auth.CodeInvalidClaims)
}

func TestVerifyExpiredToken(t *testing.T) {
	iss := authtest.NewIssuer(t)
	claims := authtest.Claims("auth0|manager", -time.Minute, []string{"get:drinks"})
	_, err := iss.Verifier(t).Verify(context.Background(), iss.Sign(t, claims))
	assertCode(t, err, auth.CodeTokenExpired)
}

func TestVerifyWrongAudience(t *testing.T) {
	iss := authtest.NewIssuer(t)
	claims := authtest.Claims("auth0|manager", time.Hour, []string{"get:drinks"})
	claims.Audience = jwt.ClaimStrings{"someone-else"}
	_, err := iss.Verifier(t).Verify(context.Background(), iss.Sign(t, claims))
	assertCode(t, err, auth.CodeInvalidClaims)
}

func TestVerifyWrongIssuer(t *testing.T) {
	iss := authtest.NewIssuer(t)
	claims := authtest.Claims("auth0|manager", time.Hour, []string{"get:drinks"})
	claims.Issuer = "https://evil.test/"
	_, err := iss.Verifier(t).Verify(context.Background(), iss.Sign(t, claims))
	assertCode(t, err, auth.CodeInvalidClaims)
}

func TestVerifyForeignSignature(t *testing.T) {
	trusted := authtest.NewIssuer(t)
	foreign := authtest.NewIssuer(t)
	_, err := trusted.Verifier(t).Verify(context.Background(), foreign.Token(t, "auth0|mallory", "delete:drinks"))
	assertCode(t, err, auth.CodeInvalidHeader)
}

func TestVerifyRejectsHMAC(t *testing.T) {
	iss := authtest.NewIssuer(t)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, authtest.Claims("auth0|mallory", time.Hour, []string{"delete:drinks"})).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = iss.Verifier(t).Verify(context.Background(), tok)
	assertCode(t, err, auth.CodeInvalidHeader)
}

func TestVerifyGarbage(t *testing.T) {
	iss := authtest.NewIssuer(t)
	_, err := iss.Verifier(t).Verify(context.Background(), "not-a-jwt")
	assertCode(t, err, auth.CodeInvalidHeader)
}

func TestNewVerifierRequiresAudienceAndIssuer(t *testing.T) {
	kf := auth.StaticKeyfunc(nil)
	if _, err := auth.NewVerifier(kf, auth.Config{Issuer: "https://x/"}); err == nil {
		t.Fatal("expected error without audience")
	}
	if _, err := auth.NewVerifier(kf, auth.Config{Audience: "x"}); err == nil {
		t.Fatal("expected error without issuer")
	}
}

func TestDomainURLs(t *testing.T) {
	if got := auth.JWKSURL("coffee.eu.auth0.com"); got != "https://coffee.eu.auth0.com/.well-known/jwks.json" {
		t.Fatalf("jwks url = %s", got)
	}
	if got := auth.IssuerURL("https://coffee.eu.auth0.com/"); got != "https://coffee.eu.auth0.com/" {
		t.Fatalf("issuer url = %s", got)
	}
}
