package committee

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTSignerProducesParseableToken(t *testing.T) {
	s := &JWTSigner{SigningKey: []byte("test-secret"), Issuer: "logweave", Subject: "drafter"}
	tok, err := s.Sign()
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	parsed, err := jwt.Parse(tok, func(*jwt.Token) (interface{}, error) { return s.SigningKey, nil })
	if err != nil || !parsed.Valid {
		t.Fatalf("Parse: valid=%v err=%v", parsed.Valid, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("expected MapClaims")
	}
	if claims["iss"] != "logweave" || claims["sub"] != "drafter" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestBearerTokenPrefersStaticThenJWTThenOAuth2(t *testing.T) {
	b := &HTTPBackend{Auth: AuthConfig{BearerToken: "static-token", JWT: &JWTSigner{SigningKey: []byte("k")}}}
	tok, err := b.bearerToken(context.Background())
	if err != nil {
		t.Fatalf("bearerToken: %v", err)
	}
	if tok != "static-token" {
		t.Fatalf("tok = %q, want static-token", tok)
	}

	b = &HTTPBackend{Auth: AuthConfig{JWT: &JWTSigner{SigningKey: []byte("k"), Issuer: "logweave"}}}
	tok, err = b.bearerToken(context.Background())
	if err != nil {
		t.Fatalf("bearerToken: %v", err)
	}
	if tok == "" {
		t.Fatal("expected a signed JWT, got empty string")
	}

	b = &HTTPBackend{}
	tok, err = b.bearerToken(context.Background())
	if err != nil {
		t.Fatalf("bearerToken: %v", err)
	}
	if tok != "" {
		t.Fatalf("tok = %q, want empty when no auth configured", tok)
	}
}
