package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret", "https://auth.example.com")
	sub := uuid.NewString()

	token, err := v.Sign(sub, "Alice@Example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != sub {
		t.Errorf("subject = %q, want %q", claims.Subject, sub)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", claims.Email, "alice@example.com")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := NewVerifier("one", "").Sign(uuid.NewString(), "a@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewVerifier("two", "").Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	v := NewVerifier("secret", "")
	token, err := v.Sign(uuid.NewString(), "a@example.com", -time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	token, err := NewVerifier("secret", "https://other.example.com").Sign(uuid.NewString(), "a@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewVerifier("secret", "https://auth.example.com").Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsNonUUIDSubject(t *testing.T) {
	v := NewVerifier("secret", "")
	token, err := v.Sign("user-1", "a@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyMissingEmail(t *testing.T) {
	v := NewVerifier("secret", "")
	token, err := v.Sign(uuid.NewString(), "", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(token); !errors.Is(err, ErrMissingEmail) {
		t.Errorf("err = %v, want ErrMissingEmail", err)
	}
}

func TestVerifyRejectsNoneAlg(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "a@example.com",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewVerifier("secret", "").Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestClaimsName(t *testing.T) {
	c := &Claims{UserMetadata: map[string]any{"full_name": "Alice Smith"}}
	if got := c.Name(); got != "Alice Smith" {
		t.Errorf("Name() = %q, want %q", got, "Alice Smith")
	}
	if got := (&Claims{}).Name(); got != "" {
		t.Errorf("Name() = %q, want empty", got)
	}
}
