package entitlement

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signHS256(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestJWTVerifier(t *testing.T) {
	v := NewJWTVerifier(testSecret, "rankwise", "")
	exp := time.Now().Add(time.Hour).Unix()

	t.Run("valid", func(t *testing.T) {
		tok := signHS256(t, jwt.MapClaims{
			"sub":          "user-42",
			"iss":          "rankwise",
			"exp":          exp,
			"email":        "u@example.com",
			"app_metadata": map[string]any{"plan": "pro"},
		}, testSecret)

		claims, err := v.Verify(context.Background(), tok)
		require.NoError(t, err)
		assert.Equal(t, "user-42", claims.Subject)
		assert.Equal(t, "u@example.com", claims.Email)
		assert.Equal(t, "pro", claims.AppMetadata["plan"])
	})

	tests := []struct {
		name   string
		claims jwt.MapClaims
		secret string
	}{
		{"wrong secret", jwt.MapClaims{"sub": "u", "iss": "rankwise", "exp": exp}, "other-secret"},
		{"expired", jwt.MapClaims{"sub": "u", "iss": "rankwise", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret},
		{"no expiry", jwt.MapClaims{"sub": "u", "iss": "rankwise"}, testSecret},
		{"wrong issuer", jwt.MapClaims{"sub": "u", "iss": "someone-else", "exp": exp}, testSecret},
		{"no subject", jwt.MapClaims{"iss": "rankwise", "exp": exp}, testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), signHS256(t, tt.claims, tt.secret))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify(context.Background(), "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestOIDCVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	const issuer = "https://id.example.com/"
	v := NewOIDCVerifierFromKeySet(issuer, "rankwise-web",
		&oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}})

	sign := func(claims jwt.MapClaims) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		require.NoError(t, err)
		return tok
	}
	now := time.Now()

	claims, err := v.Verify(context.Background(), sign(jwt.MapClaims{
		"iss":          issuer,
		"aud":          "rankwise-web",
		"sub":          "oidc|7",
		"iat":          now.Unix(),
		"exp":          now.Add(time.Hour).Unix(),
		"app_metadata": map[string]any{"tier": "premium"},
	}))
	require.NoError(t, err)
	assert.Equal(t, "oidc|7", claims.Subject)
	assert.Equal(t, "premium", claims.AppMetadata["tier"])

	_, err = v.Verify(context.Background(), sign(jwt.MapClaims{
		"iss": issuer,
		"aud": "another-client",
		"sub": "oidc|7",
		"exp": now.Add(time.Hour).Unix(),
	}))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifiers(t *testing.T) {
	ok := stubVerifier{claims: &Claims{Subject: "second"}}
	bad := stubVerifier{err: errors.New("nope")}

	claims, err := Verifiers{bad, ok}.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "second", claims.Subject)

	_, err = Verifiers{bad, bad}.Verify(context.Background(), "tok")
	assert.Error(t, err)

	_, err = Verifiers{}.Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNoVerifier)
}
