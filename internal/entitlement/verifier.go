package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoVerifier   = errors.New("no token verifier configured")
)

// Claims is what the resolver needs from a verified bearer token.
type Claims struct {
	Subject     string
	Email       string
	AppMetadata map[string]any
}

// TokenVerifier checks a raw bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Email       string         `json:"email,omitempty"`
	AppMetadata map[string]any `json:"app_metadata,omitempty"`
}

// JWTVerifier verifies HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewJWTVerifier returns a verifier for the secret. Issuer and audience are
// checked only when non-empty.
func NewJWTVerifier(secret, issuer, audience string) *JWTVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWTVerifier{secret: []byte(secret), opts: opts}
}

func (v *JWTVerifier) Verify(_ context.Context, raw string) (*Claims, error) {
	var claims jwtClaims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &Claims{
		Subject:     claims.Subject,
		Email:       claims.Email,
		AppMetadata: claims.AppMetadata,
	}, nil
}

// OIDCVerifier verifies ID tokens issued by an OIDC provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and verifies tokens for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", issuer, err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// NewOIDCVerifierFromKeySet builds a verifier without discovery.
func NewOIDCVerifierFromKeySet(issuer, clientID string, keySet oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: clientID})}
}

func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var extra struct {
		Email       string         `json:"email"`
		AppMetadata map[string]any `json:"app_metadata"`
	}
	if err := idToken.Claims(&extra); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return &Claims{
		Subject:     idToken.Subject,
		Email:       extra.Email,
		AppMetadata: extra.AppMetadata,
	}, nil
}

// Verifiers tries each verifier in order and returns the first success.
type Verifiers []TokenVerifier

func (vs Verifiers) Verify(ctx context.Context, raw string) (*Claims, error) {
	if len(vs) == 0 {
		return nil, ErrNoVerifier
	}
	var errs []error
	for _, v := range vs {
		claims, err := v.Verify(ctx, raw)
		if err == nil {
			return claims, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
