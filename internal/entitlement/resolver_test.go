package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankwise/internal/db"
	"rankwise/internal/models"
)

type stubVerifier struct {
	claims *Claims
	err    error
}

func (s stubVerifier) Verify(context.Context, string) (*Claims, error) {
	return s.claims, s.err
}

type fakeStore struct {
	users      map[string]*models.User
	userErr    error
	active     bool
	subErr     error
	subQueries int
}

func (f *fakeStore) GetUserBySub(_ context.Context, sub string) (*models.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	u, ok := f.users[sub]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) HasActiveSubscription(context.Context, uuid.UUID, time.Time) (bool, error) {
	f.subQueries++
	return f.active, f.subErr
}

func newUser(sub, role string, metadata map[string]any) *models.User {
	return &models.User{ID: uuid.New(), Sub: sub, Role: role, Metadata: metadata}
}

func TestResolver_Anonymous(t *testing.T) {
	store := &fakeStore{users: map[string]*models.User{}}

	tests := []struct {
		name     string
		verifier TokenVerifier
		token    string
	}{
		{"no token", stubVerifier{claims: &Claims{Subject: "s"}}, ""},
		{"blank token", stubVerifier{claims: &Claims{Subject: "s"}}, "   "},
		{"invalid token", stubVerifier{err: ErrInvalidToken}, "abc"},
		{"unknown user", stubVerifier{claims: &Claims{Subject: "ghost"}}, "abc"},
		{"no verifier", nil, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.verifier, store, DefaultPremiumPolicy, nil)
			got := r.Resolve(context.Background(), tt.token, "198.51.100.4")

			assert.Equal(t, "198.51.100.4", got.Identifier)
			assert.False(t, got.Authenticated)
			assert.False(t, got.Premium)
			assert.Nil(t, got.UserID)
		})
	}
}

func TestResolver_StoreErrorDegradesToAnonymous(t *testing.T) {
	store := &fakeStore{userErr: errors.New("too many connections")}
	r := NewResolver(stubVerifier{claims: &Claims{Subject: "s"}}, store, DefaultPremiumPolicy, nil)

	got := r.Resolve(context.Background(), "tok", "")
	assert.Equal(t, "unknown", got.Identifier)
	assert.False(t, got.Authenticated)
}

func TestResolver_PremiumOrder(t *testing.T) {
	tests := []struct {
		name        string
		user        *models.User
		appMetadata map[string]any
		active      bool
		subErr      error
		premium     bool
		subQueried  bool
	}{
		{
			name:    "role column",
			user:    newUser("s", "Premium", nil),
			premium: true,
		},
		{
			name:    "metadata flag",
			user:    newUser("s", models.RoleUser, map[string]any{"is_premium": true}),
			premium: true,
		},
		{
			name:    "metadata plan",
			user:    newUser("s", models.RoleUser, map[string]any{"plan": "PRO"}),
			premium: true,
		},
		{
			name:    "metadata subscription object",
			user:    newUser("s", models.RoleUser, map[string]any{"subscription": map[string]any{"status": "active"}}),
			premium: true,
		},
		{
			name:        "token app_metadata claim",
			user:        newUser("s", models.RoleUser, map[string]any{"plan": "free"}),
			appMetadata: map[string]any{"roles": []any{"reader", "premium"}},
			premium:     true,
		},
		{
			name:       "subscription row",
			user:       newUser("s", models.RoleUser, nil),
			active:     true,
			premium:    true,
			subQueried: true,
		},
		{
			name:       "subscription lookup error",
			user:       newUser("s", models.RoleUser, nil),
			active:     true,
			subErr:     errors.New("timeout"),
			premium:    false,
			subQueried: true,
		},
		{
			name:       "nothing",
			user:       newUser("s", models.RoleUser, map[string]any{"is_premium": "false", "tier": "basic"}),
			premium:    false,
			subQueried: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{
				users:  map[string]*models.User{"s": tt.user},
				active: tt.active,
				subErr: tt.subErr,
			}
			v := stubVerifier{claims: &Claims{Subject: "s", AppMetadata: tt.appMetadata}}
			r := NewResolver(v, store, DefaultPremiumPolicy, nil)

			got := r.Resolve(context.Background(), "tok", "203.0.113.1")

			require.True(t, got.Authenticated)
			require.NotNil(t, got.UserID)
			assert.Equal(t, tt.user.ID.String(), got.Identifier)
			assert.Equal(t, tt.premium, got.Premium)
			assert.Equal(t, tt.subQueried, store.subQueries > 0)
		})
	}
}

func TestPremiumPolicy_Grants(t *testing.T) {
	p := PremiumPolicy{Roles: []string{"vip"}, Plans: []string{"gold"}}

	assert.True(t, p.grants(map[string]any{"role": "VIP"}))
	assert.True(t, p.grants(map[string]any{"tier": " gold "}))
	assert.True(t, p.grants(map[string]any{"premium": "yes"}))
	assert.True(t, p.grants(map[string]any{"subscription_status": "Active"}))
	assert.True(t, p.grants(map[string]any{"subscription": "gold"}))
	assert.False(t, p.grants(map[string]any{"role": "premium"}))
	assert.False(t, p.grants(map[string]any{"plan": 3}))
	assert.False(t, p.grants(nil))
}
