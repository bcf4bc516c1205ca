package entitlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rankwise/internal/db"
	"rankwise/internal/models"
)

// IdentityStore is the read-only view of users and subscriptions.
type IdentityStore interface {
	GetUserBySub(ctx context.Context, sub string) (*models.User, error)
	HasActiveSubscription(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error)
}

// PremiumPolicy lists the role and plan names that grant premium access.
// Matching is case-insensitive.
type PremiumPolicy struct {
	Roles []string
	Plans []string
}

// DefaultPremiumPolicy is used when the config file does not override it.
var DefaultPremiumPolicy = PremiumPolicy{
	Roles: []string{models.RolePremium, models.RoleAdmin, "pro"},
	Plans: []string{"premium", "pro", "plus", "business"},
}

// Resolver turns a bearer token and network address into a CallerIdentity.
type Resolver struct {
	verifier TokenVerifier
	store    IdentityStore
	policy   PremiumPolicy
	logger   *zap.Logger
	now      func() time.Time
}

func NewResolver(verifier TokenVerifier, store IdentityStore, policy PremiumPolicy, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		verifier: verifier,
		store:    store,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// Resolve never fails. Any problem with the token or the identity store
// yields an anonymous identity keyed by address.
func (r *Resolver) Resolve(ctx context.Context, token, address string) models.CallerIdentity {
	anonymous := models.AnonymousIdentity(address)

	token = strings.TrimSpace(token)
	if token == "" || r.verifier == nil || r.store == nil {
		return anonymous
	}

	claims, err := r.verifier.Verify(ctx, token)
	if err != nil {
		r.logger.Debug("bearer token rejected", zap.Error(err))
		return anonymous
	}

	user, err := r.store.GetUserBySub(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			r.logger.Warn("identity lookup failed", zap.String("sub", claims.Subject), zap.Error(err))
		}
		return anonymous
	}

	userID := user.ID
	return models.CallerIdentity{
		Identifier:    userID.String(),
		UserID:        &userID,
		Authenticated: true,
		Premium:       r.isPremium(ctx, user, claims),
	}
}

// isPremium checks profile flags, then token claims, then the subscriptions
// table, stopping at the first match.
func (r *Resolver) isPremium(ctx context.Context, user *models.User, claims *Claims) bool {
	if user.HasRole(r.policy.Roles...) || r.policy.grants(user.Metadata) {
		return true
	}
	if r.policy.grants(claims.AppMetadata) {
		return true
	}

	active, err := r.store.HasActiveSubscription(ctx, user.ID, r.now())
	if err != nil {
		r.logger.Warn("subscription lookup failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return false
	}
	return active
}

// grants inspects a free-form flag map for any sign of premium access.
func (p PremiumPolicy) grants(flags map[string]any) bool {
	if len(flags) == 0 {
		return false
	}

	for _, key := range []string{"is_premium", "premium"} {
		if truthy(flags[key]) {
			return true
		}
	}
	if s, ok := flags["role"].(string); ok && matchAny(s, p.Roles) {
		return true
	}
	if roles, ok := flags["roles"].([]any); ok {
		for _, role := range roles {
			if s, ok := role.(string); ok && matchAny(s, p.Roles) {
				return true
			}
		}
	}
	for _, key := range []string{"plan", "tier"} {
		if s, ok := flags[key].(string); ok && matchAny(s, p.Plans) {
			return true
		}
	}
	if s, ok := flags["subscription_status"].(string); ok && strings.EqualFold(strings.TrimSpace(s), models.SubscriptionActive) {
		return true
	}
	switch sub := flags["subscription"].(type) {
	case string:
		return matchAny(sub, p.Plans) || strings.EqualFold(strings.TrimSpace(sub), models.SubscriptionActive)
	case map[string]any:
		status, _ := sub["status"].(string)
		return strings.EqualFold(strings.TrimSpace(status), models.SubscriptionActive)
	}
	return false
}

func matchAny(value string, names []string) bool {
	value = strings.TrimSpace(value)
	for _, n := range names {
		if strings.EqualFold(value, n) {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "1":
			return true
		}
	case float64:
		return val != 0
	}
	return false
}
