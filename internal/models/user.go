package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role constants
const (
	RoleUser    = "user"
	RolePremium = "premium"
	RoleAdmin   = "admin"
)

// User represents an account in the identity store, keyed by the token subject.
type User struct {
	ID        uuid.UUID      `json:"id"`
	Sub       string         `json:"sub"` // token subject identifier
	Email     string         `json:"email"`
	Role      string         `json:"role"`     // user, premium, admin
	Metadata  map[string]any `json:"metadata"` // free-form profile metadata
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// HasRole reports whether the user's role column matches any of roles, case-insensitively.
func (u *User) HasRole(roles ...string) bool {
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(u.Role), r) {
			return true
		}
	}
	return false
}

// Subscription status values of the subscriptions table
const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionPastDue  = "past_due"
)
