package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rankwise/internal/models"
)

// HasActiveSubscription reports whether the user has an active subscription
// whose period has not ended at now. A null period end never expires.
func (d *DB) HasActiveSubscription(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	var active bool
	err := d.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE user_id = $1 AND status = $2 AND (current_period_end IS NULL OR current_period_end > $3)
		)
	`, userID, models.SubscriptionActive, now).Scan(&active)
	if err != nil {
		return false, err
	}
	return active, nil
}
