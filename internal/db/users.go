package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rankwise/internal/models"
)

const userColumns = `id, sub, email, role, metadata, created_at, updated_at`

// GetUserBySub retrieves a user by the subject claim of their token.
func (d *DB) GetUserBySub(ctx context.Context, sub string) (*models.User, error) {
	var (
		user     models.User
		metadata []byte
	)
	err := d.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE sub = $1`, sub).Scan(
		&user.ID,
		&user.Sub,
		&user.Email,
		&user.Role,
		&metadata,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &user.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for user %s: %w", user.ID, err)
		}
	}

	return &user, nil
}
