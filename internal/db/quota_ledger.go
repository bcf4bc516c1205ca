package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"rankwise/internal/models"
)

// ledgerDate truncates t to its UTC calendar day, the key of the ledger.
func ledgerDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// GetQuotaCount returns the number of admitted actions for identifier on the
// day containing day. It returns ErrLedgerEntryNotFound when no row exists.
func (d *DB) GetQuotaCount(ctx context.Context, identifier string, day time.Time) (int, error) {
	var count int
	err := d.Pool.QueryRow(ctx,
		`SELECT count FROM quota_ledger WHERE identifier = $1 AND day = $2`,
		identifier, ledgerDate(day),
	).Scan(&count)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrLedgerEntryNotFound
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// IncrementQuota adds one to the ledger row for identifier and day, creating
// it when absent, and returns the new count. The increment happens inside a
// single statement so concurrent requests cannot lose updates.
func (d *DB) IncrementQuota(ctx context.Context, identifier string, day time.Time) (int, error) {
	var count int
	err := d.Pool.QueryRow(ctx, `
		INSERT INTO quota_ledger (identifier, day, count, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (identifier, day) DO UPDATE
		SET count = quota_ledger.count + 1, updated_at = NOW()
		RETURNING count
	`, identifier, ledgerDate(day)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetLedgerSummary aggregates the ledger for one day, for metrics export.
func (d *DB) GetLedgerSummary(ctx context.Context, day time.Time) (models.LedgerSummary, error) {
	summary := models.LedgerSummary{Day: models.LedgerDay(day)}
	err := d.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(count), 0) FROM quota_ledger WHERE day = $1`,
		ledgerDate(day),
	).Scan(&summary.Identifiers, &summary.Actions)
	if err != nil {
		return models.LedgerSummary{}, err
	}
	return summary, nil
}

// PruneQuotaLedger deletes rows for days strictly before the day of before.
func (d *DB) PruneQuotaLedger(ctx context.Context, before time.Time) (int64, error) {
	tag, err := d.Pool.Exec(ctx, `DELETE FROM quota_ledger WHERE day < $1`, ledgerDate(before))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
