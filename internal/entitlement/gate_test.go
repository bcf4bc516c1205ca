package entitlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankwise/internal/db"
	"rankwise/internal/models"
)

type fakeLedger struct {
	mu       sync.Mutex
	counts   map[string]int
	readErr  error
	writeErr error
	reads    int
	writes   int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{counts: make(map[string]int)}
}

func ledgerKey(identifier string, day time.Time) string {
	return identifier + "|" + models.LedgerDay(day)
}

func (f *fakeLedger) GetQuotaCount(_ context.Context, identifier string, day time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return 0, f.readErr
	}
	count, ok := f.counts[ledgerKey(identifier, day)]
	if !ok {
		return 0, db.ErrLedgerEntryNotFound
	}
	return count, nil
}

func (f *fakeLedger) IncrementQuota(_ context.Context, identifier string, day time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	key := ledgerKey(identifier, day)
	f.counts[key]++
	return f.counts[key], nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var anon = models.AnonymousIdentity("192.0.2.10")

func TestGate_AdmitsUpToLimit(t *testing.T) {
	ledger := newFakeLedger()
	gate := NewGate(ledger, 5, nil, WithClock(fixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d := gate.Admit(ctx, anon)
		require.True(t, d.Allowed, "action %d", i)
		assert.Equal(t, 5-i, d.Remaining.Count())
		assert.Equal(t, models.QuotaModeDurable, d.Mode)
	}

	d := gate.Admit(ctx, anon)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining.Count())
	assert.False(t, d.Remaining.IsUnlimited())
	assert.Equal(t, 5, ledger.writes, "rejected action must not increment")
}

func TestGate_NewDayStartsFresh(t *testing.T) {
	ledger := newFakeLedger()
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	gate := NewGate(ledger, 2, nil, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	gate.Admit(ctx, anon)
	gate.Admit(ctx, anon)
	require.False(t, gate.Admit(ctx, anon).Allowed)

	now = now.Add(2 * time.Minute)
	d := gate.Admit(ctx, anon)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining.Count())
}

func TestGate_PremiumIsUnlimited(t *testing.T) {
	ledger := newFakeLedger()
	gate := NewGate(ledger, 5, nil)
	id := uuid.New()
	premium := models.CallerIdentity{Identifier: id.String(), UserID: &id, Authenticated: true, Premium: true}

	for i := 0; i < 5*10; i++ {
		d := gate.Admit(context.Background(), premium)
		require.True(t, d.Allowed)
		require.True(t, d.Remaining.IsUnlimited())
		require.Equal(t, models.QuotaModeUnlimited, d.Mode)
	}
	assert.Zero(t, ledger.reads)
	assert.Zero(t, ledger.writes)
}

func TestGate_DegradesOnReadError(t *testing.T) {
	ledger := newFakeLedger()
	ledger.readErr = errors.New("connection refused")
	fallback := NewMemoryCounter()
	gate := NewGate(ledger, 3, nil, WithFallback(fallback))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d := gate.Admit(ctx, anon)
		require.True(t, d.Allowed)
		assert.True(t, d.Degraded())
		assert.Equal(t, 3-i, d.Remaining.Count())
	}
	d := gate.Admit(ctx, anon)
	assert.False(t, d.Allowed)
	assert.True(t, d.Degraded())
	assert.Zero(t, ledger.writes)
	assert.Equal(t, 1, fallback.Len())
}

func TestGate_WriteFailureStillAdmits(t *testing.T) {
	ledger := newFakeLedger()
	ledger.writeErr = errors.New("disk full")
	gate := NewGate(ledger, 5, nil)

	d := gate.Admit(context.Background(), anon)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining.Count())
	assert.Equal(t, models.QuotaModeDurable, d.Mode)
}

func TestGate_NilLedgerIsDegraded(t *testing.T) {
	gate := NewGate(nil, 1, nil)

	d := gate.Admit(context.Background(), anon)
	assert.True(t, d.Allowed)
	assert.True(t, d.Degraded())
	assert.False(t, gate.Admit(context.Background(), anon).Allowed)
}

func TestGate_Peek(t *testing.T) {
	ledger := newFakeLedger()
	gate := NewGate(ledger, 5, nil)
	ctx := context.Background()

	d := gate.Peek(ctx, anon)
	assert.True(t, d.Allowed)
	assert.Equal(t, 5, d.Remaining.Count())

	gate.Admit(ctx, anon)
	gate.Admit(ctx, anon)

	d = gate.Peek(ctx, anon)
	assert.Equal(t, 3, d.Remaining.Count())
	assert.Equal(t, 2, ledger.writes, "peek must not increment")

	ledger.readErr = errors.New("timeout")
	d = gate.Peek(ctx, anon)
	assert.True(t, d.Degraded())
	assert.Equal(t, 5, d.Remaining.Count())

	assert.True(t, gate.Peek(ctx, models.CallerIdentity{Identifier: "x", Premium: true}).Remaining.IsUnlimited())
}

func TestGate_DefaultLimit(t *testing.T) {
	assert.Equal(t, DefaultDailyLimit, NewGate(nil, 0, nil).Limit())
}

func TestMemoryCounter_Prune(t *testing.T) {
	m := NewMemoryCounter()
	m.Admit("a", "2026-02-27", 5)
	m.Admit("a", "2026-02-28", 5)
	m.Admit("b", "2026-03-01", 5)

	removed := m.Prune("2026-03-01")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, m.Count("b", "2026-03-01"))
}

func TestMemoryCounter_Concurrent(t *testing.T) {
	m := NewMemoryCounter()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.Admit("c", "2026-03-01", 5); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, allowed)
}
