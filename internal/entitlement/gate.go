package entitlement

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"rankwise/internal/db"
	"rankwise/internal/models"
)

// DefaultDailyLimit is the number of actions a non-premium identifier may
// take per UTC day.
const DefaultDailyLimit = 5

// Ledger is the durable per-identifier, per-day counter.
type Ledger interface {
	// GetQuotaCount returns db.ErrLedgerEntryNotFound when no row exists.
	GetQuotaCount(ctx context.Context, identifier string, day time.Time) (int, error)
	IncrementQuota(ctx context.Context, identifier string, day time.Time) (int, error)
}

// Gate admits or rejects actions against the daily quota.
type Gate struct {
	ledger   Ledger
	fallback *MemoryCounter
	limit    int
	logger   *zap.Logger
	now      func() time.Time
}

type GateOption func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// WithFallback sets the counter used when the ledger cannot be read.
func WithFallback(m *MemoryCounter) GateOption {
	return func(g *Gate) { g.fallback = m }
}

// NewGate builds a gate. A nil ledger runs every decision in degraded mode.
func NewGate(ledger Ledger, limit int, logger *zap.Logger, opts ...GateOption) *Gate {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		ledger: ledger,
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.fallback == nil {
		g.fallback = NewMemoryCounter()
	}
	return g
}

// Limit returns the daily limit.
func (g *Gate) Limit() int { return g.limit }

// Fallback returns the in-process counter used in degraded mode.
func (g *Gate) Fallback() *MemoryCounter { return g.fallback }

// Admit consumes one action for identity if the quota allows it.
//
// Premium identities are always admitted without touching the ledger. A
// genuine ledger read error switches to the in-process counter for this
// decision. A failed increment after a successful read is logged and the
// admission stands.
func (g *Gate) Admit(ctx context.Context, identity models.CallerIdentity) models.QuotaDecision {
	if identity.Premium {
		return unlimitedDecision()
	}

	now := g.now()
	count, err := g.readCount(ctx, identity.Identifier, now)
	if err != nil {
		g.logger.Warn("quota ledger unavailable, using in-process counter",
			zap.String("identifier", identity.Identifier),
			zap.Error(err),
		)
		allowed, remaining := g.fallback.Admit(identity.Identifier, models.LedgerDay(now), g.limit)
		return models.QuotaDecision{
			Allowed:   allowed,
			Remaining: models.RemainingCount(remaining),
			Mode:      models.QuotaModeDegraded,
			Limit:     g.limit,
		}
	}

	if count >= g.limit {
		return models.QuotaDecision{
			Allowed:   false,
			Remaining: models.RemainingCount(0),
			Mode:      models.QuotaModeDurable,
			Limit:     g.limit,
		}
	}

	if _, err := g.ledger.IncrementQuota(ctx, identity.Identifier, now); err != nil {
		g.logger.Error("quota ledger increment failed, admitting anyway",
			zap.String("identifier", identity.Identifier),
			zap.Error(err),
		)
	}

	return models.QuotaDecision{
		Allowed:   true,
		Remaining: models.RemainingCount(g.limit - (count + 1)),
		Mode:      models.QuotaModeDurable,
		Limit:     g.limit,
	}
}

// Peek reports the quota state for identity without consuming anything.
func (g *Gate) Peek(ctx context.Context, identity models.CallerIdentity) models.QuotaDecision {
	if identity.Premium {
		return unlimitedDecision()
	}

	now := g.now()
	mode := models.QuotaModeDurable
	count, err := g.readCount(ctx, identity.Identifier, now)
	if err != nil {
		mode = models.QuotaModeDegraded
		count = g.fallback.Count(identity.Identifier, models.LedgerDay(now))
	}

	return models.QuotaDecision{
		Allowed:   count < g.limit,
		Remaining: models.RemainingCount(g.limit - count),
		Mode:      mode,
		Limit:     g.limit,
	}
}

func (g *Gate) readCount(ctx context.Context, identifier string, now time.Time) (int, error) {
	if g.ledger == nil {
		return 0, errors.New("no quota ledger configured")
	}
	count, err := g.ledger.GetQuotaCount(ctx, identifier, now)
	if errors.Is(err, db.ErrLedgerEntryNotFound) {
		return 0, nil
	}
	return count, err
}

func unlimitedDecision() models.QuotaDecision {
	return models.QuotaDecision{
		Allowed:   true,
		Remaining: models.Unlimited(),
		Mode:      models.QuotaModeUnlimited,
	}
}

type counterKey struct {
	identifier string
	day        string
}

// MemoryCounter is the degraded-mode quota counter. It lives in one process
// only, so with several replicas each one admits up to the limit on its own.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[counterKey]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[counterKey]int)}
}

// Admit applies the same check-then-increment rule as the ledger and returns
// whether the action is allowed and how many remain.
func (m *MemoryCounter) Admit(identifier, day string, limit int) (bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := counterKey{identifier, day}
	count := m.counts[key]
	if count >= limit {
		return false, 0
	}
	m.counts[key] = count + 1
	return true, limit - (count + 1)
}

// Count returns the current count for identifier on day.
func (m *MemoryCounter) Count(identifier, day string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[counterKey{identifier, day}]
}

// Prune drops every entry for days before today and returns how many were removed.
func (m *MemoryCounter) Prune(today string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.counts {
		if key.day < today {
			delete(m.counts, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked (identifier, day) pairs.
func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counts)
}
