package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// QuotaMode records which accounting produced a quota decision.
type QuotaMode string

const (
	// QuotaModeDurable means the decision came from the shared ledger table.
	QuotaModeDurable QuotaMode = "durable"
	// QuotaModeDegraded means the ledger read failed and a process-local
	// counter was used instead. Counts are not shared across instances.
	QuotaModeDegraded QuotaMode = "degraded"
	// QuotaModeUnlimited is used for premium callers; no accounting happened.
	QuotaModeUnlimited QuotaMode = "unlimited"
)

// LedgerDayLayout is the calendar-day key format of the quota ledger.
const LedgerDayLayout = "2006-01-02"

// LedgerDay returns the ledger day key for t in UTC.
func LedgerDay(t time.Time) string {
	return t.UTC().Format(LedgerDayLayout)
}

// LedgerSummary aggregates the ledger for a single day.
type LedgerSummary struct {
	Day         string
	Identifiers int64
	Actions     int64
}

// Remaining is either a non-negative count or "unlimited".
type Remaining struct {
	unlimited bool
	count     int
}

// Unlimited returns the remaining value used for premium callers.
func Unlimited() Remaining {
	return Remaining{unlimited: true}
}

// RemainingCount returns a bounded remaining value, floored at zero.
func RemainingCount(n int) Remaining {
	if n < 0 {
		n = 0
	}
	return Remaining{count: n}
}

// IsUnlimited reports whether r is the unlimited marker.
func (r Remaining) IsUnlimited() bool { return r.unlimited }

// Count returns the bounded count; zero when unlimited.
func (r Remaining) Count() int { return r.count }

func (r Remaining) String() string {
	if r.unlimited {
		return "unlimited"
	}
	return strconv.Itoa(r.count)
}

// MarshalJSON encodes unlimited as the literal string "unlimited" and counts as numbers.
func (r Remaining) MarshalJSON() ([]byte, error) {
	if r.unlimited {
		return []byte(`"unlimited"`), nil
	}
	return []byte(strconv.Itoa(r.count)), nil
}

// UnmarshalJSON accepts either form produced by MarshalJSON.
func (r *Remaining) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte(`"unlimited"`)) {
		*r = Unlimited()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("remaining: %w", err)
	}
	*r = RemainingCount(n)
	return nil
}

// QuotaDecision is the outcome of a quota admission check.
type QuotaDecision struct {
	Allowed   bool      `json:"allowed"`
	Remaining Remaining `json:"remaining"`
	Mode      QuotaMode `json:"mode"`
	Limit     int       `json:"limit,omitempty"`
}

// Degraded reports whether the decision came from the process-local fallback counter.
func (d QuotaDecision) Degraded() bool {
	return d.Mode == QuotaModeDegraded
}
