package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"rankwise/internal/models"
)

var (
	ledgerIdentifiersDesc = prometheus.NewDesc(
		"rankwise_quota_ledger_identifiers",
		"Identifiers with at least one admitted action today (UTC)",
		nil, nil,
	)
	ledgerActionsDesc = prometheus.NewDesc(
		"rankwise_quota_ledger_actions",
		"Actions admitted through the durable ledger today (UTC)",
		nil, nil,
	)
)

// LedgerSource is the part of the database the ledger collector reads.
type LedgerSource interface {
	GetLedgerSummary(ctx context.Context, day time.Time) (models.LedgerSummary, error)
}

// LedgerCollector is a custom Prometheus collector that reads today's quota
// ledger totals from the database on each scrape.
type LedgerCollector struct {
	source  LedgerSource
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

// Describe sends the metric descriptors to the channel.
func (c *LedgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- ledgerIdentifiersDesc
	ch <- ledgerActionsDesc
}

// Collect queries the ledger summary and emits it as gauges.
func (c *LedgerCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	summary, err := c.source.GetLedgerSummary(ctx, c.now())
	if err != nil {
		c.logger.Error("failed to collect quota ledger metrics", zap.Error(err))
		return
	}
	ch <- prometheus.MustNewConstMetric(ledgerIdentifiersDesc, prometheus.GaugeValue, float64(summary.Identifiers))
	ch <- prometheus.MustNewConstMetric(ledgerActionsDesc, prometheus.GaugeValue, float64(summary.Actions))
}

// Metrics holds the request-path counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	quotaDecisions     *prometheus.CounterVec
	completionSignals  *prometheus.CounterVec
	researchKeywords   *prometheus.CounterVec
	keywordExtractions *prometheus.CounterVec
}

// New creates the counters and registers them, plus a ledger collector when
// source is non-nil, on reg.
func New(reg prometheus.Registerer, source LedgerSource, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		quotaDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankwise_quota_decisions_total",
			Help: "Quota admission decisions by accounting mode and outcome",
		}, []string{"mode", "outcome"}),
		completionSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankwise_completion_signals_total",
			Help: "Completion requests by research signal and outcome",
		}, []string{"signal", "outcome"}),
		researchKeywords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankwise_research_keywords_total",
			Help: "Keywords analyzed by outcome",
		}, []string{"outcome"}),
		keywordExtractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankwise_keyword_extractions_total",
			Help: "Keyword list extractions by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.quotaDecisions, m.completionSignals, m.researchKeywords, m.keywordExtractions)
	if source != nil {
		reg.MustRegister(&LedgerCollector{
			source:  source,
			logger:  logger,
			now:     time.Now,
			timeout: 5 * time.Second,
		})
	}
	return m
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Init registers the metrics on the default registry and returns them.
// Must be called once at startup; later calls return the same instance.
func Init(source LedgerSource, logger *zap.Logger) *Metrics {
	globalOnce.Do(func() {
		global = New(prometheus.DefaultRegisterer, source, logger)
	})
	return global
}

// ObserveQuota records one admission decision.
func (m *Metrics) ObserveQuota(d models.QuotaDecision) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !d.Allowed {
		outcome = "denied"
	}
	m.quotaDecisions.WithLabelValues(string(d.Mode), outcome).Inc()
}

// ObserveSignal records one completion request of the research pipeline.
func (m *Metrics) ObserveSignal(signal, outcome string) {
	if m == nil {
		return
	}
	m.completionSignals.WithLabelValues(signal, outcome).Inc()
}

// ObserveResearch adds n keywords with the given outcome ("ok", "no_data").
func (m *Metrics) ObserveResearch(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.researchKeywords.WithLabelValues(outcome).Add(float64(n))
}

// ObserveExtraction records the outcome of one keyword list extraction.
func (m *Metrics) ObserveExtraction(outcome string) {
	if m == nil {
		return
	}
	m.keywordExtractions.WithLabelValues(outcome).Inc()
}
