package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"rankwise/internal/metrics"
	"rankwise/internal/middleware"
	"rankwise/internal/models"
	"rankwise/internal/validation"
)

// Researcher runs keyword research batches.
type Researcher interface {
	NormalizeKeywords(keywords []string) []string
	MaxKeywords() int
	AnalyzeBatch(ctx context.Context, targetURL string, keywords []string) (models.ResearchBatch, error)
}

// ResearchHandler handles keyword research for a target site.
type ResearchHandler struct {
	gate       QuotaGate
	researcher Researcher
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewResearchHandler creates a new API research handler.
func NewResearchHandler(gate QuotaGate, researcher Researcher, m *metrics.Metrics, logger *zap.Logger) *ResearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResearchHandler{gate: gate, researcher: researcher, metrics: m, logger: logger}
}

type researchRequest struct {
	URL      string   `json:"url"`
	Keywords []string `json:"keywords"`
	Keyword  string   `json:"keyword"`
}

// Analyze handles POST /api/research. One action is admitted per request
// whatever the number of keywords.
func (h *ResearchHandler) Analyze(c fiber.Ctx) error {
	identity := middleware.GetIdentity(c)

	var body researchRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, identity, nil, CodeInvalidBody, "Request body must be a JSON object")
	}

	target, err := validation.NormalizeTargetURL(body.URL)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, identity, nil, CodeInvalidURL, "url must be a public http(s) address")
	}

	keywords := body.Keywords
	if body.Keyword != "" {
		keywords = append([]string{body.Keyword}, keywords...)
	}
	keywords = h.researcher.NormalizeKeywords(keywords)
	if len(keywords) == 0 {
		return jsonError(c, fiber.StatusBadRequest, identity, nil, CodeMissingKeywords,
			fmt.Sprintf("Provide between 1 and %d keywords", h.researcher.MaxKeywords()))
	}

	decision := h.gate.Admit(c.Context(), identity)
	h.metrics.ObserveQuota(decision)
	if !decision.Allowed {
		return quotaExceeded(c, identity, decision)
	}

	batch, err := h.researcher.AnalyzeBatch(c.Context(), target.String(), keywords)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			h.logger.Info("research aborted", zap.String("identifier", identity.Identifier), zap.Error(err))
		}
		return fmt.Errorf("research batch: %w", err)
	}

	h.metrics.ObserveResearch("ok", len(batch.Results))
	h.metrics.ObserveResearch(CodeNoData, len(batch.Errors))

	data := fiber.Map{
		"targetUrl": batch.TargetURL,
		"results":   batch.Results,
		"errors":    batch.Errors,
	}
	if len(batch.Results) == 0 {
		return jsonFailure(c, identity, decision, CodeNoData,
			"No research data could be recovered for these keywords.", data)
	}
	return jsonSuccess(c, identity, decision, data)
}
