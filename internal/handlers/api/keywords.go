package api

import (
	"encoding/json"
	"net/url"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"rankwise/internal/extract"
	"rankwise/internal/llm"
	"rankwise/internal/metrics"
	"rankwise/internal/middleware"
	"rankwise/internal/research"
	"rankwise/internal/validation"
)

// KeywordHandler generates keyword ideas for a seed keyword or site.
type KeywordHandler struct {
	gate      QuotaGate
	client    llm.Client
	extractor *extract.Extractor
	opts      llm.Options
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewKeywordHandler creates a new API keyword handler.
func NewKeywordHandler(gate QuotaGate, client llm.Client, extractor *extract.Extractor, opts llm.Options, m *metrics.Metrics, logger *zap.Logger) *KeywordHandler {
	if extractor == nil {
		extractor = extract.NewExtractor(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordHandler{gate: gate, client: client, extractor: extractor, opts: opts, metrics: m, logger: logger}
}

type keywordsRequest struct {
	Keyword string `json:"keyword"`
	URL     string `json:"url"`
	// RawText is a previous completion to parse again, e.g. after the
	// extractor learned a new alias. It costs no quota.
	RawText string `json:"rawText"`
}

// Generate handles POST /api/keywords.
func (h *KeywordHandler) Generate(c fiber.Ctx) error {
	identity := middleware.GetIdentity(c)

	var body keywordsRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, identity, nil, CodeInvalidBody, "Request body must be a JSON object")
	}

	if body.RawText != "" {
		return h.reparse(c, body.RawText)
	}

	seed := validation.NormalizeKeyword(body.Keyword)
	var site *url.URL
	if body.URL != "" {
		u, err := validation.NormalizeTargetURL(body.URL)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, identity, nil, CodeInvalidURL, "url must be a public http(s) address")
		}
		site = u
	}
	if seed == "" && site == nil {
		return jsonError(c, fiber.StatusBadRequest, identity, nil, CodeMissingSeed, "Provide a keyword or a url")
	}
	if seed != "" && !validation.ValidateKeyword(seed) {
		return jsonError(c, fiber.StatusBadRequest, identity, nil, CodeMissingSeed, "keyword must be 1-120 printable characters")
	}

	decision := h.gate.Admit(c.Context(), identity)
	h.metrics.ObserveQuota(decision)
	if !decision.Allowed {
		return quotaExceeded(c, identity, decision)
	}

	siteText := ""
	if site != nil {
		siteText = site.String()
	}
	text, err := h.client.Complete(c.Context(), research.KeywordIdeasPrompt(seed, siteText), h.opts)
	if err != nil {
		h.metrics.ObserveExtraction(research.OutcomeUnavailable)
		h.logger.Warn("keyword completion failed",
			zap.String("identifier", identity.Identifier),
			zap.Error(err),
		)
		return jsonFailure(c, identity, decision, CodeModelUnavailable,
			"The keyword service did not answer. Please try again shortly.", nil)
	}

	list, outcome := h.extractor.KeywordList(text)
	h.metrics.ObserveExtraction(outcome.String())
	if !outcome.OK() {
		h.logger.Info("keyword completion unparseable", zap.Int("chars", len(text)))
		return jsonFailure(c, identity, decision, CodeParseFailed,
			"The keyword service answered in an unexpected format.", fiber.Map{"rawText": text})
	}

	return jsonSuccess(c, identity, decision, fiber.Map{
		"keywords": list.Keywords,
		"rawText":  text,
	})
}

func (h *KeywordHandler) reparse(c fiber.Ctx, raw string) error {
	identity := middleware.GetIdentity(c)
	decision := h.gate.Peek(c.Context(), identity)

	list, outcome := h.extractor.KeywordList(raw)
	h.metrics.ObserveExtraction(outcome.String())
	if !outcome.OK() {
		return jsonFailure(c, identity, decision, CodeParseFailed,
			"rawText does not contain a keyword list.", nil)
	}
	return jsonSuccess(c, identity, decision, fiber.Map{
		"keywords": list.Keywords,
		"reparsed": true,
	})
}
