package api

import (
	"github.com/gofiber/fiber/v3"

	"rankwise/internal/middleware"
)

// QuotaHandler reports the caller's quota without consuming it.
type QuotaHandler struct {
	gate QuotaGate
}

func NewQuotaHandler(gate QuotaGate) *QuotaHandler {
	return &QuotaHandler{gate: gate}
}

// Status handles GET /api/quota.
func (h *QuotaHandler) Status(c fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	decision := h.gate.Peek(c.Context(), identity)

	data := fiber.Map{
		"authenticated": identity.Authenticated,
		"mode":          decision.Mode,
	}
	if decision.Limit > 0 {
		data["limit"] = decision.Limit
	}
	return jsonSuccess(c, identity, decision, data)
}
