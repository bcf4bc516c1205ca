package api

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"

	"rankwise/internal/models"
)

// Error codes carried in the "code" field of failed responses.
const (
	CodeInvalidBody      = "invalid_body"
	CodeMissingSeed      = "missing_seed"
	CodeInvalidURL       = "invalid_url"
	CodeMissingKeywords  = "missing_keywords"
	CodeQuotaExceeded    = "quota_exceeded"
	CodeModelUnavailable = "model_unavailable"
	CodeParseFailed      = "parse_failed"
	CodeNoData           = "no_data"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeInternal         = "internal_error"
)

// QuotaGate admits and inspects actions against the daily quota.
type QuotaGate interface {
	Admit(ctx context.Context, identity models.CallerIdentity) models.QuotaDecision
	Peek(ctx context.Context, identity models.CallerIdentity) models.QuotaDecision
}

// envelope adds the fields every action response carries.
func envelope(success bool, premium bool, decision *models.QuotaDecision, data fiber.Map) fiber.Map {
	body := fiber.Map{"success": success, "premium": premium}
	if decision != nil {
		body["remaining"] = decision.Remaining
	}
	for k, v := range data {
		body[k] = v
	}
	return body
}

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, identity models.CallerIdentity, decision models.QuotaDecision, data fiber.Map) error {
	return c.JSON(envelope(true, identity.Premium, &decision, data))
}

// jsonFailure returns a 200 response for an upstream failure: the action was
// accepted but produced nothing usable.
func jsonFailure(c fiber.Ctx, identity models.CallerIdentity, decision models.QuotaDecision, code, message string, data fiber.Map) error {
	body := envelope(false, identity.Premium, &decision, data)
	body["code"] = code
	body["error"] = message
	return c.JSON(body)
}

// jsonError returns an error response with the given HTTP status code.
// decision may be nil when the quota was never consulted.
func jsonError(c fiber.Ctx, status int, identity models.CallerIdentity, decision *models.QuotaDecision, code, message string) error {
	body := envelope(false, identity.Premium, decision, nil)
	body["code"] = code
	body["error"] = message
	return c.Status(status).JSON(body)
}

// quotaExceeded always reports remaining 0.
func quotaExceeded(c fiber.Ctx, identity models.CallerIdentity, decision models.QuotaDecision) error {
	decision.Remaining = models.RemainingCount(0)
	return jsonError(c, fiber.StatusTooManyRequests, identity, &decision,
		CodeQuotaExceeded, "Daily limit reached. Upgrade to premium or try again tomorrow.")
}

// Action restricts a handler to one method. OPTIONS gets an empty 204 and
// any other method a 405 with an Allow header.
func Action(method string, handler fiber.Handler) fiber.Handler {
	return func(c fiber.Ctx) error {
		switch c.Method() {
		case method:
			return handler(c)
		case fiber.MethodOptions:
			c.Set(fiber.HeaderAllow, strings.Join([]string{method, fiber.MethodOptions}, ", "))
			return c.SendStatus(fiber.StatusNoContent)
		default:
			c.Set(fiber.HeaderAllow, strings.Join([]string{method, fiber.MethodOptions}, ", "))
			return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
				"success": false,
				"code":    CodeMethodNotAllowed,
				"error":   c.Method() + " is not supported on this endpoint",
			})
		}
	}
}
