package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/hotelhub/loyalty-engine/internal/service"
)

// ruleViolationMessage renders a rule violation for the UI. Reasons stay
// distinguishable so the frontend can tell "requires gold tier" apart
// from "coupon expired".
func ruleViolationMessage(rv *service.RuleViolationError) string {
	switch rv.Reason {
	case service.ReasonInactive:
		return "this offer is not active"
	case service.ReasonNotStarted:
		return "this offer is not valid yet"
	case service.ReasonExpired:
		return "this offer has expired"
	case service.ReasonTier:
		if rv.Detail != "" {
			return rv.Detail
		}
		return "your tier does not qualify for this offer"
	case service.ReasonUsageLimit:
		return "this offer has been fully redeemed"
	case service.ReasonPerUserLimit:
		return "you have already redeemed this offer the maximum number of times"
	case service.ReasonMinSpend:
		if rv.Detail != "" {
			return rv.Detail
		}
		return "order amount is below the minimum for this offer"
	default:
		return rv.Error()
	}
}

// mapServiceError translates the service error taxonomy to HTTP. The
// distinctions matter: insufficient points, rule violations, and
// retryable contention must stay separate status codes for the UI.
func mapServiceError(c *fiber.Ctx, err error, logMsg string) error {
	if rv, ok := service.AsRuleViolation(err); ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  ruleViolationMessage(rv),
			"reason": string(rv.Reason),
		})
	}

	switch {
	case errors.Is(err, service.ErrInsufficientBalance):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "insufficient point balance",
			"reason": "insufficient_balance",
		})
	case errors.Is(err, service.ErrCustomerNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "customer not found"})
	case errors.Is(err, service.ErrItemNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "catalog item not found"})
	case errors.Is(err, service.ErrRedemptionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "redemption not found"})
	case errors.Is(err, service.ErrCustomerExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "customer already registered"})
	case errors.Is(err, service.ErrItemExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "catalog item already exists"})
	case errors.Is(err, service.ErrRedemptionReversed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "redemption already reversed"})
	case errors.Is(err, service.ErrBusy):
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "busy, retry shortly"})
	case errors.Is(err, service.ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Error().Err(err).Msg(logMsg)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}
