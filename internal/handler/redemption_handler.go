package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hotelhub/loyalty-engine/internal/model"
)

// RedemptionServiceInterface defines the redemption engine operations
// exposed over HTTP.
type RedemptionServiceInterface interface {
	RedeemReward(ctx context.Context, customerID, rewardID uuid.UUID) (*model.RedemptionRecord, error)
	RedeemCoupon(ctx context.Context, customerID uuid.UUID, code string, orderAmount decimal.Decimal) (*model.RedemptionRecord, error)
	ConfirmCoupon(ctx context.Context, redemptionCode string) (*model.RedemptionRecord, error)
	Reverse(ctx context.Context, redemptionID uuid.UUID, reason string) error
	GetRedemption(ctx context.Context, id uuid.UUID) (*model.RedemptionRecord, error)
}

// RedemptionHandler handles HTTP requests for reward and coupon
// redemption, staff confirmation, and reversal.
type RedemptionHandler struct {
	service   RedemptionServiceInterface
	validator *validator.Validate
}

// NewRedemptionHandler creates a new RedemptionHandler.
func NewRedemptionHandler(svc RedemptionServiceInterface, v *validator.Validate) *RedemptionHandler {
	return &RedemptionHandler{service: svc, validator: v}
}

// RedeemReward handles POST /api/redemptions/rewards requests.
func (h *RedemptionHandler) RedeemReward(c *fiber.Ctx) error {
	var req model.RedeemRewardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: customer_id and reward_id are required"})
	}

	customerID, _ := uuid.Parse(req.CustomerID)
	rewardID, _ := uuid.Parse(req.RewardID)

	rec, err := h.service.RedeemReward(c.Context(), customerID, rewardID)
	if err != nil {
		return mapServiceError(c, err, "failed to redeem reward")
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// RedeemCoupon handles POST /api/redemptions/coupons requests. The
// response carries the discount to apply to the order; the record stays
// pending until staff confirm it at the point of sale.
func (h *RedemptionHandler) RedeemCoupon(c *fiber.Ctx) error {
	var req model.RedeemCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: customer_id, code and order_amount are required"})
	}
	if req.OrderAmount.IsNegative() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: order_amount cannot be negative"})
	}

	customerID, _ := uuid.Parse(req.CustomerID)

	rec, err := h.service.RedeemCoupon(c.Context(), customerID, req.Code, req.OrderAmount)
	if err != nil {
		return mapServiceError(c, err, "failed to redeem coupon")
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// ConfirmCoupon handles POST /api/redemptions/:code/confirm requests
// from the point of sale. Safe to retry: confirming an already-used
// record returns 200 again.
func (h *RedemptionHandler) ConfirmCoupon(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: redemption code is required"})
	}

	rec, err := h.service.ConfirmCoupon(c.Context(), code)
	if err != nil {
		return mapServiceError(c, err, "failed to confirm redemption")
	}
	return c.JSON(rec)
}

// Reverse handles POST /api/redemptions/:id/reverse requests. Idempotent:
// reversing twice returns 200 both times with a single balance effect.
func (h *RedemptionHandler) Reverse(c *fiber.Ctx) error {
	redemptionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid redemption id"})
	}

	var req model.ReverseRedemptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: reason is required"})
	}

	if err := h.service.Reverse(c.Context(), redemptionID, req.Reason); err != nil {
		return mapServiceError(c, err, "failed to reverse redemption")
	}
	return c.JSON(fiber.Map{"status": "reversed"})
}

// GetRedemption handles GET /api/redemptions/:id requests.
func (h *RedemptionHandler) GetRedemption(c *fiber.Ctx) error {
	redemptionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid redemption id"})
	}

	rec, err := h.service.GetRedemption(c.Context(), redemptionID)
	if err != nil {
		return mapServiceError(c, err, "failed to get redemption")
	}
	return c.JSON(rec)
}
