package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hotelhub/loyalty-engine/internal/model"
	"github.com/hotelhub/loyalty-engine/internal/service"
)

// LedgerServiceInterface defines the ledger operations the customer
// surface needs.
type LedgerServiceInterface interface {
	RegisterCustomer(ctx context.Context, email string) (*model.CustomerAccount, error)
	GetAccount(ctx context.Context, customerID uuid.UUID) (*model.CustomerAccount, error)
	GetHistory(ctx context.Context, customerID uuid.UUID, filter model.HistoryFilter) ([]model.LedgerEntry, error)
	OnStayCompleted(ctx context.Context, customerID uuid.UUID, amountSpent decimal.Decimal, nights int, bookingID string) (*model.LedgerEntry, error)
}

// RedemptionListerInterface is the slice of the redemption engine the
// dashboard needs.
type RedemptionListerInterface interface {
	ListActive(ctx context.Context, customerID uuid.UUID, limit int) ([]model.RedemptionRecord, error)
}

// CustomerHandler handles HTTP requests for customer accounts: register,
// dashboard, ledger history, and the inbound stay-completed hook the
// booking system calls.
type CustomerHandler struct {
	ledger      LedgerServiceInterface
	redemptions RedemptionListerInterface
	validator   *validator.Validate
	tierTable   []model.TierLevel
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(ledger LedgerServiceInterface, redemptions RedemptionListerInterface, v *validator.Validate, tierTable []model.TierLevel) *CustomerHandler {
	return &CustomerHandler{ledger: ledger, redemptions: redemptions, validator: v, tierTable: tierTable}
}

func parseCustomerID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Register handles POST /api/customers requests to create a loyalty account.
func (h *CustomerHandler) Register(c *fiber.Ctx) error {
	var req model.RegisterCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: email is required"})
	}

	account, err := h.ledger.RegisterCustomer(c.Context(), req.Email)
	if err != nil {
		return mapServiceError(c, err, "failed to register customer")
	}
	return c.Status(fiber.StatusCreated).JSON(account)
}

// Dashboard handles GET /api/customers/:id/dashboard requests.
func (h *CustomerHandler) Dashboard(c *fiber.Ctx) error {
	customerID, ok := parseCustomerID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid customer id"})
	}

	account, err := h.ledger.GetAccount(c.Context(), customerID)
	if err != nil {
		return mapServiceError(c, err, "failed to load account")
	}

	entries, err := h.ledger.GetHistory(c.Context(), customerID, model.HistoryFilter{Page: 1, Limit: 10})
	if err != nil {
		return mapServiceError(c, err, "failed to load recent entries")
	}

	active, err := h.redemptions.ListActive(c.Context(), customerID, 10)
	if err != nil {
		return mapServiceError(c, err, "failed to load active redemptions")
	}

	resp := model.DashboardResponse{
		Account:       account,
		RecentEntries: entries,
		ActiveRewards: active,
	}
	if next, gap, ok := service.NextTierTarget(account.LifetimePoints, h.tierTable); ok {
		resp.NextTier = next
		resp.PointsToNextTier = gap
	}
	return c.JSON(resp)
}

// History handles GET /api/customers/:id/history requests.
// Query parameters: page, limit, kind (repeatable entry-kind filter).
func (h *CustomerHandler) History(c *fiber.Ctx) error {
	customerID, ok := parseCustomerID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid customer id"})
	}

	filter := model.HistoryFilter{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 20),
	}
	if kind := c.Query("kind"); kind != "" {
		parsed, err := model.ParseEntryKind(kind)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid entry kind"})
		}
		filter.Kinds = []model.EntryKind{parsed}
	}

	entries, err := h.ledger.GetHistory(c.Context(), customerID, filter)
	if err != nil {
		return mapServiceError(c, err, "failed to load history")
	}
	return c.JSON(model.HistoryResponse{
		Entries: entries,
		Page:    filter.Page,
		Limit:   filter.Limit,
	})
}

// StayCompleted handles POST /api/customers/:id/stays requests from the
// booking/PMS side. The earned credit and any tier upgrade commit
// atomically before the response is written.
func (h *CustomerHandler) StayCompleted(c *fiber.Ctx) error {
	customerID, ok := parseCustomerID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid customer id"})
	}

	var req model.StayCompletedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: amount_spent, nights and booking_id are required"})
	}
	if req.AmountSpent.IsNegative() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: amount_spent cannot be negative"})
	}

	entry, err := h.ledger.OnStayCompleted(c.Context(), customerID, req.AmountSpent, req.Nights, req.BookingID)
	if err != nil {
		return mapServiceError(c, err, "failed to record stay")
	}

	log.Info().
		Str("customer_id", customerID.String()).
		Str("booking_id", req.BookingID).
		Int("nights", req.Nights).
		Msg("stay recorded")

	if entry == nil {
		// Comped stay: nights recorded, nothing credited.
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"points_earned": 0})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"points_earned": entry.Amount, "entry": entry})
}
