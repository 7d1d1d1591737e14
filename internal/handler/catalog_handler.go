package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/hotelhub/loyalty-engine/internal/model"
)

// CatalogServiceInterface defines the administrative catalog operations.
type CatalogServiceInterface interface {
	Create(ctx context.Context, req *model.CreateCatalogItemRequest) (*model.CatalogItem, error)
	GetByCode(ctx context.Context, code string) (*model.CatalogItem, error)
}

// CatalogHandler handles the administrative HTTP surface for coupon and
// reward definitions.
type CatalogHandler struct {
	service   CatalogServiceInterface
	validator *validator.Validate
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(svc CatalogServiceInterface, v *validator.Validate) *CatalogHandler {
	return &CatalogHandler{service: svc, validator: v}
}

// CreateItem handles POST /api/catalog requests.
func (h *CatalogHandler) CreateItem(c *fiber.Ctx) error {
	var req model.CreateCatalogItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: " + err.Error()})
	}

	item, err := h.service.Create(c.Context(), &req)
	if err != nil {
		return mapServiceError(c, err, "failed to create catalog item")
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// GetItem handles GET /api/catalog/:code requests.
func (h *CatalogHandler) GetItem(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	item, err := h.service.GetByCode(c.Context(), code)
	if err != nil {
		return mapServiceError(c, err, "failed to get catalog item")
	}
	return c.JSON(item)
}
