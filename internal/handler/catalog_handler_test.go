package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotelhub/loyalty-engine/internal/model"
	"github.com/hotelhub/loyalty-engine/internal/service"
	"github.com/hotelhub/loyalty-engine/internal/validator"
)

// mockCatalogService is a mock implementation of CatalogServiceInterface.
type mockCatalogService struct {
	createFn    func(ctx context.Context, req *model.CreateCatalogItemRequest) (*model.CatalogItem, error)
	getByCodeFn func(ctx context.Context, code string) (*model.CatalogItem, error)
}

func (m *mockCatalogService) Create(ctx context.Context, req *model.CreateCatalogItemRequest) (*model.CatalogItem, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return &model.CatalogItem{}, nil
}

func (m *mockCatalogService) GetByCode(ctx context.Context, code string) (*model.CatalogItem, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, code)
	}
	return &model.CatalogItem{Code: code}, nil
}

func setupCatalogApp(svc *mockCatalogService) *fiber.App {
	app := fiber.New()
	h := NewCatalogHandler(svc, validator.New())
	app.Post("/api/catalog", h.CreateItem)
	app.Get("/api/catalog/:code", h.GetItem)
	return app
}

func TestCreateItem_Success(t *testing.T) {
	var gotReq *model.CreateCatalogItemRequest
	mockSvc := &mockCatalogService{
		createFn: func(ctx context.Context, req *model.CreateCatalogItemRequest) (*model.CatalogItem, error) {
			gotReq = req
			return &model.CatalogItem{
				ID:       uuid.New(),
				Code:     req.Code,
				Name:     req.Name,
				ItemType: model.ItemCoupon,
				IsActive: true,
			}, nil
		},
	}
	app := setupCatalogApp(mockSvc)

	from := time.Now().UTC().Format(time.RFC3339)
	until := time.Now().UTC().Add(30 * 24 * time.Hour).Format(time.RFC3339)
	body := `{
		"code": "WELCOME10",
		"name": "Welcome Discount",
		"item_type": "coupon",
		"discount_type": "fixed",
		"value": "10",
		"min_tier": "silver",
		"valid_from": "` + from + `",
		"valid_until": "` + until + `"
	}`
	resp := postJSON(t, app, "/api/catalog", body)

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NotNil(t, gotReq)
	assert.Equal(t, "WELCOME10", gotReq.Code)
	assert.Equal(t, "coupon", gotReq.ItemType)
	assert.Equal(t, "silver", gotReq.MinTier)

	var item model.CatalogItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&item))
	assert.Equal(t, "WELCOME10", item.Code)
	assert.True(t, item.IsActive)
}

func TestCreateItem_MissingFields(t *testing.T) {
	app := setupCatalogApp(&mockCatalogService{})

	resp := postJSON(t, app, "/api/catalog", `{"code": "WELCOME10"}`)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateItem_BlankCode(t *testing.T) {
	app := setupCatalogApp(&mockCatalogService{})

	body := `{
		"code": "   ",
		"name": "Welcome Discount",
		"item_type": "coupon",
		"valid_from": "2026-01-01T00:00:00Z",
		"valid_until": "2026-02-01T00:00:00Z"
	}`
	resp := postJSON(t, app, "/api/catalog", body)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateItem_InvalidWindow(t *testing.T) {
	mockSvc := &mockCatalogService{
		createFn: func(ctx context.Context, req *model.CreateCatalogItemRequest) (*model.CatalogItem, error) {
			return nil, service.ErrInvalidRequest
		},
	}
	app := setupCatalogApp(mockSvc)

	body := `{
		"code": "BACKWARDS",
		"name": "Inverted Window",
		"item_type": "coupon",
		"discount_type": "fixed",
		"value": "10",
		"valid_from": "2026-02-01T00:00:00Z",
		"valid_until": "2026-01-01T00:00:00Z"
	}`
	resp := postJSON(t, app, "/api/catalog", body)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateItem_DuplicateCode(t *testing.T) {
	mockSvc := &mockCatalogService{
		createFn: func(ctx context.Context, req *model.CreateCatalogItemRequest) (*model.CatalogItem, error) {
			return nil, service.ErrItemExists
		},
	}
	app := setupCatalogApp(mockSvc)

	body := `{
		"code": "WELCOME10",
		"name": "Welcome Discount",
		"item_type": "coupon",
		"discount_type": "fixed",
		"value": "10",
		"valid_from": "2026-01-01T00:00:00Z",
		"valid_until": "2026-02-01T00:00:00Z"
	}`
	resp := postJSON(t, app, "/api/catalog", body)

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestGetItem_Success(t *testing.T) {
	mockSvc := &mockCatalogService{
		getByCodeFn: func(ctx context.Context, code string) (*model.CatalogItem, error) {
			return &model.CatalogItem{ID: uuid.New(), Code: code, ItemType: model.ItemReward, PointCost: 5000}, nil
		},
	}
	app := setupCatalogApp(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/FREE-NIGHT", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var item model.CatalogItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&item))
	assert.Equal(t, "FREE-NIGHT", item.Code)
	assert.Equal(t, int64(5000), item.PointCost)
}

func TestGetItem_NotFound(t *testing.T) {
	mockSvc := &mockCatalogService{
		getByCodeFn: func(ctx context.Context, code string) (*model.CatalogItem, error) {
			return nil, service.ErrItemNotFound
		},
	}
	app := setupCatalogApp(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/NOPE", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
