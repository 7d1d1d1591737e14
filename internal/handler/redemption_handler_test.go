package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotelhub/loyalty-engine/internal/model"
	"github.com/hotelhub/loyalty-engine/internal/service"
	"github.com/hotelhub/loyalty-engine/internal/validator"
)

// mockRedemptionService is a mock implementation of RedemptionServiceInterface.
type mockRedemptionService struct {
	redeemRewardFn  func(ctx context.Context, customerID, rewardID uuid.UUID) (*model.RedemptionRecord, error)
	redeemCouponFn  func(ctx context.Context, customerID uuid.UUID, code string, orderAmount decimal.Decimal) (*model.RedemptionRecord, error)
	confirmCouponFn func(ctx context.Context, redemptionCode string) (*model.RedemptionRecord, error)
	reverseFn       func(ctx context.Context, redemptionID uuid.UUID, reason string) error
	getRedemptionFn func(ctx context.Context, id uuid.UUID) (*model.RedemptionRecord, error)
}

func (m *mockRedemptionService) RedeemReward(ctx context.Context, customerID, rewardID uuid.UUID) (*model.RedemptionRecord, error) {
	if m.redeemRewardFn != nil {
		return m.redeemRewardFn(ctx, customerID, rewardID)
	}
	return &model.RedemptionRecord{}, nil
}

func (m *mockRedemptionService) RedeemCoupon(ctx context.Context, customerID uuid.UUID, code string, orderAmount decimal.Decimal) (*model.RedemptionRecord, error) {
	if m.redeemCouponFn != nil {
		return m.redeemCouponFn(ctx, customerID, code, orderAmount)
	}
	return &model.RedemptionRecord{}, nil
}

func (m *mockRedemptionService) ConfirmCoupon(ctx context.Context, redemptionCode string) (*model.RedemptionRecord, error) {
	if m.confirmCouponFn != nil {
		return m.confirmCouponFn(ctx, redemptionCode)
	}
	return &model.RedemptionRecord{}, nil
}

func (m *mockRedemptionService) Reverse(ctx context.Context, redemptionID uuid.UUID, reason string) error {
	if m.reverseFn != nil {
		return m.reverseFn(ctx, redemptionID, reason)
	}
	return nil
}

func (m *mockRedemptionService) GetRedemption(ctx context.Context, id uuid.UUID) (*model.RedemptionRecord, error) {
	if m.getRedemptionFn != nil {
		return m.getRedemptionFn(ctx, id)
	}
	return &model.RedemptionRecord{}, nil
}

func setupRedemptionApp(mockSvc *mockRedemptionService) *fiber.App {
	app := fiber.New()
	h := NewRedemptionHandler(mockSvc, validator.New())
	app.Post("/api/redemptions/rewards", h.RedeemReward)
	app.Post("/api/redemptions/coupons", h.RedeemCoupon)
	app.Post("/api/redemptions/:code/confirm", h.ConfirmCoupon)
	app.Post("/api/redemptions/:id/reverse", h.Reverse)
	app.Get("/api/redemptions/:id", h.GetRedemption)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestRedeemReward_Success(t *testing.T) {
	var gotCustomer, gotReward uuid.UUID
	mockSvc := &mockRedemptionService{
		redeemRewardFn: func(ctx context.Context, customerID, rewardID uuid.UUID) (*model.RedemptionRecord, error) {
			gotCustomer, gotReward = customerID, rewardID
			return &model.RedemptionRecord{
				ID:         uuid.New(),
				CustomerID: customerID,
				ItemType:   model.ItemReward,
				PointsUsed: 5000,
				Status:     model.RedemptionUsed,
			}, nil
		},
	}
	app := setupRedemptionApp(mockSvc)

	customerID := uuid.New()
	rewardID := uuid.New()
	body, _ := json.Marshal(model.RedeemRewardRequest{CustomerID: customerID.String(), RewardID: rewardID.String()})
	resp := postJSON(t, app, "/api/redemptions/rewards", string(body))

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, customerID, gotCustomer)
	assert.Equal(t, rewardID, gotReward)

	var rec model.RedemptionRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, int64(5000), rec.PointsUsed)
}

func TestRedeemReward_MissingFields(t *testing.T) {
	app := setupRedemptionApp(&mockRedemptionService{})

	resp := postJSON(t, app, "/api/redemptions/rewards", `{"customer_id": "`+uuid.NewString()+`"}`)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRedeemReward_InsufficientBalance(t *testing.T) {
	mockSvc := &mockRedemptionService{
		redeemRewardFn: func(ctx context.Context, customerID, rewardID uuid.UUID) (*model.RedemptionRecord, error) {
			return nil, service.ErrInsufficientBalance
		},
	}
	app := setupRedemptionApp(mockSvc)

	body, _ := json.Marshal(model.RedeemRewardRequest{CustomerID: uuid.NewString(), RewardID: uuid.NewString()})
	resp := postJSON(t, app, "/api/redemptions/rewards", string(body))

	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "insufficient_balance", result["reason"])
}

func TestRedeemReward_RuleViolation(t *testing.T) {
	mockSvc := &mockRedemptionService{
		redeemRewardFn: func(ctx context.Context, customerID, rewardID uuid.UUID) (*model.RedemptionRecord, error) {
			return nil, &service.RuleViolationError{Reason: service.ReasonTier, Detail: "requires gold tier"}
		},
	}
	app := setupRedemptionApp(mockSvc)

	body, _ := json.Marshal(model.RedeemRewardRequest{CustomerID: uuid.NewString(), RewardID: uuid.NewString()})
	resp := postJSON(t, app, "/api/redemptions/rewards", string(body))

	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "tier", result["reason"])
	assert.Equal(t, "requires gold tier", result["error"])
}

func TestRedeemReward_Busy(t *testing.T) {
	mockSvc := &mockRedemptionService{
		redeemRewardFn: func(ctx context.Context, customerID, rewardID uuid.UUID) (*model.RedemptionRecord, error) {
			return nil, service.ErrBusy
		},
	}
	app := setupRedemptionApp(mockSvc)

	body, _ := json.Marshal(model.RedeemRewardRequest{CustomerID: uuid.NewString(), RewardID: uuid.NewString()})
	resp := postJSON(t, app, "/api/redemptions/rewards", string(body))

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter), "contention must tell the client when to retry")
}

func TestRedeemCoupon_Success(t *testing.T) {
	var gotCode string
	var gotAmount decimal.Decimal
	mockSvc := &mockRedemptionService{
		redeemCouponFn: func(ctx context.Context, customerID uuid.UUID, code string, orderAmount decimal.Decimal) (*model.RedemptionRecord, error) {
			gotCode, gotAmount = code, orderAmount
			return &model.RedemptionRecord{
				ID:             uuid.New(),
				ItemType:       model.ItemCoupon,
				DiscountAmount: decimal.NewFromInt(20),
				Status:         model.RedemptionPending,
			}, nil
		},
	}
	app := setupRedemptionApp(mockSvc)

	body := `{"customer_id": "` + uuid.NewString() + `", "code": "SUMMER25", "order_amount": "250.00"}`
	resp := postJSON(t, app, "/api/redemptions/coupons", body)

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "SUMMER25", gotCode)
	assert.True(t, gotAmount.Equal(decimal.NewFromInt(250)))

	var rec model.RedemptionRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, model.RedemptionPending, rec.Status)
}

func TestRedeemCoupon_NegativeOrderAmount(t *testing.T) {
	app := setupRedemptionApp(&mockRedemptionService{})

	body := `{"customer_id": "` + uuid.NewString() + `", "code": "SUMMER25", "order_amount": "-10"}`
	resp := postJSON(t, app, "/api/redemptions/coupons", body)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRedeemCoupon_UnknownCode(t *testing.T) {
	mockSvc := &mockRedemptionService{
		redeemCouponFn: func(ctx context.Context, customerID uuid.UUID, code string, orderAmount decimal.Decimal) (*model.RedemptionRecord, error) {
			return nil, service.ErrItemNotFound
		},
	}
	app := setupRedemptionApp(mockSvc)

	body := `{"customer_id": "` + uuid.NewString() + `", "code": "NOPE", "order_amount": "100"}`
	resp := postJSON(t, app, "/api/redemptions/coupons", body)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestConfirmCoupon_Success(t *testing.T) {
	mockSvc := &mockRedemptionService{
		confirmCouponFn: func(ctx context.Context, redemptionCode string) (*model.RedemptionRecord, error) {
			return &model.RedemptionRecord{RedemptionCode: redemptionCode, Status: model.RedemptionUsed}, nil
		},
	}
	app := setupRedemptionApp(mockSvc)

	resp := postJSON(t, app, "/api/redemptions/RDM-abc/confirm", "")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var rec model.RedemptionRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, model.RedemptionUsed, rec.Status)
}

func TestConfirmCoupon_Reversed(t *testing.T) {
	mockSvc := &mockRedemptionService{
		confirmCouponFn: func(ctx context.Context, redemptionCode string) (*model.RedemptionRecord, error) {
			return nil, service.ErrRedemptionReversed
		},
	}
	app := setupRedemptionApp(mockSvc)

	resp := postJSON(t, app, "/api/redemptions/RDM-abc/confirm", "")

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestReverse_Success(t *testing.T) {
	redemptionID := uuid.New()
	var gotID uuid.UUID
	var gotReason string
	mockSvc := &mockRedemptionService{
		reverseFn: func(ctx context.Context, id uuid.UUID, reason string) error {
			gotID, gotReason = id, reason
			return nil
		},
	}
	app := setupRedemptionApp(mockSvc)

	resp := postJSON(t, app, "/api/redemptions/"+redemptionID.String()+"/reverse", `{"reason": "guest complaint"}`)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, redemptionID, gotID)
	assert.Equal(t, "guest complaint", gotReason)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "reversed", result["status"])
}

func TestReverse_MissingReason(t *testing.T) {
	app := setupRedemptionApp(&mockRedemptionService{})

	resp := postJSON(t, app, "/api/redemptions/"+uuid.NewString()+"/reverse", `{"reason": "   "}`)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "a blank reason is rejected")
}

func TestReverse_InvalidID(t *testing.T) {
	app := setupRedemptionApp(&mockRedemptionService{})

	resp := postJSON(t, app, "/api/redemptions/not-a-uuid/reverse", `{"reason": "x"}`)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetRedemption_NotFound(t *testing.T) {
	mockSvc := &mockRedemptionService{
		getRedemptionFn: func(ctx context.Context, id uuid.UUID) (*model.RedemptionRecord, error) {
			return nil, service.ErrRedemptionNotFound
		},
	}
	app := setupRedemptionApp(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/redemptions/"+uuid.NewString(), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
