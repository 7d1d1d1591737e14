package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hotelhub/loyalty-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// CatalogService provides the administrative surface for coupon and
// reward definitions. The redemption engine only ever reads these.
type CatalogService struct {
	catalog CatalogRepositoryInterface
}

// NewCatalogService creates a CatalogService with the given repository.
func NewCatalogService(catalog CatalogRepositoryInterface) *CatalogService {
	return &CatalogService{catalog: catalog}
}

// Create validates and stores a new catalog item.
// Returns ErrInvalidRequest when the definition is internally
// inconsistent, ErrItemExists when the code is taken.
func (s *CatalogService) Create(ctx context.Context, req *model.CreateCatalogItemRequest) (*model.CatalogItem, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}

	validFrom, err := time.Parse(time.RFC3339, req.ValidFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: valid_from must be RFC 3339", ErrInvalidRequest)
	}
	validUntil, err := time.Parse(time.RFC3339, req.ValidUntil)
	if err != nil {
		return nil, fmt.Errorf("%w: valid_until must be RFC 3339", ErrInvalidRequest)
	}
	if !validUntil.After(validFrom) {
		return nil, fmt.Errorf("%w: valid_until must be after valid_from", ErrInvalidRequest)
	}

	minTier := model.TierBronze
	if req.MinTier != "" {
		minTier, err = model.ParseTier(req.MinTier)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	item := &model.CatalogItem{
		ID:           uuid.New(),
		Code:         req.Code,
		Name:         req.Name,
		ItemType:     model.ItemType(req.ItemType),
		Value:        req.Value,
		MaxDiscount:  req.MaxDiscount,
		PointCost:    req.PointCost,
		MinTier:      minTier,
		MinSpend:     req.MinSpend,
		UsageLimit:   req.UsageLimit,
		PerUserLimit: req.PerUserLimit,
		ValidFrom:    validFrom.UTC(),
		ValidUntil:   validUntil.UTC(),
		IsActive:     true,
	}

	switch item.ItemType {
	case model.ItemCoupon:
		item.DiscountType = model.DiscountType(req.DiscountType)
		if item.DiscountType != model.DiscountFixed && item.DiscountType != model.DiscountPercentage {
			return nil, fmt.Errorf("%w: coupons need a discount_type of fixed or percentage", ErrInvalidRequest)
		}
		if !item.Value.IsPositive() {
			return nil, fmt.Errorf("%w: coupon value must be positive", ErrInvalidRequest)
		}
		if item.DiscountType == model.DiscountPercentage && item.Value.GreaterThan(hundred) {
			return nil, fmt.Errorf("%w: percentage cannot exceed 100", ErrInvalidRequest)
		}
	case model.ItemReward:
		if item.PointCost < 1 {
			return nil, fmt.Errorf("%w: rewards need a positive point_cost", ErrInvalidRequest)
		}
	default:
		return nil, fmt.Errorf("%w: item_type must be coupon or reward", ErrInvalidRequest)
	}

	if err := s.catalog.Insert(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetByCode retrieves a catalog item by its public code.
// Returns ErrItemNotFound if the item doesn't exist.
func (s *CatalogService) GetByCode(ctx context.Context, code string) (*model.CatalogItem, error) {
	item, err := s.catalog.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get catalog item: %w", err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}
