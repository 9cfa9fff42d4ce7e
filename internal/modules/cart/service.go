package cart

import (
	"context"

	"github.com/google/uuid"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
	"github.com/minhvo/storefront-backend/internal/modules/catalog"
)

// Service defines cart business logic.
type Service interface {
	// View returns the user's cart joined with live catalog data.
	View(ctx context.Context, userID uuid.UUID) ([]*ItemView, error)

	// AddItem puts a product (or more of it) in the cart.
	AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) error

	// UpdateItem changes a line's quantity.
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, req UpdateItemRequest) error

	// RemoveItem drops a line from the cart.
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
}

type service struct {
	repo    Repository
	catalog catalog.Reader
}

// NewService creates the cart service.
func NewService(repo Repository, reader catalog.Reader) Service {
	return &service{repo: repo, catalog: reader}
}

func (s *service) View(ctx context.Context, userID uuid.UUID) ([]*ItemView, error) {
	items, err := s.repo.ListItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]*ItemView, 0, len(items))
	for _, item := range items {
		p, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			// Product removed from catalog after it was carted; keep the
			// line visible so the customer can delete it.
			views = append(views, &ItemView{Item: *item, InStock: false})
			continue
		}
		price := p.EffectivePrice()
		views = append(views, &ItemView{
			Item:        *item,
			ProductName: p.Name,
			SKU:         p.SKU,
			UnitPrice:   price,
			LineTotal:   price * int64(item.Quantity),
			InStock:     p.IsActive && p.Stock >= item.Quantity,
		})
	}
	return views, nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) error {
	if req.Quantity <= 0 {
		return apperr.Validation("quantity must be greater than zero")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return apperr.Validation("invalid product_id")
	}

	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return apperr.Validation("product %s is not available", p.Name)
	}
	// Advisory only; the binding check is the reservation at checkout.
	if p.Stock < req.Quantity {
		return apperr.Conflict("product %s has only %d in stock", p.Name, p.Stock)
	}

	return s.repo.Upsert(ctx, &Item{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  req.Quantity,
		Color:     req.Color,
		Size:      req.Size,
	})
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, req UpdateItemRequest) error {
	if req.Quantity <= 0 {
		return apperr.Validation("quantity must be greater than zero")
	}
	return s.repo.UpdateQuantity(ctx, userID, itemID, req.Quantity)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return s.repo.Remove(ctx, userID, itemID)
}
