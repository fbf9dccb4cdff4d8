package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

// cartService implements CartService.
type cartService struct {
	cartRepo repository.CartRepository
	products repository.ProductRepository
	logger   zerolog.Logger
	now      func() time.Time
}

// NewCartService creates a new cart service. products is used for the
// add-to-cart availability check and for pricing the cart view.
func NewCartService(cartRepo repository.CartRepository, products repository.ProductRepository, logger zerolog.Logger) CartService {
	return &cartService{
		cartRepo: cartRepo,
		products: products,
		logger:   logger.With().Str("service", "cart").Logger(),
		now:      time.Now,
	}
}

// withCart runs fn against the identity's cart row locked for update.
// When create is false and no cart exists, fn receives nil.
func (s *cartService) withCart(ctx context.Context, identity model.Identity, create bool, fn func(cart *model.Cart) (bool, error)) (cart *model.Cart, err error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.cartRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rollback(ctx, tx, s.logger)
		}
	}()

	if create {
		cart, err = s.cartRepo.GetOrCreateForUpdate(ctx, tx, identity, s.now().UTC())
	} else {
		cart, err = s.cartRepo.GetForUpdate(ctx, tx, identity)
	}
	if err != nil {
		return nil, err
	}

	changed, err := fn(cart)
	if err != nil {
		return nil, err
	}

	if changed {
		cart.UpdatedAt = s.now().UTC()
		if err = s.cartRepo.SaveItems(ctx, tx, cart); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return cart, nil
}

func (s *cartService) GetOrCreate(ctx context.Context, identity model.Identity) (*model.Cart, error) {
	return s.withCart(ctx, identity, true, func(*model.Cart) (bool, error) {
		return false, nil
	})
}

// Get returns the cart with current names and prices. Lines whose product
// has gone are kept and flagged unavailable.
func (s *cartService) Get(ctx context.Context, identity model.Identity) (*model.CartResponse, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.GetByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}

	resp := &model.CartResponse{Items: []model.CartLine{}}
	if cart == nil {
		return resp, nil
	}

	for _, item := range cart.Items {
		line := model.CartLine{CartItem: item, CurrentPrice: item.PriceAtAdd}
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to price cart: %w", err)
		}
		if product != nil {
			sel := item.Key().Selector()
			line.Name = product.Name
			line.CurrentPrice = product.UnitPrice(sel)
			available, err := product.Available(sel)
			line.Available = err == nil && available >= item.Quantity
		}
		resp.Items = append(resp.Items, line)
		resp.ItemCount += item.Quantity
		resp.Subtotal += int64(item.Quantity) * line.CurrentPrice
	}

	return resp, nil
}

// AddItem adds quantity to a line after a non-binding availability check.
// Stock is only committed at checkout.
func (s *cartService) AddItem(ctx context.Context, identity model.Identity, req *model.AddItemRequest) (*model.Cart, error) {
	if req.Quantity <= 0 {
		return nil, model.ErrInvalidQuantity
	}

	product, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, model.ErrProductNotFound
	}

	sel := req.Selector()
	available, err := product.Available(sel)
	if err != nil {
		return nil, err
	}

	return s.withCart(ctx, identity, true, func(cart *model.Cart) (bool, error) {
		wanted := cart.QuantityOf(req.LineKey) + req.Quantity
		if wanted > available {
			return false, &model.StockError{
				ProductID: req.ProductID,
				Size:      req.Size,
				Color:     req.Color,
				Requested: wanted,
			}
		}
		if err := cart.AddLine(req.LineKey, req.Quantity, product.UnitPrice(sel), s.now().UTC()); err != nil {
			return false, err
		}
		s.logger.Debug().
			Str("identity", identity.String()).
			Str("product_id", req.ProductID).
			Int("quantity", wanted).
			Msg("cart line added")
		return true, nil
	})
}

func (s *cartService) UpdateItemQuantity(ctx context.Context, identity model.Identity, req *model.UpdateItemRequest) (*model.Cart, error) {
	if req.Quantity < 1 {
		return nil, model.ErrInvalidQuantity
	}

	return s.withCart(ctx, identity, false, func(cart *model.Cart) (bool, error) {
		if cart == nil {
			return false, model.ErrCartNotFound
		}
		if err := cart.SetQuantity(req.LineKey, req.Quantity); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (s *cartService) RemoveItem(ctx context.Context, identity model.Identity, key model.LineKey) (*model.Cart, error) {
	return s.withCart(ctx, identity, false, func(cart *model.Cart) (bool, error) {
		if cart == nil {
			return false, nil
		}
		return cart.RemoveLine(key), nil
	})
}

// Merge moves every guest line into the user's cart, summing quantities of
// matching lines, then deletes the guest cart. Running it again after the
// guest cart is gone changes nothing.
func (s *cartService) Merge(ctx context.Context, sessionID, userID string) (cart *model.Cart, err error) {
	if sessionID == "" || userID == "" {
		return nil, model.ErrInvalidIdentity
	}
	guestID := model.Identity{SessionID: sessionID}
	userIdentity := model.Identity{UserID: userID}

	tx, err := s.cartRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rollback(ctx, tx, s.logger)
		}
	}()

	guest, err := s.cartRepo.GetForUpdate(ctx, tx, guestID)
	if err != nil {
		return nil, err
	}

	cart, err = s.cartRepo.GetOrCreateForUpdate(ctx, tx, userIdentity, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if guest != nil {
		cart.MergeFrom(guest)
		cart.UpdatedAt = s.now().UTC()
		if err = s.cartRepo.SaveItems(ctx, tx, cart); err != nil {
			return nil, err
		}
		if err = s.cartRepo.Delete(ctx, tx, guest.ID); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if guest != nil {
		s.logger.Info().
			Str("user_id", userID).
			Int("merged_lines", len(guest.Items)).
			Msg("guest cart merged")
	}
	return cart, nil
}
