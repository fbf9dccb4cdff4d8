package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type cartFixture struct {
	carts    *MockCartRepository
	products *MockProductRepository
	tx       *MockTx
	svc      *cartService
	now      time.Time
}

func newCartFixture() *cartFixture {
	f := &cartFixture{
		carts:    new(MockCartRepository),
		products: new(MockProductRepository),
		tx:       new(MockTx),
		now:      time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewCartService(f.carts, f.products, zerolog.Nop()).(*cartService)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func sareeProduct() *model.Product {
	return &model.Product{
		ID: "saree-a", Name: "Saree A", Price: 1500, Stock: 5,
		Variants: []model.Variant{
			{Size: "Free", Color: "red", Stock: 2},
			{Size: "Free", Color: "blue", Stock: 3, PriceDelta: 100},
		},
	}
}

func TestCartService_AddItem(t *testing.T) {
	tests := []struct {
		name      string
		existing  []model.CartItem
		req       model.AddItemRequest
		wantErr   error
		wantQty   int
		wantPrice int64
	}{
		{
			name:      "new line",
			req:       model.AddItemRequest{LineKey: model.LineKey{ProductID: "saree-a", Size: "Free", Color: "blue"}, Quantity: 2},
			wantQty:   2,
			wantPrice: 1600,
		},
		{
			name:      "merges into existing line",
			existing:  []model.CartItem{{ProductID: "saree-a", Size: "Free", Color: "red", Quantity: 1, PriceAtAdd: 1400}},
			req:       model.AddItemRequest{LineKey: model.LineKey{ProductID: "saree-a", Size: "Free", Color: "red"}, Quantity: 1},
			wantQty:   2,
			wantPrice: 1500,
		},
		{
			name:     "resulting quantity exceeds variant stock",
			existing: []model.CartItem{{ProductID: "saree-a", Size: "Free", Color: "red", Quantity: 2, PriceAtAdd: 1500}},
			req:      model.AddItemRequest{LineKey: model.LineKey{ProductID: "saree-a", Size: "Free", Color: "red"}, Quantity: 1},
			wantErr:  model.ErrInsufficientStock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newCartFixture()
			guest := model.Identity{SessionID: "sess-1"}
			cart := cartWith(guest, tt.existing...)

			f.products.On("GetByID", ctx, "saree-a").Return(sareeProduct(), nil)
			f.carts.On("BeginTx", ctx).Return(f.tx, nil)
			f.carts.On("GetOrCreateForUpdate", ctx, f.tx, guest, f.now).Return(cart, nil)

			if tt.wantErr != nil {
				f.tx.On("Rollback", ctx).Return(nil)
			} else {
				f.carts.On("SaveItems", ctx, f.tx, cart).Return(nil)
				f.tx.On("Commit", ctx).Return(nil)
			}

			got, err := f.svc.AddItem(ctx, guest, &tt.req)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, f.tx.rolledBack)
				f.carts.AssertNotCalled(t, "SaveItems", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			require.Len(t, got.Items, 1)
			assert.Equal(t, tt.wantQty, got.Items[0].Quantity)
			assert.Equal(t, tt.wantPrice, got.Items[0].PriceAtAdd)
			assert.Equal(t, f.now, got.UpdatedAt)
			assert.True(t, f.tx.committed)
		})
	}
}

func TestCartService_AddItem_PreChecks(t *testing.T) {
	tests := []struct {
		name    string
		product *model.Product
		req     model.AddItemRequest
		wantErr error
	}{
		{
			name:    "unknown product",
			req:     model.AddItemRequest{LineKey: model.LineKey{ProductID: "saree-a"}, Quantity: 1},
			wantErr: model.ErrProductNotFound,
		},
		{
			name:    "unknown variant",
			product: sareeProduct(),
			req:     model.AddItemRequest{LineKey: model.LineKey{ProductID: "saree-a", Size: "XL", Color: "red"}, Quantity: 1},
			wantErr: model.ErrVariantNotFound,
		},
		{
			name:    "more than aggregate stock",
			product: sareeProduct(),
			req:     model.AddItemRequest{LineKey: model.LineKey{ProductID: "saree-a"}, Quantity: 6},
			wantErr: model.ErrInsufficientStock,
		},
		{
			name:    "zero quantity",
			req:     model.AddItemRequest{LineKey: model.LineKey{ProductID: "saree-a"}, Quantity: 0},
			wantErr: model.ErrInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newCartFixture()
			guest := model.Identity{SessionID: "sess-1"}

			if tt.product != nil {
				f.products.On("GetByID", ctx, "saree-a").Return(tt.product, nil)
			} else {
				f.products.On("GetByID", ctx, "saree-a").Return(nil, nil)
			}
			// Only the stock shortfall reaches the cart row.
			f.carts.On("BeginTx", ctx).Return(f.tx, nil).Maybe()
			f.carts.On("GetOrCreateForUpdate", ctx, f.tx, guest, f.now).Return(cartWith(guest), nil).Maybe()
			f.tx.On("Rollback", ctx).Return(nil).Maybe()

			_, err := f.svc.AddItem(ctx, guest, &tt.req)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, f.tx.committed)
		})
	}
}

func TestCartService_UpdateItemQuantity(t *testing.T) {
	ctx := context.Background()
	user := model.Identity{UserID: "user-1"}
	key := model.LineKey{ProductID: "P1"}

	t.Run("sets quantity", func(t *testing.T) {
		f := newCartFixture()
		cart := cartWith(user, model.CartItem{ProductID: "P1", Quantity: 1, PriceAtAdd: 100})

		f.carts.On("BeginTx", ctx).Return(f.tx, nil)
		f.carts.On("GetForUpdate", ctx, f.tx, user).Return(cart, nil)
		f.carts.On("SaveItems", ctx, f.tx, cart).Return(nil)
		f.tx.On("Commit", ctx).Return(nil)

		got, err := f.svc.UpdateItemQuantity(ctx, user, &model.UpdateItemRequest{LineKey: key, Quantity: 4})

		require.NoError(t, err)
		assert.Equal(t, 4, got.Items[0].Quantity)
	})

	t.Run("missing cart", func(t *testing.T) {
		f := newCartFixture()
		f.carts.On("BeginTx", ctx).Return(f.tx, nil)
		f.carts.On("GetForUpdate", ctx, f.tx, user).Return(nil, nil)
		f.tx.On("Rollback", ctx).Return(nil)

		_, err := f.svc.UpdateItemQuantity(ctx, user, &model.UpdateItemRequest{LineKey: key, Quantity: 2})
		assert.ErrorIs(t, err, model.ErrCartNotFound)
	})

	t.Run("missing line", func(t *testing.T) {
		f := newCartFixture()
		cart := cartWith(user, model.CartItem{ProductID: "P2", Quantity: 1})
		f.carts.On("BeginTx", ctx).Return(f.tx, nil)
		f.carts.On("GetForUpdate", ctx, f.tx, user).Return(cart, nil)
		f.tx.On("Rollback", ctx).Return(nil)

		_, err := f.svc.UpdateItemQuantity(ctx, user, &model.UpdateItemRequest{LineKey: key, Quantity: 2})
		assert.ErrorIs(t, err, model.ErrCartNotFound)
	})

	t.Run("zero quantity", func(t *testing.T) {
		f := newCartFixture()
		_, err := f.svc.UpdateItemQuantity(ctx, user, &model.UpdateItemRequest{LineKey: key, Quantity: 0})
		assert.ErrorIs(t, err, model.ErrInvalidQuantity)
		f.carts.AssertNotCalled(t, "BeginTx", mock.Anything)
	})
}

func TestCartService_RemoveItem(t *testing.T) {
	ctx := context.Background()
	user := model.Identity{UserID: "user-1"}

	t.Run("removes line", func(t *testing.T) {
		f := newCartFixture()
		cart := cartWith(user,
			model.CartItem{ProductID: "P1", Quantity: 1},
			model.CartItem{ProductID: "P2", Quantity: 3},
		)
		f.carts.On("BeginTx", ctx).Return(f.tx, nil)
		f.carts.On("GetForUpdate", ctx, f.tx, user).Return(cart, nil)
		f.carts.On("SaveItems", ctx, f.tx, cart).Return(nil)
		f.tx.On("Commit", ctx).Return(nil)

		got, err := f.svc.RemoveItem(ctx, user, model.LineKey{ProductID: "P1"})

		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "P2", got.Items[0].ProductID)
	})

	t.Run("missing cart is a no-op", func(t *testing.T) {
		f := newCartFixture()
		f.carts.On("BeginTx", ctx).Return(f.tx, nil)
		f.carts.On("GetForUpdate", ctx, f.tx, user).Return(nil, nil)
		f.tx.On("Commit", ctx).Return(nil)

		got, err := f.svc.RemoveItem(ctx, user, model.LineKey{ProductID: "P1"})

		require.NoError(t, err)
		assert.Nil(t, got)
		f.carts.AssertNotCalled(t, "SaveItems", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing line is not saved", func(t *testing.T) {
		f := newCartFixture()
		cart := cartWith(user, model.CartItem{ProductID: "P2", Quantity: 3})
		f.carts.On("BeginTx", ctx).Return(f.tx, nil)
		f.carts.On("GetForUpdate", ctx, f.tx, user).Return(cart, nil)
		f.tx.On("Commit", ctx).Return(nil)

		got, err := f.svc.RemoveItem(ctx, user, model.LineKey{ProductID: "P1"})

		require.NoError(t, err)
		assert.Len(t, got.Items, 1)
		f.carts.AssertNotCalled(t, "SaveItems", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCartService_Merge(t *testing.T) {
	ctx := context.Background()
	guestID := model.Identity{SessionID: "sess-1"}
	userID := model.Identity{UserID: "user-1"}

	f := newCartFixture()
	guest := cartWith(guestID,
		model.CartItem{ProductID: "P1", Quantity: 2, PriceAtAdd: 100},
		model.CartItem{ProductID: "P3", Quantity: 1, PriceAtAdd: 300},
	)
	user := cartWith(userID, model.CartItem{ProductID: "P1", Quantity: 1, PriceAtAdd: 100})

	firstTx, secondTx := new(MockTx), new(MockTx)
	f.carts.On("BeginTx", ctx).Return(firstTx, nil).Once()
	f.carts.On("GetForUpdate", ctx, firstTx, guestID).Return(guest, nil)
	f.carts.On("GetOrCreateForUpdate", ctx, firstTx, userID, f.now).Return(user, nil)
	f.carts.On("SaveItems", ctx, firstTx, user).Return(nil)
	f.carts.On("Delete", ctx, firstTx, guest.ID).Return(nil)
	firstTx.On("Commit", ctx).Return(nil)

	merged, err := f.svc.Merge(ctx, "sess-1", "user-1")

	require.NoError(t, err)
	require.Len(t, merged.Items, 2)
	assert.Equal(t, 3, merged.Items[0].Quantity, "matching lines sum")
	assert.Equal(t, "P3", merged.Items[1].ProductID)

	// The guest cart is gone, so a repeat merge changes nothing.
	f.carts.On("BeginTx", ctx).Return(secondTx, nil).Once()
	f.carts.On("GetForUpdate", ctx, secondTx, guestID).Return(nil, nil)
	f.carts.On("GetOrCreateForUpdate", ctx, secondTx, userID, f.now).Return(user, nil)
	secondTx.On("Commit", ctx).Return(nil)

	again, err := f.svc.Merge(ctx, "sess-1", "user-1")

	require.NoError(t, err)
	require.Len(t, again.Items, 2)
	assert.Equal(t, 3, again.Items[0].Quantity)
	f.carts.AssertNumberOfCalls(t, "SaveItems", 1)
	f.carts.AssertNumberOfCalls(t, "Delete", 1)
}

func TestCartService_Merge_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()
	guestID := model.Identity{SessionID: "sess-1"}
	userID := model.Identity{UserID: "user-1"}
	guest := cartWith(guestID, model.CartItem{ProductID: "P1", Quantity: 2})
	user := cartWith(userID)

	f.carts.On("BeginTx", ctx).Return(f.tx, nil)
	f.carts.On("GetForUpdate", ctx, f.tx, guestID).Return(guest, nil)
	f.carts.On("GetOrCreateForUpdate", ctx, f.tx, userID, f.now).Return(user, nil)
	f.carts.On("SaveItems", ctx, f.tx, user).Return(nil)
	f.carts.On("Delete", ctx, f.tx, guest.ID).Return(errors.New("database error"))
	f.tx.On("Rollback", ctx).Return(nil)

	_, err := f.svc.Merge(ctx, "sess-1", "user-1")

	assert.Error(t, err)
	assert.True(t, f.tx.rolledBack)
	assert.False(t, f.tx.committed)
}

func TestCartService_Merge_RequiresBothIdentities(t *testing.T) {
	f := newCartFixture()
	_, err := f.svc.Merge(context.Background(), "", "user-1")
	assert.ErrorIs(t, err, model.ErrInvalidIdentity)
	_, err = f.svc.Merge(context.Background(), "sess-1", "")
	assert.ErrorIs(t, err, model.ErrInvalidIdentity)
}

func TestCartService_Get(t *testing.T) {
	ctx := context.Background()
	f := newCartFixture()
	user := model.Identity{UserID: "user-1"}

	cart := cartWith(user,
		model.CartItem{ProductID: "saree-a", Size: "Free", Color: "blue", Quantity: 2, PriceAtAdd: 1500},
		model.CartItem{ProductID: "gone", Quantity: 1, PriceAtAdd: 200},
	)
	f.carts.On("GetByIdentity", ctx, user).Return(cart, nil)
	f.products.On("GetByID", ctx, "saree-a").Return(sareeProduct(), nil)
	f.products.On("GetByID", ctx, "gone").Return(nil, nil)

	view, err := f.svc.Get(ctx, user)

	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "Saree A", view.Items[0].Name)
	assert.Equal(t, int64(1600), view.Items[0].CurrentPrice)
	assert.True(t, view.Items[0].Available)
	assert.False(t, view.Items[1].Available)
	assert.Equal(t, 3, view.ItemCount)
	assert.Equal(t, int64(3400), view.Subtotal)

	f.carts.On("GetByIdentity", ctx, model.Identity{SessionID: "new"}).Return(nil, nil)
	empty, err := f.svc.Get(ctx, model.Identity{SessionID: "new"})
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.Zero(t, empty.Subtotal)
}
