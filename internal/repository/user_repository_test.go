package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool, zerolog.Nop())
	ctx := context.Background()

	user := &model.User{
		ID: uuid.New(), Email: "Asha@Example.com", Name: "Asha",
		PasswordHash: "hash", CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, user))
	assert.Equal(t, "asha@example.com", user.Email)

	dup := *user
	dup.ID = uuid.New()
	assert.ErrorIs(t, repo.Create(ctx, &dup), model.ErrEmailTaken)

	got, err := repo.GetByEmail(ctx, "ASHA@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)

	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Asha", got.Name)

	got, err = repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOutboxRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOutboxRepository(pool, zerolog.Nop())
	ctx := context.Background()

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	for _, key := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		ev := &model.OutboxEvent{
			EventID:   uuid.NewString(),
			Topic:     model.EventOrderPlaced,
			Key:       key,
			Payload:   json.RawMessage(`{"orderId":"` + key + `"}`),
			CreatedAt: time.Now(),
		}
		require.NoError(t, repo.Insert(ctx, tx, ev))
		assert.NotZero(t, ev.ID)
	}
	require.NoError(t, tx.Commit(ctx))

	pending, err := repo.FetchPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "ORD-1", pending[0].Key)
	assert.JSONEq(t, `{"orderId":"ORD-1"}`, string(pending[0].Payload))

	require.NoError(t, repo.MarkSent(ctx, []int64{pending[0].ID, pending[1].ID}))
	require.NoError(t, repo.MarkSent(ctx, nil))

	pending, err = repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ORD-3", pending[0].Key)
}
