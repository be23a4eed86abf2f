package otp_test

import (
	"context"
	"testing"
	"time"

	"github.com/pgmhq/pgm-backend/internal/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_contract(t *testing.T) {
	testStoreContract(t, otp.NewMemoryStore())
}

func TestMemoryStore_findPrefersNewest(t *testing.T) {
	store := otp.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	older := &otp.Record{Address: "a@example.com", Code: "123456", IssuedAt: now.Add(-time.Minute), ExpiresAt: now.Add(time.Minute)}
	newer := &otp.Record{Address: "a@example.com", Code: "123456", IssuedAt: now, ExpiresAt: now.Add(2 * time.Minute)}
	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))

	got, err := store.FindByAddressAndCode(ctx, "a@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
}

func TestMemoryStore_returnsCopies(t *testing.T) {
	store := otp.NewMemoryStore()
	ctx := context.Background()

	r := &otp.Record{Address: "a@example.com", Code: "123456", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, store.Save(ctx, r))

	got, err := store.FindByAddressAndCode(ctx, "a@example.com", "123456")
	require.NoError(t, err)
	got.Consumed = true

	again, err := store.FindByAddressAndCode(ctx, "a@example.com", "123456")
	require.NoError(t, err)
	assert.False(t, again.Consumed, "mutating a returned record must not touch the store")
}
