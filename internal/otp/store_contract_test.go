package otp_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgmhq/pgm-backend/internal/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStoreContract exercises the behavior every Store must share. Addresses
// are randomized so the test can run against a shared database.
func testStoreContract(t *testing.T, store otp.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	addr := "contract-" + uuid.NewString() + "@example.com"
	other := "contract-" + uuid.NewString() + "@example.com"

	t.Run("save assigns identity and timestamps", func(t *testing.T) {
		r := &otp.Record{Address: addr, Code: "123456", ExpiresAt: now.Add(time.Minute)}
		require.NoError(t, store.Save(ctx, r))
		assert.NotEqual(t, uuid.Nil, r.ID)
		assert.False(t, r.IssuedAt.IsZero())
		assert.False(t, r.UpdatedAt.IsZero())

		got, err := store.FindByAddressAndCode(ctx, addr, "123456")
		require.NoError(t, err)
		assert.Equal(t, r.ID, got.ID)
		assert.False(t, got.Consumed)
	})

	t.Run("find misses", func(t *testing.T) {
		_, err := store.FindByAddressAndCode(ctx, addr, "999999")
		assert.ErrorIs(t, err, otp.ErrNotFound)
		_, err = store.FindByAddressAndCode(ctx, other, "123456")
		assert.ErrorIs(t, err, otp.ErrNotFound)
	})

	t.Run("update keeps consumed monotonic", func(t *testing.T) {
		got, err := store.FindByAddressAndCode(ctx, addr, "123456")
		require.NoError(t, err)
		got.Consumed = true
		require.NoError(t, store.Save(ctx, got))

		got.Consumed = false
		require.NoError(t, store.Save(ctx, got))
		assert.True(t, got.Consumed)

		again, err := store.FindByAddressAndCode(ctx, addr, "123456")
		require.NoError(t, err)
		assert.True(t, again.Consumed)
	})

	t.Run("update of unknown record", func(t *testing.T) {
		r := &otp.Record{ID: uuid.New(), Address: addr, Code: "000001", ExpiresAt: now.Add(time.Minute)}
		assert.ErrorIs(t, store.Save(ctx, r), otp.ErrNotFound)
	})

	t.Run("delete expired before", func(t *testing.T) {
		expired := &otp.Record{Address: other, Code: "111111", IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
		live := &otp.Record{Address: other, Code: "222222", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
		require.NoError(t, store.Save(ctx, expired))
		require.NoError(t, store.Save(ctx, live))

		n, err := store.DeleteExpiredBefore(ctx, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		_, err = store.FindByAddressAndCode(ctx, other, "111111")
		assert.ErrorIs(t, err, otp.ErrNotFound)
		_, err = store.FindByAddressAndCode(ctx, other, "222222")
		assert.NoError(t, err)
	})

	t.Run("delete expired within the last millisecond", func(t *testing.T) {
		near := "contract-" + uuid.NewString() + "@example.com"
		r := &otp.Record{Address: near, Code: "333333", IssuedAt: now.Add(-time.Minute), ExpiresAt: now.Add(-300 * time.Microsecond)}
		require.NoError(t, store.Save(ctx, r))

		n, err := store.DeleteExpiredBefore(ctx, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		_, err = store.FindByAddressAndCode(ctx, near, "333333")
		assert.ErrorIs(t, err, otp.ErrNotFound)
	})

	t.Run("delete all for address", func(t *testing.T) {
		require.NoError(t, store.DeleteAllFor(ctx, addr))
		require.NoError(t, store.DeleteAllFor(ctx, addr), "idempotent")

		_, err := store.FindByAddressAndCode(ctx, addr, "123456")
		assert.ErrorIs(t, err, otp.ErrNotFound)
		_, err = store.FindByAddressAndCode(ctx, other, "222222")
		assert.NoError(t, err, "other addresses untouched")

		require.NoError(t, store.DeleteAllFor(ctx, other))
	})
}
