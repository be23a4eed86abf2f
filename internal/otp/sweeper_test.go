package otp_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pgmhq/pgm-backend/internal/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingCleaner struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleaner) CleanupExpired(context.Context) (int64, error) {
	c.calls.Add(1)
	if c.err != nil {
		return 0, c.err
	}
	return 3, nil
}

func TestSweeper_RunOnce(t *testing.T) {
	e, store, _, clock := newEngine(t, nil)
	ctx := context.Background()

	_, err := e.Issue(ctx, "a@example.com", "A")
	require.NoError(t, err)
	clock.Advance(otp.DefaultExpiry + time.Second)

	s := otp.NewSweeper(e, time.Minute, zap.NewNop())
	n, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Zero(t, store.Len())
}

func TestSweeper_RunOnceReturnsError(t *testing.T) {
	c := &countingCleaner{err: errors.New("db unavailable")}
	s := otp.NewSweeper(c, time.Minute, zap.NewNop())

	_, err := s.RunOnce(context.Background())
	assert.Error(t, err)
	assert.EqualValues(t, 1, c.calls.Load())
}

func TestSweeper_keepsRunningAfterErrors(t *testing.T) {
	c := &countingCleaner{err: errors.New("db unavailable")}
	s := otp.NewSweeper(c, time.Second, zap.NewNop())
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return c.calls.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestSweeper_StopWithoutStart(t *testing.T) {
	s := otp.NewSweeper(&countingCleaner{}, 0, zap.NewNop())
	s.Stop(context.Background())
}
