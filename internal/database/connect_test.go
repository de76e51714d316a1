package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDial_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	err := dial(context.Background(), "postgres", 3, zerolog.Nop(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDial_GivesUp(t *testing.T) {
	calls := 0
	err := dial(context.Background(), "redis", 1, zerolog.Nop(), func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis unreachable after 1 attempts")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, calls)
}

func TestDial_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := dial(ctx, "postgres", 5, zerolog.Nop(), func(context.Context) error {
		return errors.New("connection refused")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatus_Healthy(t *testing.T) {
	assert.True(t, Status{Postgres: "ok", Redis: "ok"}.Healthy())
	assert.False(t, Status{Postgres: "ok", Redis: "dial tcp: refused"}.Healthy())
}
