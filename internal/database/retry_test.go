package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConnectWithBackoff_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, err := connectWithBackoff(context.Background(), zap.NewNop(), "test", 5, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestConnectWithBackoff_GivesUp(t *testing.T) {
	calls := 0
	_, err := connectWithBackoff(context.Background(), zap.NewNop(), "test", 2, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestConnectWithBackoff_AtLeastOneAttempt(t *testing.T) {
	calls := 0
	_, err := connectWithBackoff(context.Background(), zap.NewNop(), "test", 0, func(context.Context) (int, error) {
		calls++
		return 1, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
