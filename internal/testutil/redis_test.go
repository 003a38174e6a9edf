package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMiniRedis(t *testing.T) {
	server, client := NewMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "forecast:test", "value", time.Minute).Err())

	got, err := server.Get("forecast:test")
	require.NoError(t, err)
	assert.Equal(t, "value", got)

	server.FastForward(2 * time.Minute)
	assert.False(t, server.Exists("forecast:test"))
}
