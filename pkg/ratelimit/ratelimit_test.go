package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("invalid rate", func(t *testing.T) {
		lim, err := New("many-per-minute", nil)

		assert.Error(t, err)
		assert.Nil(t, lim)
	})

	t.Run("memory store", func(t *testing.T) {
		lim, err := New("2-M", nil)
		require.NoError(t, err)

		ctx := context.Background()

		for i := 0; i < 2; i++ {
			res, err := lim.Get(ctx, "127.0.0.1")
			require.NoError(t, err)
			assert.False(t, res.Reached)
		}

		res, err := lim.Get(ctx, "127.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Reached)
		assert.EqualValues(t, 2, res.Limit)

		res, err = lim.Get(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, res.Reached)
	})
}
