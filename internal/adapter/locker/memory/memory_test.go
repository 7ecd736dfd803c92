package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLLocker_Lock(t *testing.T) {
	t.Run("serializes the same key", func(t *testing.T) {
		l := NewURLLocker()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			inside  int
			maxSeen int
		)

		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				unlock, err := l.Lock(context.Background(), "https://example.com")
				if !assert.NoError(t, err) {
					return
				}
				defer unlock()

				mu.Lock()
				inside++
				maxSeen = max(maxSeen, inside)
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
			}()
		}

		wg.Wait()

		assert.Equal(t, 1, maxSeen)
		assert.Empty(t, l.entries)
	})

	t.Run("different keys do not block", func(t *testing.T) {
		l := NewURLLocker()

		unlockA, err := l.Lock(context.Background(), "https://a.example.com")
		require.NoError(t, err)
		defer unlockA()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		unlockB, err := l.Lock(ctx, "https://b.example.com")
		require.NoError(t, err)
		unlockB()
	})

	t.Run("duplicate keys", func(t *testing.T) {
		l := NewURLLocker()

		unlock, err := l.Lock(context.Background(), "https://example.com", "https://example.com")
		require.NoError(t, err)

		unlock()
		unlock()

		assert.Empty(t, l.entries)
	})

	t.Run("context done while waiting", func(t *testing.T) {
		l := NewURLLocker()

		unlock, err := l.Lock(context.Background(), "https://b.example.com")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err = l.Lock(ctx, "https://a.example.com", "https://b.example.com")

		assert.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		assert.Empty(t, l.entries)
	})
}
