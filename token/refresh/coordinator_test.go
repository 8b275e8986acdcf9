package refresh_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nawehub/session-gateway/token/refresh"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func slowExchange(calls *atomic.Int32, delay time.Duration) refresh.ExchangeFunc {
	return func(ctx context.Context) (*refresh.Result, error) {
		n := calls.Add(1)
		time.Sleep(delay)
		return &refresh.Result{
			AccessToken:  "access-" + string(rune('0'+n)),
			RefreshToken: "refresh-" + string(rune('0'+n)),
			Expiry:       time.Now().Add(15 * time.Minute),
		}, nil
	}
}

func TestCoordinator_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrent callers share one exchange", func(t *testing.T) {
		c := refresh.NewCoordinator(nil)
		var calls atomic.Int32

		var wg sync.WaitGroup
		results := make([]*refresh.Result, 10)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := c.Do(ctx, "refresh-0", slowExchange(&calls, 50*time.Millisecond))
				require.NoError(t, err)
				results[i] = res
			}(i)
		}
		wg.Wait()

		require.Equal(t, int32(1), calls.Load())
		for _, res := range results {
			require.Equal(t, "access-1", res.AccessToken)
		}
	})

	t.Run("late caller with the consumed token reuses the stored result", func(t *testing.T) {
		c := refresh.NewCoordinator(nil)
		var calls atomic.Int32

		first, err := c.Do(ctx, "refresh-0", slowExchange(&calls, 0))
		require.NoError(t, err)
		second, err := c.Do(ctx, "refresh-0", slowExchange(&calls, 0))
		require.NoError(t, err)

		require.Equal(t, int32(1), calls.Load())
		require.Equal(t, first.AccessToken, second.AccessToken)
		require.False(t, second.Iat.IsZero())
	})

	t.Run("different tokens refresh independently", func(t *testing.T) {
		c := refresh.NewCoordinator(nil)
		var calls atomic.Int32

		_, err := c.Do(ctx, "refresh-a", slowExchange(&calls, 0))
		require.NoError(t, err)
		_, err = c.Do(ctx, "refresh-b", slowExchange(&calls, 0))
		require.NoError(t, err)
		require.Equal(t, int32(2), calls.Load())
	})

	t.Run("failures are not stored", func(t *testing.T) {
		c := refresh.NewCoordinator(nil)
		boom := errors.New("backend said no")
		var calls atomic.Int32

		_, err := c.Do(ctx, "refresh-0", func(ctx context.Context) (*refresh.Result, error) {
			calls.Add(1)
			return nil, boom
		})
		require.ErrorIs(t, err, boom)

		res, err := c.Do(ctx, "refresh-0", slowExchange(&calls, 0))
		require.NoError(t, err)
		require.NotNil(t, res)
		require.Equal(t, int32(2), calls.Load())
	})

	t.Run("cancelled caller returns early", func(t *testing.T) {
		c := refresh.NewCoordinator(nil)
		var calls atomic.Int32
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := c.Do(cctx, "refresh-0", slowExchange(&calls, 20*time.Millisecond))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestCoordinator_SharedRedisStore(t *testing.T) {
	ctx := context.Background()
	_, client := setupTestRedis(t)

	// Two coordinators stand in for two gateway instances
	instanceA := refresh.NewCoordinator(refresh.NewRedisStore(client), refresh.WithPollInterval(5*time.Millisecond))
	instanceB := refresh.NewCoordinator(refresh.NewRedisStore(client), refresh.WithPollInterval(5*time.Millisecond))
	var calls atomic.Int32

	var wg sync.WaitGroup
	var resA, resB *refresh.Result
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		resA, err = instanceA.Do(ctx, "refresh-0", slowExchange(&calls, 100*time.Millisecond))
		require.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		var err error
		resB, err = instanceB.Do(ctx, "refresh-0", slowExchange(&calls, 100*time.Millisecond))
		require.NoError(t, err)
	}()
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, resA.AccessToken, resB.AccessToken)
	require.Equal(t, resA.RefreshToken, resB.RefreshToken)
}

func TestKey(t *testing.T) {
	require.Equal(t, refresh.Key("abc"), refresh.Key("abc"))
	require.NotEqual(t, refresh.Key("abc"), refresh.Key("abd"))
	require.NotContains(t, refresh.Key("super-secret-refresh-token"), "secret")
	require.Len(t, refresh.Key("abc"), 64)
}
