package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	apperrors "github.com/nawehub/session-gateway/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	defaultResultTTL    = 30 * time.Second
	defaultLockTTL      = 15 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// ExchangeFunc performs the actual refresh against the identity backend
type ExchangeFunc func(ctx context.Context) (*Result, error)

// Coordinator guarantees at most one in-flight refresh per refresh token.
// Within a process concurrent callers share one exchange; across processes the
// Store's lock serialises them and the stored Result is handed to late callers.
type Coordinator struct {
	group        singleflight.Group
	store        Store
	resultTTL    time.Duration
	lockTTL      time.Duration
	pollInterval time.Duration
}

type CoordinatorOption func(*Coordinator)

// WithResultTTL sets how long a completed refresh stays reusable
func WithResultTTL(ttl time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.resultTTL = ttl
		}
	}
}

// WithLockTTL bounds how long a crashed holder can block other instances
func WithLockTTL(ttl time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.lockTTL = ttl
		}
	}
}

func WithPollInterval(interval time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// NewCoordinator creates a coordinator. A nil store uses an InMemoryStore.
func NewCoordinator(store Store, opts ...CoordinatorOption) *Coordinator {
	if store == nil {
		store = NewInMemoryStore()
	}
	c := &Coordinator{
		store:        store,
		resultTTL:    defaultResultTTL,
		lockTTL:      defaultLockTTL,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives the storage key for a refresh token. Raw tokens are never stored as keys.
func Key(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}

// Do runs exchange for refreshToken unless an identical refresh is already running
// or has recently completed, in which case that outcome is returned instead.
func (c *Coordinator) Do(ctx context.Context, refreshToken string, exchange ExchangeFunc) (*Result, error) {
	key := Key(refreshToken)

	// The shared call must not die with whichever request happened to start it
	sharedCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(key, func() (any, error) {
		return c.run(sharedCtx, key, exchange)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

func (c *Coordinator) run(ctx context.Context, key string, exchange ExchangeFunc) (*Result, error) {
	if result, ok := c.lookup(ctx, key); ok {
		return result, nil
	}

	owner, locked, err := c.store.Lock(ctx, key, c.lockTTL)
	if err != nil {
		// Degrade to the in-process guarantee rather than failing the session
		log.Warn().Err(err).Msg("refresh lock unavailable")
	} else if !locked {
		if result, ok := c.waitForResult(ctx, key); ok {
			return result, nil
		}
	} else {
		defer func() {
			if err := c.store.Unlock(ctx, key, owner); err != nil {
				log.Warn().Err(err).Msg("failed to release refresh lock")
			}
		}()
	}

	result, err := exchange(ctx)
	if err != nil {
		return nil, err
	}
	if result.Iat.IsZero() {
		result.Iat = NowTimeFunc()
	}

	if err := c.store.Put(ctx, key, result, c.resultTTL); err != nil {
		log.Warn().Err(err).Msg("failed to store refresh result")
	}
	return result, nil
}

func (c *Coordinator) lookup(ctx context.Context, key string) (*Result, bool) {
	result, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to read refresh result")
		}
		return nil, false
	}
	return result, true
}

// waitForResult polls for another holder's result until its lock could have expired
func (c *Coordinator) waitForResult(ctx context.Context, key string) (*Result, bool) {
	deadline := time.Now().Add(c.lockTTL)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, false
		case <-ticker.C:
		}
		if result, ok := c.lookup(ctx, key); ok {
			return result, true
		}
	}
	return nil, false
}
