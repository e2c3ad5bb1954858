package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeCacheError, "lock not acquired")
	ErrLockNotHeld     = errors.New(errors.ErrCodeCacheError, "lock not held")
)

const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// newLockValue generates the owner token stored under the lock key.
var newLockValue = func() string { return uuid.New().String() }

// Mutex is a single-owner lock on one Redis key.
type Mutex struct {
	client     *Client
	key        string
	value      string
	ttl        time.Duration
	retryDelay time.Duration
	retryCount int
	logger     logging.Logger
}

type MutexOption func(*Mutex)

func WithLockTTL(ttl time.Duration) MutexOption {
	return func(m *Mutex) { m.ttl = ttl }
}

func WithLockRetry(count int, delay time.Duration) MutexOption {
	return func(m *Mutex) {
		m.retryCount = count
		m.retryDelay = delay
	}
}

// NewMutex creates a mutex named name. Each Mutex carries its own owner token.
func NewMutex(client *Client, name string, log logging.Logger, opts ...MutexOption) *Mutex {
	if log == nil {
		log = logging.NewNopLogger()
	}
	m := &Mutex{
		client:     client,
		key:        "legallens:lock:" + name,
		value:      newLockValue(),
		ttl:        30 * time.Second,
		retryDelay: 100 * time.Millisecond,
		retryCount: 50,
		logger:     log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	ok, err := m.client.SetNX(ctx, m.key, m.value, m.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to set lock")
	}
	return ok, nil
}

// Lock retries TryLock until it succeeds, ctx ends or retries run out.
func (m *Mutex) Lock(ctx context.Context) error {
	for i := 0; i < m.retryCount; i++ {
		ok, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.retryDelay):
		}
	}
	m.logger.Warn("lock not acquired", logging.String("key", m.key), logging.Int("attempts", m.retryCount))
	return ErrLockNotAcquired
}

// Unlock releases the lock only when this Mutex still owns it.
func (m *Mutex) Unlock(ctx context.Context) error {
	res, err := m.client.Eval(ctx, unlockScript, []string{m.key}, m.value).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release lock")
	}
	if res == 0 {
		return ErrLockNotHeld
	}
	return nil
}
