package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
)

func newMockMutex(t *testing.T, opts ...MutexOption) (*Mutex, redismock.ClientMock) {
	t.Helper()
	orig := newLockValue
	newLockValue = func() string { return "owner-1" }
	t.Cleanup(func() { newLockValue = orig })

	db, mock := redismock.NewClientMock()
	client := &Client{rdb: db, config: &RedisConfig{}, logger: logging.NewNopLogger()}
	return NewMutex(client, "ingest:criminal", nil, opts...), mock
}

func TestMutex_TryLock(t *testing.T) {
	m, mock := newMockMutex(t)
	mock.ExpectSetNX("legallens:lock:ingest:criminal", "owner-1", 30*time.Second).SetVal(true)

	ok, err := m.TryLock(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutex_LockRetriesUntilFree(t *testing.T) {
	m, mock := newMockMutex(t, WithLockRetry(3, time.Millisecond))
	key := "legallens:lock:ingest:criminal"
	mock.ExpectSetNX(key, "owner-1", 30*time.Second).SetVal(false)
	mock.ExpectSetNX(key, "owner-1", 30*time.Second).SetVal(true)

	require.NoError(t, m.Lock(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutex_LockGivesUp(t *testing.T) {
	m, mock := newMockMutex(t, WithLockRetry(2, time.Millisecond))
	key := "legallens:lock:ingest:criminal"
	mock.ExpectSetNX(key, "owner-1", 30*time.Second).SetVal(false)
	mock.ExpectSetNX(key, "owner-1", 30*time.Second).SetVal(false)

	assert.Equal(t, ErrLockNotAcquired, m.Lock(context.Background()))
}

func TestMutex_Unlock(t *testing.T) {
	m, mock := newMockMutex(t)
	mock.ExpectEval(unlockScript, []string{"legallens:lock:ingest:criminal"}, "owner-1").SetVal(int64(1))

	assert.NoError(t, m.Unlock(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutex_UnlockNotHeld(t *testing.T) {
	m, mock := newMockMutex(t)
	mock.ExpectEval(unlockScript, []string{"legallens:lock:ingest:criminal"}, "owner-1").SetVal(int64(0))

	assert.Equal(t, ErrLockNotHeld, m.Unlock(context.Background()))
}
