package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewManager(client, DefaultTTL), mr
}

func TestAcquireAndCheck(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "EQ-1", "R1", 300*time.Second))

	info, err := m.Check(ctx, "EQ-1")
	require.NoError(t, err)
	assert.True(t, info.Locked)
	assert.Equal(t, "R1", info.HolderID)
	assert.LessOrEqual(t, info.ExpiresIn, 300*time.Second)
	assert.Greater(t, info.ExpiresIn, 290*time.Second)
}

func TestAcquireConflictReportsHolder(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "EQ-1", "R1", 300*time.Second))

	err := m.Acquire(ctx, "EQ-1", "R2", 300*time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockHeld))

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "EQ-1", conflict.EquipmentID)
	assert.Equal(t, "R1", conflict.HolderID)
	assert.Greater(t, conflict.ExpiresIn, time.Duration(0))
}

func TestMutualExclusion(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results <- m.Acquire(ctx, "EQ-RACE", "renter-"+string(rune('a'+n)), 60*time.Second)
		}(i)
	}
	wg.Wait()
	close(results)

	acquired, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			acquired++
		case errors.Is(err, ErrLockHeld):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, acquired)
	assert.Equal(t, callers-1, conflicts)
}

func TestReleaseRequiresOwnership(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "EQ-1", "R1", 300*time.Second))

	ok, err := m.Release(ctx, "EQ-1", "R2")
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := m.Check(ctx, "EQ-1")
	require.NoError(t, err)
	assert.True(t, info.Locked)
	assert.Equal(t, "R1", info.HolderID)
}

func TestReleaseByOwner(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "EQ-1", "R1", 300*time.Second))

	ok, err := m.Release(ctx, "EQ-1", "R1")
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := m.Check(ctx, "EQ-1")
	require.NoError(t, err)
	assert.False(t, info.Locked)

	// Releasing again is a benign no-op.
	ok, err = m.Release(ctx, "EQ-1", "R1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReleaseDoesNotRaceReacquire(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "EQ-1", "R1", time.Second))
	mr.FastForward(2 * time.Second)

	// R2 re-acquires after R1's lock expired; R1's stale release must not
	// delete R2's lock.
	require.NoError(t, m.Acquire(ctx, "EQ-1", "R2", 300*time.Second))

	ok, err := m.Release(ctx, "EQ-1", "R1")
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := m.Check(ctx, "EQ-1")
	require.NoError(t, err)
	assert.True(t, info.Locked)
	assert.Equal(t, "R2", info.HolderID)
}

func TestExtendAddsToRemainingTTL(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "EQ-1", "R1", 300*time.Second))

	ok, err := m.Extend(ctx, "EQ-1", "R1", 300*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := m.Check(ctx, "EQ-1")
	require.NoError(t, err)
	assert.Greater(t, info.ExpiresIn, 550*time.Second)
	assert.LessOrEqual(t, info.ExpiresIn, 600*time.Second)
}

func TestExtendRequiresOwnership(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "EQ-1", "R1", 300*time.Second))

	ok, err := m.Extend(ctx, "EQ-1", "WRONG", 300*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := m.Check(ctx, "EQ-1")
	require.NoError(t, err)
	assert.LessOrEqual(t, info.ExpiresIn, 300*time.Second)
}

func TestExtendExpiredLock(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "EQ-1", "R1", time.Second))
	mr.FastForward(2 * time.Second)

	ok, err := m.Extend(ctx, "EQ-1", "R1", 300*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestForceRelease(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "EQ-1", "R1", 300*time.Second))

	ok, err := m.ForceRelease(ctx, "EQ-1")
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := m.Check(ctx, "EQ-1")
	require.NoError(t, err)
	assert.False(t, info.Locked)

	ok, err = m.ForceRelease(ctx, "EQ-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListActive(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "EQ-1", "R1", 300*time.Second))
	require.NoError(t, m.Acquire(ctx, "EQ-2", "R2", 300*time.Second))

	// Unrelated keys outside the lock prefix must not be listed.
	mr.Set("cache:nearby:abc", "x")

	locks, err := m.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 2)

	byID := map[string]string{}
	for _, l := range locks {
		byID[l.EquipmentID] = l.HolderID
		assert.Greater(t, l.ExpiresIn, time.Duration(0))
	}
	assert.Equal(t, "R1", byID["EQ-1"])
	assert.Equal(t, "R2", byID["EQ-2"])
}

func TestListActiveEmpty(t *testing.T) {
	m, _ := newTestManager(t)

	locks, err := m.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, locks)
}

func TestAcquireDefaultTTL(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "EQ-1", "R1", 0))

	info, err := m.Check(ctx, "EQ-1")
	require.NoError(t, err)
	assert.True(t, info.Locked)
	assert.LessOrEqual(t, info.ExpiresIn, DefaultTTL)
	assert.Greater(t, info.ExpiresIn, DefaultTTL-10*time.Second)
}
