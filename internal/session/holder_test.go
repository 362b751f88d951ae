package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/LocalVault/krypto"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newHolder(t *testing.T) (*Holder, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(WithClock(clock.Now)), clock
}

func TestEmptyHolder(t *testing.T) {
	h, _ := newHolder(t)

	_, ok := h.Key()
	assert.False(t, ok)
	assert.False(t, h.IsLoggedIn())
	assert.Empty(t, h.SessionID())
}

func TestSetKeyCopiesKey(t *testing.T) {
	h, _ := newHolder(t)
	key := krypto.Key{1, 2, 3, 4}

	h.SetKey(key)
	key.Wipe()

	got, ok := h.Key()
	require.True(t, ok)
	assert.Equal(t, krypto.Key{1, 2, 3, 4}, got)
	assert.NotEmpty(t, h.SessionID())

	got.Wipe()
	again, ok := h.Key()
	require.True(t, ok)
	assert.Equal(t, krypto.Key{1, 2, 3, 4}, again)
}

func TestSessionExpiresAfterTimeout(t *testing.T) {
	h, clock := newHolder(t)
	h.SetKey(krypto.Key{9})

	clock.Advance(DefaultTimeout + time.Second)

	_, ok := h.Key()
	assert.False(t, ok)
	assert.False(t, h.IsLoggedIn())
	assert.Empty(t, h.SessionID())
}

func TestSessionAtExactTimeoutIsValid(t *testing.T) {
	h, clock := newHolder(t)
	h.SetKey(krypto.Key{9})

	clock.Advance(DefaultTimeout)
	assert.True(t, h.IsLoggedIn())
}

func TestReadsSlideTheDeadline(t *testing.T) {
	h, clock := newHolder(t)
	h.SetKey(krypto.Key{9})

	for i := 0; i < 5; i++ {
		clock.Advance(2 * 24 * time.Hour)
		require.True(t, h.IsLoggedIn(), "read %d", i)
	}

	clock.Advance(DefaultTimeout + time.Nanosecond)
	assert.False(t, h.IsLoggedIn())
}

func TestClear(t *testing.T) {
	h, _ := newHolder(t)
	h.SetKey(krypto.Key{9})

	h.Clear()

	_, ok := h.Key()
	assert.False(t, ok)
}

func TestExpiryHookRunsOnce(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var expired []string
	h := New(WithClock(clock.Now), WithTimeout(time.Minute), WithExpiryHook(func(id string) {
		expired = append(expired, id)
	}))
	h.SetKey(krypto.Key{1})
	id := h.SessionID()

	clock.Advance(2 * time.Minute)
	assert.False(t, h.IsLoggedIn())
	assert.False(t, h.IsLoggedIn())

	assert.Equal(t, []string{id}, expired)
}

func TestConcurrentReadsAndClear(t *testing.T) {
	h, _ := newHolder(t)
	h.SetKey(krypto.Key{7, 7})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if k, ok := h.Key(); ok {
				assert.Equal(t, krypto.Key{7, 7}, k)
			}
		}()
		go func() {
			defer wg.Done()
			h.Clear()
		}()
	}
	wg.Wait()
}
