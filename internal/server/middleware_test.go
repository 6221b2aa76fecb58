package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	assert := assert.New(t)
	rl := NewRateLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		assert.True(rl.Allow("conn-1"), "request %d should be allowed", i+1)
	}
	assert.False(rl.Allow("conn-1"), "fourth request should be denied")
}

func TestRateLimiterIsPerConnection(t *testing.T) {
	assert := assert.New(t)
	rl := NewRateLimiter(1, time.Second)

	assert.True(rl.Allow("conn-1"))
	assert.False(rl.Allow("conn-1"))
	assert.True(rl.Allow("conn-2"), "other connections have their own budget")
}

func TestRateLimiterWindowSlides(t *testing.T) {
	assert := assert.New(t)
	rl := NewRateLimiter(2, 50*time.Millisecond)

	assert.True(rl.Allow("conn-1"))
	assert.True(rl.Allow("conn-1"))
	assert.False(rl.Allow("conn-1"))

	time.Sleep(60 * time.Millisecond)
	assert.True(rl.Allow("conn-1"), "budget refreshes once the window passes")
}

func TestRateLimiterCleanup(t *testing.T) {
	assert := assert.New(t)
	rl := NewRateLimiter(5, 20*time.Millisecond)

	rl.Allow("conn-1")
	rl.Allow("conn-2")
	assert.Len(rl.requests, 2)

	time.Sleep(30 * time.Millisecond)
	rl.Cleanup()
	assert.Len(rl.requests, 0)
}

func TestRateLimiterRemoveConnection(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("conn-1"))
	assert.False(t, rl.Allow("conn-1"))

	rl.RemoveConnection("conn-1")
	assert.True(t, rl.Allow("conn-1"), "removal resets the budget")
}

func TestConnectionHealthCloseInactive(t *testing.T) {
	assert := assert.New(t)
	h := NewConnectionHealth()

	closedA := false
	closedB := false
	h.Track("conn-a", func() { closedA = true })
	h.Track("conn-b", func() { closedB = true })

	time.Sleep(20 * time.Millisecond)
	h.UpdateActivity("conn-b")

	closed := h.CloseInactive(10 * time.Millisecond)
	assert.Equal(1, closed)
	assert.True(closedA, "idle connection gets closed")
	assert.False(closedB, "active connection stays open")

	// Once conn-b goes quiet too, the next sweep reaps it.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(1, h.CloseInactive(10*time.Millisecond))
	assert.True(closedB)
}

func TestConnectionHealthRemoveConnection(t *testing.T) {
	h := NewConnectionHealth()

	closed := false
	h.Track("conn-a", func() { closed = true })
	h.RemoveConnection("conn-a")

	assert.Equal(t, 0, h.CloseInactive(0))
	assert.False(t, closed, "removal must not invoke close")
}
