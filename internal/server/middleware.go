package server

import (
	"sync"
	"time"
)

// RateLimiter implements per-connection rate limiting with a sliding
// window, so one abusive client cannot starve the rest.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time // connectionID -> recent request times
	mu          sync.Mutex
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// Allow reports whether the connection may send another message now.
func (r *RateLimiter) Allow(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	timestamps := r.requests[connectionID]
	valid := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= r.maxRequests {
		r.requests[connectionID] = valid
		return false
	}

	r.requests[connectionID] = append(valid, now)
	return true
}

// Cleanup drops connections with no activity inside the window.
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)
	for connID, timestamps := range r.requests {
		active := false
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				active = true
				break
			}
		}
		if !active {
			delete(r.requests, connID)
		}
	}
}

// RemoveConnection drops rate limit data when a websocket disconnects.
func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, connectionID)
}

// ConnectionHealth tracks last activity per connection and can close
// the ones that went quiet. Each tracked connection registers a close
// func; closing makes its read loop exit, which unregisters it from the
// room it was subscribed to.
type ConnectionHealth struct {
	conns map[string]*trackedConn
	mu    sync.Mutex
}

type trackedConn struct {
	lastActivity time.Time
	close        func()
}

func NewConnectionHealth() *ConnectionHealth {
	return &ConnectionHealth{
		conns: make(map[string]*trackedConn),
	}
}

// Track starts watching a connection. close is invoked at most once,
// from CloseInactive.
func (h *ConnectionHealth) Track(connectionID string, close func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[connectionID] = &trackedConn{lastActivity: time.Now(), close: close}
}

// UpdateActivity records traffic on a connection; called per message.
func (h *ConnectionHealth) UpdateActivity(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if tc, ok := h.conns[connectionID]; ok {
		tc.lastActivity = time.Now()
	}
}

// RemoveConnection stops tracking without closing.
func (h *ConnectionHealth) RemoveConnection(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connectionID)
}

// CloseInactive closes every connection idle longer than timeout and
// returns how many it closed.
func (h *ConnectionHealth) CloseInactive(timeout time.Duration) int {
	h.mu.Lock()
	var stale []*trackedConn
	now := time.Now()
	for connID, tc := range h.conns {
		if now.Sub(tc.lastActivity) > timeout {
			stale = append(stale, tc)
			delete(h.conns, connID)
		}
	}
	h.mu.Unlock()

	// Close outside the lock; close funcs may block briefly.
	for _, tc := range stale {
		tc.close()
	}
	return len(stale)
}
