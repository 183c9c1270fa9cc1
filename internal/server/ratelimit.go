package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/textveil/textveil/internal/config"
)

// clientLimiter keeps one token bucket per client IP.
type clientLimiter struct {
	cfg     config.RateLimitConfig
	mu      sync.RWMutex
	clients map[string]*clientEntry
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(cfg config.RateLimitConfig) *clientLimiter {
	return &clientLimiter{
		cfg:     cfg,
		clients: make(map[string]*clientEntry),
	}
}

// allow reports whether a request from clientIP may proceed.
func (l *clientLimiter) allow(clientIP string) bool {
	if !l.cfg.Enabled {
		return true
	}
	return l.entry(clientIP).limiter.Allow()
}

func (l *clientLimiter) entry(clientIP string) *clientEntry {
	l.mu.RLock()
	entry, exists := l.clients[clientIP]
	l.mu.RUnlock()

	if exists {
		l.mu.Lock()
		entry.lastSeen = time.Now()
		l.mu.Unlock()
		return entry
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if entry, exists := l.clients[clientIP]; exists {
		return entry
	}

	entry = &clientEntry{
		limiter:  rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst),
		lastSeen: time.Now(),
	}
	l.clients[clientIP] = entry
	return entry
}

// cleanupStale removes buckets idle for more than an hour so the map does
// not grow without bound.
func (l *clientLimiter) cleanupStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-time.Hour)
	for ip, entry := range l.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}

// startCleanupRoutine starts a background routine to clean up stale buckets.
func (l *clientLimiter) startCleanupRoutine() {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			l.cleanupStale()
		}
	}()
}
