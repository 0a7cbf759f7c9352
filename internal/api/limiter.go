package api

import (
	"sync"
)

// computeLimiter caps concurrent region computations per client IP and
// globally.
type computeLimiter struct {
	mu       sync.Mutex
	inFlight map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newComputeLimiter(maxPerIP, maxTotal int) *computeLimiter {
	return &computeLimiter{
		inFlight: make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// acquire reserves a slot for ip. It returns false when the IP or global
// limit has been reached. Each limit is disabled when non-positive.
func (l *computeLimiter) acquire(ip string) bool {
	if l.maxPerIP <= 0 && l.maxTotal <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxTotal > 0 && l.total >= l.maxTotal {
		return false
	}
	if l.maxPerIP > 0 && l.inFlight[ip] >= l.maxPerIP {
		return false
	}

	l.inFlight[ip]++
	l.total++
	return true
}

func (l *computeLimiter) release(ip string) {
	if l.maxPerIP <= 0 && l.maxTotal <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.inFlight[ip]--
	l.total--
	if l.inFlight[ip] <= 0 {
		delete(l.inFlight, ip)
	}
}

func (l *computeLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight[ip]
}
