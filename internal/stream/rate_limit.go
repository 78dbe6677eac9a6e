package stream

import "sync"

// admission is the outcome of asking the limiter for a stream slot.
type admission int

const (
	admitted admission = iota
	overPerIP
	overTotal
)

func (a admission) String() string {
	switch a {
	case admitted:
		return "admitted"
	case overPerIP:
		return "per_ip"
	case overTotal:
		return "global"
	}
	return "unknown"
}

// streamLimiter caps open streams per client address and across the process.
type streamLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	open     int
	ipCap    int
	totalCap int
}

func newStreamLimiter(ipCap, totalCap int) *streamLimiter {
	if ipCap < 1 {
		ipCap = 1
	}
	return &streamLimiter{perIP: make(map[string]int), ipCap: ipCap, totalCap: totalCap}
}

// admit takes a slot for ip unless a cap is reached. The global cap is
// checked first so a full server reports itself as such.
func (l *streamLimiter) admit(ip string) admission {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.open >= l.totalCap:
		return overTotal
	case l.perIP[ip] >= l.ipCap:
		return overPerIP
	}
	l.perIP[ip]++
	l.open++
	return admitted
}

// release returns a slot taken by admit. Releasing an address with no
// open streams is a no-op.
func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.perIP[ip]
	if !ok {
		return
	}
	if n <= 1 {
		delete(l.perIP, ip)
	} else {
		l.perIP[ip] = n - 1
	}
	l.open--
}

func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

func (l *streamLimiter) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}
