package analysis

import "sync"

// sessionGate rejects a second submission from a session while its first is in flight.
type sessionGate struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newSessionGate() *sessionGate {
	return &sessionGate{inFlight: make(map[string]struct{})}
}

func (g *sessionGate) begin(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[id]; busy {
		return false
	}
	g.inFlight[id] = struct{}{}
	return true
}

func (g *sessionGate) end(id string) {
	g.mu.Lock()
	delete(g.inFlight, id)
	g.mu.Unlock()
}

func (g *sessionGate) active(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[id]
	return busy
}
