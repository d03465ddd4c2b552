package client

import "sync"

// Swarm manages multiple clients in one process, e.g. bot tables filling a
// room. Clients in a swarm can reach each other's modules.
type Swarm struct {
	mu      sync.RWMutex
	clients []*Client
}

// NewSwarm creates a new swarm.
func NewSwarm() *Swarm {
	return &Swarm{}
}

// NewClient creates a new client within this swarm.
func (s *Swarm) NewClient(url, playerName string) *Client {
	c := New(url, playerName)
	s.mu.Lock()
	s.clients = append(s.clients, c)
	s.mu.Unlock()
	return c
}

// Clients returns all clients in the swarm.
func (s *Swarm) Clients() []*Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Client, len(s.clients))
	copy(out, s.clients)
	return out
}

// Open starts a connection attempt on every client in the swarm.
func (s *Swarm) Open() {
	for _, c := range s.Clients() {
		c.Open()
	}
}

// Close shuts every client down. The first error is returned.
func (s *Swarm) Close() error {
	var first error
	for _, c := range s.Clients() {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
