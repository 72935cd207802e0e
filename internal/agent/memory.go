package agent

import (
	"sync"
	"time"
)

// Exchange is one prompt and the model's reply.
type Exchange struct {
	RunID  string    `json:"run_id"`
	Input  string    `json:"input"`
	Output string    `json:"output"`
	At     time.Time `json:"at"`
}

// Memory keeps the most recent exchanges of each agent, oldest dropped first.
type Memory struct {
	mu      sync.Mutex
	size    int
	buffers map[string][]Exchange
}

// NewMemory returns a memory holding up to size exchanges per agent (20 when size <= 0).
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 20
	}
	m := &Memory{size: size, buffers: make(map[string][]Exchange)}
	for _, name := range Names {
		m.buffers[name] = nil
	}
	return m
}

// Append records an exchange for agent.
func (m *Memory) Append(agent string, ex Exchange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := append(m.buffers[agent], ex)
	if len(buf) > m.size {
		buf = append([]Exchange(nil), buf[len(buf)-m.size:]...)
	}
	m.buffers[agent] = buf
}

// History returns a copy of agent's exchanges, oldest first.
func (m *Memory) History(agent string) []Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Exchange(nil), m.buffers[agent]...)
}

// Counts returns the number of stored exchanges per agent.
func (m *Memory) Counts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.buffers))
	for name, buf := range m.buffers {
		out[name] = len(buf)
	}
	return out
}
