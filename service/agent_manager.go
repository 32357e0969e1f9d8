package service

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"fleetconsole/models"
)

// AgentLister fetches the current agent snapshot from the command server.
// Declared here so tests can stub the remote client.
type AgentLister interface {
	ListAgents(ctx context.Context) ([]models.Agent, error)
}

// AgentManager keeps the read-only roster of connected agents, refreshed on
// a fixed interval. Commands never mutate it; the server owns the truth.
// After every refresh the selection is pruned so it stays a subset of the
// roster.
type AgentManager struct {
	lister    AgentLister
	session   *Session
	selection *Selection
	interval  time.Duration

	mu     sync.RWMutex
	agents map[string]models.Agent
}

func NewAgentManager(lister AgentLister, session *Session, selection *Selection, interval time.Duration) *AgentManager {
	return &AgentManager{
		lister:    lister,
		session:   session,
		selection: selection,
		interval:  interval,
		agents:    make(map[string]models.Agent),
	}
}

// Start refreshes once immediately, then keeps refreshing on the interval
// until the context is cancelled. The ticker is independent of the relay
// flush timers; a slow listing never stalls log rendering.
func (m *AgentManager) Start(ctx context.Context) {
	if err := m.Refresh(ctx); err != nil {
		log.Printf("Initial agent refresh failed: %v", err)
	}

	ticker := time.NewTicker(m.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Refresh(ctx); err != nil {
					log.Printf("Agent refresh failed: %v", err)
				}
			}
		}
	}()
}

// Refresh replaces the snapshot with the server's current list. An
// unauthorized answer clears the stored credential and forces re-login;
// any other failure keeps the previous snapshot.
func (m *AgentManager) Refresh(ctx context.Context) error {
	if !m.session.Authenticated() {
		return nil
	}

	agents, err := m.lister.ListAgents(ctx)
	if err != nil {
		if models.KindOf(err) == models.ErrUnauthorized {
			m.session.Clear()
		}
		return err
	}

	next := make(map[string]models.Agent, len(agents))
	for _, agent := range agents {
		next[agent.ID] = agent
	}

	m.mu.Lock()
	m.agents = next
	m.mu.Unlock()

	if m.selection != nil {
		m.selection.Prune(m.IDs())
	}
	return nil
}

// Snapshot returns all known agents sorted by id.
func (m *AgentManager) Snapshot() []models.Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agents := make([]models.Agent, 0, len(m.agents))
	for _, agent := range m.agents {
		agents = append(agents, agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents
}

// IDs returns all known agent ids sorted.
func (m *AgentManager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get looks up one agent by id.
func (m *AgentManager) Get(id string) (models.Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agent, ok := m.agents[id]
	return agent, ok
}

func (m *AgentManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.agents)
}
