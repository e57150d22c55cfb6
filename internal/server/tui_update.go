// ABOUTME: TUI update helpers for server
// ABOUTME: Collects server state and pushes it to the TUI once per second
package server

import (
	"context"
	"sort"
	"time"
)

const tuiRefresh = time.Second

// status snapshots the server for display
func (s *Server) status() ServerStatus {
	s.clientsMu.RLock()
	clients := make([]ClientInfo, 0, len(s.clients))
	for _, client := range s.clients {
		client.mu.RLock()
		lost := client.stats.Lost
		client.mu.RUnlock()

		clients = append(clients, ClientInfo{
			Name:    client.Name,
			ID:      client.ID,
			Dropped: client.dropped.Load(),
			Lost:    lost,
		})
	}
	s.clientsMu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].Name < clients[j].Name })

	status := ServerStatus{
		Name:    s.config.Name,
		Port:    s.config.Port,
		Source:  s.source.Name(),
		Stream:  s.start,
		Session: s.session.Stats(),
		Dropped: s.dropped.Load(),
		Clients: clients,
	}
	if s.hub != nil {
		status.Peers = s.hub.Peers()
	}
	return status
}

// tuiLoop refreshes the TUI until ctx ends
func (s *Server) tuiLoop(ctx context.Context) {
	ticker := time.NewTicker(tuiRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tui.Update(s.status())
		}
	}
}
