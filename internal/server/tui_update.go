// ABOUTME: TUI update helpers for server
// ABOUTME: Functions to send mixer and client state to the TUI
package server

import (
	"time"

	"github.com/Resonate-Protocol/chanmix/pkg/chanmix"
	"github.com/samber/lo"
)

const tuiRefresh = time.Second

// snapshot gathers current server and mixer state
func (s *Server) snapshot() ServerStatus {
	s.clientsMu.RLock()
	clients := lo.MapToSlice(s.clients, func(_ string, client *Client) ClientInfo {
		client.mu.Lock()
		defer client.mu.Unlock()
		return ClientInfo{
			Name:     client.Name,
			ID:       client.ID,
			Inflight: client.inflight,
			Played:   client.played,
		}
	})
	s.clientsMu.RUnlock()

	spec := s.mixer.Spec()
	st := s.mixer.Status()

	return ServerStatus{
		Name:       s.config.Name,
		Port:       s.config.Port,
		Clients:    clients,
		Size:       st.Size,
		Free:       st.Free,
		Busy:       st.Busy,
		Dispatcher: st.Dispatcher.String(),
		Policy:     st.Policy.String(),
		Layout:     string(spec.AudioChannels),
		Rate:       spec.AudioRate,
		Playing: lo.SliceToMap(st.Playing, func(p chanmix.Playing) (int, string) {
			return p.Channel, p.File
		}),
	}
}

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}
	s.tui.Update(s.snapshot())
}

// refreshTUI pushes state periodically so elapsed times stay current
func (s *Server) refreshTUI() {
	ticker := time.NewTicker(tuiRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.updateTUI()
		}
	}
}
