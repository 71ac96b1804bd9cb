package server

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// broadcastLoop wakes at the configured interval and pushes the current
// snapshot to every client, but only when it changed since the last push.
// A handful of local viewers polling an idle scoreboard should cost nothing.
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcastState()
		}
	}
}

// broadcastState serializes the snapshot, compares it against the last
// broadcast and fans out on change. Serialization is deterministic (struct
// fields in declared order, map keys sorted), so byte equality is state
// equality. Clients whose write fails are pruned from the live set; there is
// no retry and no queue.
func (s *Server) broadcastState() {
	data, err := json.Marshal(s.store.Snapshot())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal snapshot")
		return
	}

	s.broadcastMu.Lock()
	if string(data) == s.lastBroadcast {
		s.broadcastMu.Unlock()
		return
	}
	s.lastBroadcast = string(data)
	s.broadcastMu.Unlock()

	for _, c := range s.liveConns() {
		if err := c.writeText(data); err != nil {
			s.log.Debug().Err(err).Str("conn_id", c.id).Msg("pruning dead client")
			s.removeConn(c)
		}
	}
}
