package server

import (
	"context"
	"net"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/robosim/sweeperboard/wsproto"
)

// conn is one handshaken dashboard client. The write mutex serializes the
// initial snapshot, broadcasts and upload notifications, which arrive from
// different goroutines.
type conn struct {
	id  string
	nc  net.Conn
	wmu sync.Mutex

	closeOnce sync.Once
}

func newConn(nc net.Conn) *conn {
	return &conn{id: uuid.NewString(), nc: nc}
}

// writeText sends one text frame. Errors surface to the caller, which treats
// the connection as dead.
func (c *conn) writeText(payload []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.nc.Write(wsproto.EncodeText(payload))
	return err
}

func (c *conn) close() error {
	var err error
	c.closeOnce.Do(func() { err = c.nc.Close() })
	return err
}

// wsSession runs one client from handshake to disconnect. The client gets a
// full snapshot immediately so a browser joining mid-run shows current state
// without waiting for the broadcaster; after that the loop only reads.
func (s *Server) wsSession(ctx context.Context, nc net.Conn) {
	c := newConn(nc)
	log := s.log.With().Str("conn_id", c.id).Str("remote", nc.RemoteAddr().String()).Logger()

	s.addConn(c)
	defer s.removeConn(c)

	log.Info().Msg("dashboard client connected")
	defer log.Info().Msg("dashboard client disconnected")

	if data, err := json.Marshal(s.store.Snapshot()); err == nil {
		// A failed write here will also fail the first read below.
		_ = c.writeText(data)
	}

	for {
		if ctx.Err() != nil {
			return
		}
		opcode, payload, err := wsproto.ReadFrame(c.nc)
		if err != nil {
			log.Debug().Err(err).Msg("frame read ended session")
			return
		}
		if opcode == wsproto.OpClose {
			return
		}
		if opcode == wsproto.OpText && len(payload) > 0 {
			s.handleCommand(log, payload)
		}
	}
}
