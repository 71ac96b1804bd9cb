package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/robosim/sweeperboard/config"
	"github.com/robosim/sweeperboard/state"
	"github.com/robosim/sweeperboard/wsproto"
)

// maxHeaderBytes caps how much of a request the dispatcher will buffer while
// looking for the end of the headers.
const maxHeaderBytes = 64 << 10 // 64 KiB

var (
	// ErrHeaderTooLarge is returned when a request's headers exceed
	// maxHeaderBytes before terminating.
	ErrHeaderTooLarge = errors.New("request headers exceed maximum size")

	errMalformedRequest = errors.New("malformed request line")
)

// Server is the dashboard service: one TCP port speaking plain HTTP for the
// dashboard page and WebSocket for live state and commands.
type Server struct {
	cfg   *config.Config
	store *state.Store
	sink  CodeSink
	log   zerolog.Logger

	ln net.Listener

	mu    sync.Mutex
	conns map[*conn]struct{}

	// lastBroadcast caches the previous broadcast payload so unchanged
	// state produces no network traffic.
	broadcastMu   sync.Mutex
	lastBroadcast string
}

// New creates a Server. The Store is shared with the simulation loop; the
// sink receives uploaded robot code.
func New(cfg *config.Config, store *state.Store, sink CodeSink, log zerolog.Logger) *Server {
	return &Server{
		cfg:   cfg,
		store: store,
		sink:  sink,
		log:   log.With().Str("component", "server").Logger(),
		conns: make(map[*conn]struct{}),
	}
}

// Listen binds the configured address. It is separate from Serve so callers
// can learn the bound address (e.g. when configured with port 0).
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound listen address. Only valid after Listen.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Serve accepts connections until ctx is canceled, handling each on its own
// goroutine, and runs the periodic broadcaster alongside. A fault on one
// connection never reaches another: every connection owns its socket and
// nothing holds a lock across network I/O.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.log.Info().Str("addr", s.Addr()).Msg("dashboard listening")

	go s.broadcastLoop(ctx)
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.closeAll()
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		go s.handleConn(ctx, nc)
	}
}

// ListenAndServe is Listen followed by Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// handleConn reads the first request off a fresh connection and routes it:
// WebSocket upgrade, plain HTTP, or a 404 for everything else.
func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	raw, err := readUntilHeaderEnd(nc)
	if err != nil {
		// Protocol violation or transport fault before we had a request;
		// close without a response.
		s.log.Debug().Err(err).Str("remote", nc.RemoteAddr().String()).Msg("dropping connection")
		_ = nc.Close()
		return
	}

	req, err := parseRequest(raw)
	if err != nil {
		s.respondNotFound(nc)
		_ = nc.Close()
		return
	}

	if req.method == "GET" && req.path == "/ws" && req.isWebSocketUpgrade() {
		key := req.headers["sec-websocket-key"]
		if _, err := nc.Write(wsproto.HandshakeResponse(key)); err != nil {
			_ = nc.Close()
			return
		}
		s.wsSession(ctx, nc)
		return
	}

	if req.method == "GET" {
		s.respondPage(nc, req.path)
		_ = nc.Close()
		return
	}

	s.respondNotFound(nc)
	_ = nc.Close()
}

// request is the minimal parse of an initial HTTP request: enough to route.
type request struct {
	method  string
	path    string
	headers map[string]string
}

// isWebSocketUpgrade reports whether the request asks for a WebSocket
// upgrade with the key the handshake needs.
func (r *request) isWebSocketUpgrade() bool {
	return strings.EqualFold(r.headers["upgrade"], "websocket") && r.headers["sec-websocket-key"] != ""
}

// readUntilHeaderEnd reads from nc until the blank line terminating the
// headers, tolerating partial reads, with a hard cap on total bytes.
func readUntilHeaderEnd(nc net.Conn) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, 4096)
	for !bytes.Contains(buf, []byte("\r\n\r\n")) {
		n, err := nc.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if len(buf) > maxHeaderBytes {
				return nil, ErrHeaderTooLarge
			}
		}
		if err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
	}
	return buf, nil
}

// parseRequest splits the request line and header fields. Header names are
// lowercased; the request target is reduced to its path. Bytes after the
// header terminator are discarded: the only bodied requests this server
// could receive are non-GET, which are rejected anyway.
func parseRequest(raw []byte) (*request, error) {
	head, _, _ := bytes.Cut(raw, []byte("\r\n\r\n"))
	lines := strings.Split(string(head), "\r\n")

	parts := strings.Fields(lines[0])
	if len(parts) < 2 {
		return nil, errMalformedRequest
	}

	target := parts[1]
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}

	req := &request{
		method:  strings.ToUpper(parts[0]),
		path:    target,
		headers: make(map[string]string, len(lines)-1),
	}
	for _, line := range lines[1:] {
		if name, value, ok := strings.Cut(line, ":"); ok {
			req.headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
		}
	}
	return req, nil
}

// addConn registers a handshaken connection with the live set.
func (s *Server) addConn(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
}

// removeConn drops a connection from the live set and closes it. Safe to
// call more than once.
func (s *Server) removeConn(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	_ = c.close()
}

// liveConns snapshots the live set so writes happen outside the lock.
func (s *Server) liveConns() []*conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}

func (s *Server) closeAll() {
	for _, c := range s.liveConns() {
		s.removeConn(c)
	}
}
