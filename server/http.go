package server

import (
	"fmt"
	"net"
	"os"
)

var statusLines = map[int]string{
	200: "200 OK",
	404: "404 Not Found",
	500: "500 Internal Server Error",
}

// respondPage serves the dashboard document for / and /index.html and a 404
// for every other path. The page file is read per request so an updated
// document shows up on the next reload without a restart.
func (s *Server) respondPage(nc net.Conn, path string) {
	if path != "/" && path != "/index.html" {
		s.respondNotFound(nc)
		return
	}

	body, err := os.ReadFile(s.cfg.PagePath)
	if err != nil {
		s.log.Error().Err(err).Str("path", s.cfg.PagePath).Msg("failed to read dashboard page")
		s.respond(nc, 500, []byte("Internal Server Error"), "text/plain")
		return
	}
	s.respond(nc, 200, body, "text/html; charset=utf-8")
}

func (s *Server) respondNotFound(nc net.Conn) {
	s.respond(nc, 404, []byte("Not found"), "text/plain")
}

// respond writes a complete HTTP response. Connections are never reused for
// HTTP, so every response carries Connection: close.
func (s *Server) respond(nc net.Conn, status int, body []byte, contentType string) {
	line, ok := statusLines[status]
	if !ok {
		line = statusLines[500]
	}
	head := fmt.Sprintf(
		"HTTP/1.1 %s\r\nContent-Type: %s\r\nContent-Length: %d\r\nConnection: close\r\n\r\n",
		line, contentType, len(body),
	)
	if _, err := nc.Write(append([]byte(head), body...)); err != nil {
		s.log.Debug().Err(err).Msg("http response write failed")
	}
}
