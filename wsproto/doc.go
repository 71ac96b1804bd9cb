// Package wsproto implements the slice of RFC 6455 the dashboard needs,
// directly on byte streams.
//
// The server deliberately does not pull in a websocket library: the whole
// transport is one text frame shape in each direction on a connection the
// server already owns, and keeping the wire code here means the single
// listening port can hand the same net.Conn to either the HTTP responder or
// the frame loop after reading the request.
//
// Supported: the opening handshake accept key, unmasked server text frames,
// masked client frames with 7/16/64-bit lengths. Not supported: fragmented
// messages, ping/pong, subprotocols, extensions. Clients that need those are
// outside this protocol.
package wsproto
