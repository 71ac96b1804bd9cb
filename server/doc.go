// Package server implements the dashboard service: a single loopback TCP
// port that serves the scoreboard page over plain HTTP and live state over
// WebSocket.
//
// Architecture:
//
// Each accepted connection gets its own goroutine. The first request decides
// its fate: a GET /ws with an Upgrade header becomes a WebSocket session,
// any other GET is answered by the static responder and closed, everything
// else is a 404. WebSocket sessions join a live-connection set, receive one
// immediate snapshot, and then only send commands upstream.
//
// A single broadcaster goroutine ticks at the configured interval, compares
// the serialized snapshot against the previous broadcast and fans out only
// on change. Uploads trigger the same fan-out out of cycle so the new
// filename appears on every dashboard at once.
//
// Isolation:
//
// No lock is held across socket I/O and no connection's error escapes its
// goroutine. The simulation loop on the other side of the state.Store never
// waits on the network, even with every client gone or wedged.
package server
