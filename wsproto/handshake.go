package wsproto

import (
	"crypto/sha1"
	"encoding/base64"
)

// keyGUID is the fixed GUID every WebSocket handshake concatenates to the
// client key, per RFC 6455 section 4.2.2.
const keyGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey computes the Sec-WebSocket-Accept value for a client's
// Sec-WebSocket-Key.
func AcceptKey(clientKey string) string {
	sum := sha1.Sum([]byte(clientKey + keyGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// HandshakeResponse builds the complete 101 Switching Protocols response for
// a client key. Subprotocols and extensions are not negotiated.
func HandshakeResponse(clientKey string) []byte {
	return []byte("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + AcceptKey(clientKey) + "\r\n\r\n")
}
