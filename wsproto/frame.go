package wsproto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame opcodes used by the dashboard protocol.
const (
	OpText  byte = 0x1
	OpClose byte = 0x8
)

// MaxPayload is the largest client frame the server will read. Anything
// larger is a protocol violation and drops the connection.
const MaxPayload = 1 << 20 // 1 MiB

// ErrFrameTooLarge is returned when a frame declares a payload above
// MaxPayload.
var ErrFrameTooLarge = errors.New("websocket frame exceeds maximum payload size")

// EncodeText builds one unfragmented, unmasked text frame around payload.
// Server-to-client frames are never masked. The length field uses the
// shortest of the three RFC 6455 encodings.
func EncodeText(payload []byte) []byte {
	const finText = 0x80 | OpText

	n := len(payload)
	frame := make([]byte, 0, n+10)
	frame = append(frame, finText)
	switch {
	case n < 126:
		frame = append(frame, byte(n))
	case n <= 65535:
		frame = append(frame, 126, byte(n>>8), byte(n))
	default:
		frame = append(frame, 127)
		frame = binary.BigEndian.AppendUint64(frame, uint64(n))
	}
	return append(frame, payload...)
}

// ReadFrame reads one client frame from r and returns its opcode and
// unmasked payload. It tolerates partial socket reads but not fragmented
// messages: continuation frames come back as their own opcode and the caller
// treats them like any other non-text frame.
func ReadFrame(r io.Reader) (opcode byte, payload []byte, err error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("read frame header: %w", err)
	}

	opcode = header[0] & 0x0F
	masked := header[1]&0x80 != 0
	length := uint64(header[1] & 0x7F)

	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return 0, nil, fmt.Errorf("read extended length: %w", err)
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return 0, nil, fmt.Errorf("read extended length: %w", err)
		}
		length = binary.BigEndian.Uint64(ext[:])
	}

	if length > MaxPayload {
		return 0, nil, ErrFrameTooLarge
	}

	var mask [4]byte
	if masked {
		if _, err := io.ReadFull(r, mask[:]); err != nil {
			return 0, nil, fmt.Errorf("read mask key: %w", err)
		}
	}

	payload = make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read payload: %w", err)
	}

	if masked {
		for i := range payload {
			payload[i] ^= mask[i%4]
		}
	}
	return opcode, payload, nil
}
