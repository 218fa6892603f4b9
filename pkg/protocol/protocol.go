// Package protocol implements the framed binary wire format spoken between
// mesh nodes and the seed service. Every frame is a fixed 12-byte header
// followed by a type-specific payload. All multi-byte fields are big-endian.
//
// Decoding is defensive: every declared length is validated against the bytes
// actually supplied before anything is read, so hostile input can at worst
// produce an error value.
package protocol

import (
	"encoding/binary"
	"errors"
)

// Protocol constants
const (
	// MagicBytes identifies the protocol family ("GCTY").
	MagicBytes uint32 = 0x47435459

	// ProtocolVersion is the single supported wire version.
	ProtocolVersion uint16 = 1

	// MaxMessageSize is the largest payload a frame may carry.
	MaxMessageSize = 1024 * 1024

	// HeaderSize is the fixed size of the frame header.
	HeaderSize = 12
)

// MessageType identifies the operation a frame requests or answers.
type MessageType uint8

// Wire-stable message type values.
const (
	TypeHandshakeRequest  MessageType = 0x01
	TypeHandshakeResponse MessageType = 0x02
	TypePeerRegister      MessageType = 0x12
	TypePeerDiscovery     MessageType = 0x13
	TypePeerUnregister    MessageType = 0x14
	TypePing              MessageType = 0xF0
	TypePong              MessageType = 0xF1
	TypeError             MessageType = 0xFF
)

// String returns a human-readable name for logging.
func (t MessageType) String() string {
	switch t {
	case TypeHandshakeRequest:
		return "handshake_request"
	case TypeHandshakeResponse:
		return "handshake_response"
	case TypePeerRegister:
		return "peer_register"
	case TypePeerDiscovery:
		return "peer_discovery"
	case TypePeerUnregister:
		return "peer_unregister"
	case TypePing:
		return "ping"
	case TypePong:
		return "pong"
	case TypeError:
		return "error"
	default:
		return "unknown"
	}
}

// Decode failures. Handlers map these onto wire error responses; none of them
// is ever fatal to a connection handler.
var (
	ErrTooShort        = errors.New("protocol: buffer shorter than header")
	ErrBadMagic        = errors.New("protocol: bad magic bytes")
	ErrBadVersion      = errors.New("protocol: unsupported protocol version")
	ErrReservedFlags   = errors.New("protocol: reserved flags field is nonzero")
	ErrPayloadTooLarge = errors.New("protocol: declared payload exceeds maximum")
	ErrLengthMismatch  = errors.New("protocol: declared payload length does not match buffer")
)

// Header is the fixed frame header.
type Header struct {
	Magic         uint32
	Version       uint16
	Type          MessageType
	Flags         uint8
	PayloadLength uint32
}

// Encode frames a payload of the given type. Encoding cannot fail; callers
// own keeping payloads under MaxMessageSize (all payloads produced by this
// package are far below it).
func Encode(msgType MessageType, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], MagicBytes)
	binary.BigEndian.PutUint16(buf[4:6], ProtocolVersion)
	buf[6] = byte(msgType)
	buf[7] = 0
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// ParseHeader validates the fixed header fields without requiring the payload
// to be present. The declared PayloadLength is bounds-checked against
// MaxMessageSize but not against the remainder of buf; use Decode for that.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrTooShort
	}

	hdr := Header{
		Magic:         binary.BigEndian.Uint32(buf[0:4]),
		Version:       binary.BigEndian.Uint16(buf[4:6]),
		Type:          MessageType(buf[6]),
		Flags:         buf[7],
		PayloadLength: binary.BigEndian.Uint32(buf[8:12]),
	}

	if hdr.Magic != MagicBytes {
		return Header{}, ErrBadMagic
	}
	if hdr.Version != ProtocolVersion {
		return Header{}, ErrBadVersion
	}
	if hdr.Flags != 0 {
		return Header{}, ErrReservedFlags
	}
	if hdr.PayloadLength > MaxMessageSize {
		return Header{}, ErrPayloadTooLarge
	}

	return hdr, nil
}

// Decode parses one complete frame. The returned payload is a subslice of buf;
// it is never copied and never extends past the supplied bytes. The declared
// length must equal exactly the number of bytes following the header.
func Decode(buf []byte) (Header, []byte, error) {
	hdr, err := ParseHeader(buf)
	if err != nil {
		return Header{}, nil, err
	}

	if int(hdr.PayloadLength) != len(buf)-HeaderSize {
		return Header{}, nil, ErrLengthMismatch
	}

	return hdr, buf[HeaderSize:], nil
}
