package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Fixed payload sizes.
const (
	AddressFieldSize     = 64 // char[64], NUL padded
	RegisterRequestSize  = 2 + 4 + AddressFieldSize
	DiscoveryRequestSize = 2 + 4 + 4
	DiscoveryHeaderSize  = 2 + 2
	PeerEntrySize        = 2 + 4 + AddressFieldSize
	ErrorMessageSize     = 128
	ErrorResponseSize    = 1 + 3 + ErrorMessageSize
)

// Discovery request defaults applied when trailing fields are absent.
const (
	DefaultDiscoveryMaxPeers = 20
)

// ErrBadPayloadSize is returned when a payload does not match the fixed layout
// its message type requires.
var ErrBadPayloadSize = errors.New("protocol: payload size does not match message type")

// Wire error codes carried in error responses. Values are stable.
const (
	ErrCodeMalformed       uint8 = 1
	ErrCodeRateLimited     uint8 = 2
	ErrCodeUnsupportedType uint8 = 3
	ErrCodeBadPayloadSize  uint8 = 4
	ErrCodeInvalidAddress  uint8 = 5
	ErrCodeCapacity        uint8 = 6
	ErrCodeNotFound        uint8 = 7
)

// RegisterRequest is the payload of a TypePeerRegister frame.
type RegisterRequest struct {
	Port         uint16
	Capabilities uint32
	Address      string
}

// EncodeRegisterRequest builds the fixed 70-byte register payload. Addresses
// longer than the field are truncated; the field is always NUL padded.
func EncodeRegisterRequest(req RegisterRequest) []byte {
	buf := make([]byte, RegisterRequestSize)
	binary.BigEndian.PutUint16(buf[0:2], req.Port)
	binary.BigEndian.PutUint32(buf[2:6], req.Capabilities)
	putAddressField(buf[6:], req.Address)
	return buf
}

// DecodeRegisterRequest parses a register payload. The payload must be exactly
// RegisterRequestSize bytes.
func DecodeRegisterRequest(payload []byte) (RegisterRequest, error) {
	if len(payload) != RegisterRequestSize {
		return RegisterRequest{}, ErrBadPayloadSize
	}
	return RegisterRequest{
		Port:         binary.BigEndian.Uint16(payload[0:2]),
		Capabilities: binary.BigEndian.Uint32(payload[2:6]),
		Address:      addressField(payload[6:]),
	}, nil
}

// DiscoveryRequest is the payload of a TypePeerDiscovery frame.
type DiscoveryRequest struct {
	MaxPeers             uint16
	RequiredCapabilities uint32
	Reserved             uint32
}

// EncodeDiscoveryRequest builds the full 10-byte discovery payload.
func EncodeDiscoveryRequest(req DiscoveryRequest) []byte {
	buf := make([]byte, DiscoveryRequestSize)
	binary.BigEndian.PutUint16(buf[0:2], req.MaxPeers)
	binary.BigEndian.PutUint32(buf[2:6], req.RequiredCapabilities)
	binary.BigEndian.PutUint32(buf[6:10], req.Reserved)
	return buf
}

// DecodeDiscoveryRequest parses a discovery payload. Short payloads are
// tolerated: any trailing field that is absent takes its documented default
// (max_peers 20, required_capabilities 0). Oversized payloads are rejected.
func DecodeDiscoveryRequest(payload []byte) (DiscoveryRequest, error) {
	if len(payload) > DiscoveryRequestSize {
		return DiscoveryRequest{}, ErrBadPayloadSize
	}
	req := DiscoveryRequest{MaxPeers: DefaultDiscoveryMaxPeers}
	if len(payload) >= 2 {
		req.MaxPeers = binary.BigEndian.Uint16(payload[0:2])
	}
	if len(payload) >= 6 {
		req.RequiredCapabilities = binary.BigEndian.Uint32(payload[2:6])
	}
	if len(payload) >= 10 {
		req.Reserved = binary.BigEndian.Uint32(payload[6:10])
	}
	return req, nil
}

// PeerEntry is one fixed-size peer in a discovery response.
type PeerEntry struct {
	Port         uint16
	Capabilities uint32
	Address      string
}

// EncodeDiscoveryResponse builds the discovery response payload: a 4-byte
// count header followed by one fixed-size entry per peer.
func EncodeDiscoveryResponse(peers []PeerEntry) []byte {
	buf := make([]byte, DiscoveryHeaderSize+len(peers)*PeerEntrySize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(peers)))
	// buf[2:4] reserved, zero
	off := DiscoveryHeaderSize
	for _, p := range peers {
		binary.BigEndian.PutUint16(buf[off:off+2], p.Port)
		binary.BigEndian.PutUint32(buf[off+2:off+6], p.Capabilities)
		putAddressField(buf[off+6:off+PeerEntrySize], p.Address)
		off += PeerEntrySize
	}
	return buf
}

// DecodeDiscoveryResponse parses a discovery response payload. The declared
// count must match the entries actually present.
func DecodeDiscoveryResponse(payload []byte) ([]PeerEntry, error) {
	if len(payload) < DiscoveryHeaderSize {
		return nil, ErrBadPayloadSize
	}
	count := int(binary.BigEndian.Uint16(payload[0:2]))
	if len(payload) != DiscoveryHeaderSize+count*PeerEntrySize {
		return nil, ErrBadPayloadSize
	}
	peers := make([]PeerEntry, 0, count)
	off := DiscoveryHeaderSize
	for i := 0; i < count; i++ {
		peers = append(peers, PeerEntry{
			Port:         binary.BigEndian.Uint16(payload[off : off+2]),
			Capabilities: binary.BigEndian.Uint32(payload[off+2 : off+6]),
			Address:      addressField(payload[off+6 : off+PeerEntrySize]),
		})
		off += PeerEntrySize
	}
	return peers, nil
}

// ErrorResponse is the payload of a TypeError frame.
type ErrorResponse struct {
	Code    uint8
	Message string
}

// EncodeErrorResponse builds the fixed 132-byte error payload. Messages longer
// than the field are truncated.
func EncodeErrorResponse(code uint8, message string) []byte {
	buf := make([]byte, ErrorResponseSize)
	buf[0] = code
	// buf[1:4] reserved, zero
	msg := []byte(message)
	if len(msg) > ErrorMessageSize-1 {
		msg = msg[:ErrorMessageSize-1]
	}
	copy(buf[4:], msg)
	return buf
}

// DecodeErrorResponse parses an error payload.
func DecodeErrorResponse(payload []byte) (ErrorResponse, error) {
	if len(payload) != ErrorResponseSize {
		return ErrorResponse{}, ErrBadPayloadSize
	}
	return ErrorResponse{
		Code:    payload[0],
		Message: cString(payload[4:]),
	}, nil
}

// putAddressField writes a NUL-padded fixed-width address field, always
// leaving at least one trailing NUL.
func putAddressField(dst []byte, addr string) {
	b := []byte(addr)
	if len(b) > AddressFieldSize-1 {
		b = b[:AddressFieldSize-1]
	}
	copy(dst, b)
}

// addressField reads a NUL-terminated fixed-width address field.
func addressField(src []byte) string {
	return cString(src[:AddressFieldSize])
}

// cString returns the bytes before the first NUL.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
