// Package protocol implements the binary frame protocol used by the TCP
// transport variant (transport.tcpSocket). It solves TCP's sticky-packet
// problem with a fixed-size 16-byte header followed by a variable-length
// body; the body is itself a codec-encoded message.Message envelope, so
// this package only needs to know about framing, never about the
// envelope's own fields (id, target, endpoint, headers, ...).
//
// Frame format:
//
//	0      3  4  5  6         10          12        16
//	┌──────┬──┬──┬──┬─────────┬───────────┬─────────┬───────────────┐
//	│magic │v │ct│mt│   seq   │  status   │ bodyLen │    body ...    │
//	│ mrp  │02│  │  │ uint32  │  uint16   │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴───────────┴─────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic number bytes: "mrp". Rejects non-protocol connections (e.g. an
// HTTP client hitting the wrong port) as soon as the header is read.
const (
	MagicNumber byte = 0x6d // 'm'
	MagicByte2  byte = 0x72 // 'r'
	MagicByte3  byte = 0x70 // 'p'
	Version     byte = 0x02
	HeaderSize  int  = 16
)

// MsgType distinguishes request, response, event, and heartbeat frames
// at the wire level — a coarser tag than message.Type, which the codec
// layer carries inside the body.
type MsgType byte

const (
	MsgTypeRequest   MsgType = 0
	MsgTypeResponse  MsgType = 1
	MsgTypeHeartbeat MsgType = 2
	MsgTypeEvent     MsgType = 3
)

// Codec type constants, mirrored from package codec to avoid a circular
// import (codec never needs to know about framing).
const (
	CodecTypeJSON    byte = 0
	CodecTypeMsgpack byte = 1
)

// Header is the fixed 16-byte frame header.
type Header struct {
	CodecType byte
	MsgType   MsgType
	Seq       uint32 // wire-level multiplexing id, matches request ↔ response on one socket
	Status    uint16 // authoritative on response frames; 0 on request/event/heartbeat frames
	BodyLen   uint32
}

// Encode writes a complete frame (header + body) to w. Callers sharing a
// writer across goroutines must hold their own write lock — concurrent
// Encode calls on the same io.Writer interleave and corrupt the stream.
func Encode(w io.Writer, h *Header, body []byte) error {
	buf := make([]byte, HeaderSize)

	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = h.CodecType
	buf[5] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[6:10], h.Seq)
	binary.BigEndian.PutUint16(buf[10:12], h.Status)
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(body)))

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads a complete frame (header + body) from r, validating the
// magic number and version before trusting the declared body length.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("protocol: invalid magic number: %x", headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("protocol: unsupported version: %d", headerBuf[3])
	}

	msgType := headerBuf[5]
	if msgType > byte(MsgTypeEvent) {
		return nil, nil, fmt.Errorf("protocol: unsupported message type: %d", msgType)
	}

	seq := binary.BigEndian.Uint32(headerBuf[6:10])
	status := binary.BigEndian.Uint16(headerBuf[10:12])
	bodyLen := binary.BigEndian.Uint32(headerBuf[12:16])

	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, nil, err
		}
	}

	return &Header{
		CodecType: headerBuf[4],
		MsgType:   MsgType(msgType),
		Seq:       seq,
		Status:    status,
		BodyLen:   bodyLen,
	}, body, nil
}
