// Package transport implements the EffTeePee Frame Transport: reading and
// writing length-prefixed frames over a reliable byte stream, and the
// client-side dial backoff used to establish one.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/alexmullins/effteepee/pkg/protocol"
)

// ErrConnectionClosed is returned when the peer closes the connection before
// the first byte of a frame, matching the original's
// ConnectionClosedException and spec.md's fatal error ConnectionClosed
// (code 12). A close after a frame has started surfaces as a wrapped read
// error instead.
var ErrConnectionClosed = errors.New("transport: connection closed")

const maxFrameLen = 1 << 16

// FrameConn wraps a net.Conn with the EffTeePee frame format:
// type:u8 | length:u16 big-endian | payload[length].
type FrameConn struct {
	conn net.Conn
	// ReadTimeout, when non-zero, bounds each frame read. The protocol
	// defines no heartbeat (spec.md §5); this only guards against a
	// half-open peer that never sends anything.
	ReadTimeout time.Duration
}

// NewFrameConn wraps conn for framed message exchange.
func NewFrameConn(conn net.Conn) *FrameConn {
	return &FrameConn{conn: conn}
}

// Conn returns the underlying connection.
func (f *FrameConn) Conn() net.Conn { return f.conn }

// Close closes the underlying connection.
func (f *FrameConn) Close() error { return f.conn.Close() }

// ReadMessage reads exactly one frame and decodes it into a typed Message.
func (f *FrameConn) ReadMessage() (protocol.Message, error) {
	t, payload, err := f.ReadFrame()
	if err != nil {
		return nil, err
	}
	return protocol.Decode(t, payload)
}

// ReadFrame reads one frame's type and raw payload without decoding it into
// a typed Message. ReadMessage is built on it.
func (f *FrameConn) ReadFrame() (protocol.MsgType, []byte, error) {
	if f.ReadTimeout > 0 {
		_ = f.conn.SetReadDeadline(time.Now().Add(f.ReadTimeout))
	}

	var typeBuf [1]byte
	if _, err := io.ReadFull(f.conn, typeBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, ErrConnectionClosed
		}
		return 0, nil, fmt.Errorf("read frame type: %w", err)
	}

	var lenBuf [2]byte
	if _, err := io.ReadFull(f.conn, lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("read frame length: %w", err)
	}
	length := binary.BigEndian.Uint16(lenBuf[:])

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(f.conn, payload); err != nil {
			return 0, nil, fmt.Errorf("read frame payload: %w", err)
		}
	}

	return protocol.MsgType(typeBuf[0]), payload, nil
}

// WriteMessage encodes msg and writes it as a single frame.
func (f *FrameConn) WriteMessage(msg protocol.Message) error {
	return f.WriteFrame(msg.Type(), msg.Encode())
}

// WriteFrame writes a raw type+payload as a single frame in one Write call,
// matching the teacher's tcp_sender.go habit of assembling the whole frame
// in a buffer before writing it to the socket.
func (f *FrameConn) WriteFrame(t protocol.MsgType, payload []byte) error {
	if len(payload) > maxFrameLen-1 {
		return fmt.Errorf("write frame: payload too large (%d bytes)", len(payload))
	}
	frame := make([]byte, 3+len(payload))
	frame[0] = byte(t)
	binary.BigEndian.PutUint16(frame[1:3], uint16(len(payload)))
	copy(frame[3:], payload)

	if _, err := f.conn.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
