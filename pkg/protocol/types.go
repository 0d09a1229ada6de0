// Package protocol implements the EffTeePee wire codec: the closed set of
// message types exchanged between client and server and their binary
// encodings. It is pure: no I/O, no framing (see internal/transport for
// that), just []byte in, []byte out.
package protocol

import "fmt"

// MsgType identifies a message on the wire. The set is closed; an unknown
// code is a fatal protocol error (ErrUnknownMsgType).
type MsgType uint8

const (
	ClientHello            MsgType = 1
	ServerHello            MsgType = 2
	CDRequest              MsgType = 3
	CDResponse             MsgType = 4
	LSRequest              MsgType = 5
	LSResponse             MsgType = 6
	GetRequest             MsgType = 7
	GetResponse            MsgType = 8
	PutRequest             MsgType = 9
	PutResponse            MsgType = 10
	QuitRequest            MsgType = 11
	QuitResponse           MsgType = 12
	ChangeSettingsRequest  MsgType = 13
	ChangeSettingsResponse MsgType = 14
	ErrorResponseType      MsgType = 15
	File                   MsgType = 16
	FileChunk              MsgType = 17
	EndOfFileChunks        MsgType = 18
	EndOfFiles             MsgType = 19
)

func (t MsgType) String() string {
	switch t {
	case ClientHello:
		return "ClientHello"
	case ServerHello:
		return "ServerHello"
	case CDRequest:
		return "CDRequest"
	case CDResponse:
		return "CDResponse"
	case LSRequest:
		return "LSRequest"
	case LSResponse:
		return "LSResponse"
	case GetRequest:
		return "GetRequest"
	case GetResponse:
		return "GetResponse"
	case PutRequest:
		return "PutRequest"
	case PutResponse:
		return "PutResponse"
	case QuitRequest:
		return "QuitRequest"
	case QuitResponse:
		return "QuitResponse"
	case ChangeSettingsRequest:
		return "ChangeSettingsRequest"
	case ChangeSettingsResponse:
		return "ChangeSettingsResponse"
	case ErrorResponseType:
		return "ErrorResponse"
	case File:
		return "File"
	case FileChunk:
		return "FileChunk"
	case EndOfFileChunks:
		return "EndOfFileChunks"
	case EndOfFiles:
		return "EndOfFiles"
	default:
		return fmt.Sprintf("MsgType(%d)", uint8(t))
	}
}

// ErrorCode is the single-byte wire error taxonomy of spec.md §7. Codes
// below 20 are fatal: the server closes the connection after sending one.
// Codes 20 and above are recoverable: the session continues.
type ErrorCode uint8

const (
	ErrFailedAuthentication ErrorCode = 10
	ErrUnknownRequest       ErrorCode = 11
	ErrConnectionClosed     ErrorCode = 12

	ErrUnknownSetting ErrorCode = 20
	ErrBadCDPath      ErrorCode = 21
	// ErrFileOpFailed covers both NotExists and PutFilesFailed from the
	// original source, which double-assigned code 23 to both conditions.
	// Spec.md §9 directs treating it as one recoverable code.
	ErrFileOpFailed ErrorCode = 23
)

// IsFatal reports whether code terminates the session once sent.
func (c ErrorCode) IsFatal() bool {
	return c < 20
}

// Message is implemented by every wire message type. Encode/Decode handle
// payload only; the type byte and length prefix are the Frame Transport's
// job (internal/transport).
type Message interface {
	Type() MsgType
	Encode() []byte
	Decode(data []byte) error
}
