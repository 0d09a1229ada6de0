package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTruncated is returned when a payload is shorter than its encoding
	// requires.
	ErrTruncated = errors.New("protocol: truncated payload")
	// ErrUnknownMsgType is returned by Decode for a type code outside the
	// closed message set. Per spec.md §4.1 this is always fatal.
	ErrUnknownMsgType = errors.New("protocol: unknown message type")
)

// ClientHelloMsg carries the username/password pair sent before
// authentication. Payload: ulen:u8 | plen:u8 | username[ulen] | password[plen].
type ClientHelloMsg struct {
	Username string
	Password string
}

func (m *ClientHelloMsg) Type() MsgType { return ClientHello }

func (m *ClientHelloMsg) Encode() []byte {
	u, p := []byte(m.Username), []byte(m.Password)
	out := make([]byte, 0, 2+len(u)+len(p))
	out = append(out, byte(len(u)), byte(len(p)))
	out = append(out, u...)
	out = append(out, p...)
	return out
}

func (m *ClientHelloMsg) Decode(data []byte) error {
	if len(data) < 2 {
		return ErrTruncated
	}
	ulen, plen := int(data[0]), int(data[1])
	uoff := 2
	poff := uoff + ulen
	if len(data) < poff+plen {
		return ErrTruncated
	}
	m.Username = string(data[uoff:poff])
	m.Password = string(data[poff : poff+plen])
	return nil
}

// ServerHelloMsg announces the server's current transport flags after a
// successful handshake. Payload: binary:u8 | compression:u8 | encryption:u8.
type ServerHelloMsg struct {
	Binary      bool
	Compression bool
	Encryption  bool
}

func (m *ServerHelloMsg) Type() MsgType { return ServerHello }

func (m *ServerHelloMsg) Encode() []byte {
	return []byte{boolByte(m.Binary), boolByte(m.Compression), boolByte(m.Encryption)}
}

func (m *ServerHelloMsg) Decode(data []byte) error {
	if len(data) < 3 {
		return ErrTruncated
	}
	m.Binary = data[0] != 0
	m.Compression = data[1] != 0
	m.Encryption = data[2] != 0
	return nil
}

// CDRequestMsg asks the server to change its working directory. Payload:
// path[] (UTF-8, remainder).
type CDRequestMsg struct{ Path string }

func (m *CDRequestMsg) Type() MsgType          { return CDRequest }
func (m *CDRequestMsg) Encode() []byte         { return []byte(m.Path) }
func (m *CDRequestMsg) Decode(data []byte) error {
	m.Path = string(data)
	return nil
}

// CDResponseMsg acknowledges a successful CD. Empty payload.
type CDResponseMsg struct{}

func (m *CDResponseMsg) Type() MsgType           { return CDResponse }
func (m *CDResponseMsg) Encode() []byte          { return nil }
func (m *CDResponseMsg) Decode(data []byte) error { return nil }

// LSRequestMsg asks for a directory listing. Payload: path[] (UTF-8, remainder).
type LSRequestMsg struct{ Path string }

func (m *LSRequestMsg) Type() MsgType          { return LSRequest }
func (m *LSRequestMsg) Encode() []byte         { return []byte(m.Path) }
func (m *LSRequestMsg) Decode(data []byte) error {
	m.Path = string(data)
	return nil
}

// LSResponseMsg carries the folders/files split for a listing. Payload:
// flen:u32 | xlen:u32 | folders_joined[flen] | files_joined[xlen], each list
// joined by ";".
type LSResponseMsg struct {
	Folders []string
	Files   []string
}

func (m *LSResponseMsg) Type() MsgType { return LSResponse }

func (m *LSResponseMsg) Encode() []byte {
	folders := strings.Join(m.Folders, ";")
	files := strings.Join(m.Files, ";")
	out := make([]byte, 8, 8+len(folders)+len(files))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(folders)))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(files)))
	out = append(out, folders...)
	out = append(out, files...)
	return out
}

func (m *LSResponseMsg) Decode(data []byte) error {
	if len(data) < 8 {
		return ErrTruncated
	}
	flen := int(binary.BigEndian.Uint32(data[0:4]))
	xlen := int(binary.BigEndian.Uint32(data[4:8]))
	if len(data) < 8+flen+xlen {
		return ErrTruncated
	}
	folders := string(data[8 : 8+flen])
	files := string(data[8+flen : 8+flen+xlen])
	m.Folders = splitNonEmpty(folders)
	m.Files = splitNonEmpty(files)
	return nil
}

// splitNonEmpty mirrors the original's ";".join/";".split pairing: an empty
// joined string means an empty list, not a list holding one empty string.
func splitNonEmpty(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ";")
}

// GetRequestMsg names the files a client wants to pull from the server's
// current directory. Payload: nlen:u16 | names_joined[nlen], joined by ";".
type GetRequestMsg struct{ Names []string }

func (m *GetRequestMsg) Type() MsgType { return GetRequest }

func (m *GetRequestMsg) Encode() []byte {
	joined := strings.Join(m.Names, ";")
	out := make([]byte, 2, 2+len(joined))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(joined)))
	return append(out, joined...)
}

func (m *GetRequestMsg) Decode(data []byte) error {
	if len(data) < 2 {
		return ErrTruncated
	}
	nlen := int(binary.BigEndian.Uint16(data[0:2]))
	if len(data) < 2+nlen {
		return ErrTruncated
	}
	m.Names = splitNonEmpty(string(data[2 : 2+nlen]))
	return nil
}

// GetResponseMsg declares how many files will follow in the envelope.
// Payload: num_files:u16.
type GetResponseMsg struct{ NumFiles uint16 }

func (m *GetResponseMsg) Type() MsgType { return GetResponse }
func (m *GetResponseMsg) Encode() []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, m.NumFiles)
	return out
}
func (m *GetResponseMsg) Decode(data []byte) error {
	if len(data) < 2 {
		return ErrTruncated
	}
	m.NumFiles = binary.BigEndian.Uint16(data[0:2])
	return nil
}

// PutRequestMsg declares how many files the client is about to push.
// Payload: num_files:u16.
type PutRequestMsg struct{ NumFiles uint16 }

func (m *PutRequestMsg) Type() MsgType { return PutRequest }
func (m *PutRequestMsg) Encode() []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, m.NumFiles)
	return out
}
func (m *PutRequestMsg) Decode(data []byte) error {
	if len(data) < 2 {
		return ErrTruncated
	}
	m.NumFiles = binary.BigEndian.Uint16(data[0:2])
	return nil
}

// PutResponseMsg acknowledges a completed PUT envelope. Empty payload.
type PutResponseMsg struct{}

func (m *PutResponseMsg) Type() MsgType           { return PutResponse }
func (m *PutResponseMsg) Encode() []byte          { return nil }
func (m *PutResponseMsg) Decode(data []byte) error { return nil }

// QuitRequestMsg asks the server to end the session. Empty payload.
type QuitRequestMsg struct{}

func (m *QuitRequestMsg) Type() MsgType           { return QuitRequest }
func (m *QuitRequestMsg) Encode() []byte          { return nil }
func (m *QuitRequestMsg) Decode(data []byte) error { return nil }

// QuitResponseMsg acknowledges QuitRequest. Empty payload.
type QuitResponseMsg struct{}

func (m *QuitResponseMsg) Type() MsgType           { return QuitResponse }
func (m *QuitResponseMsg) Encode() []byte          { return nil }
func (m *QuitResponseMsg) Decode(data []byte) error { return nil }

// ChangeSettingsRequestMsg toggles one of the transport flags. Payload:
// slen:u8 | setting[slen] | value:u8.
type ChangeSettingsRequestMsg struct {
	Setting string
	Value   bool
}

func (m *ChangeSettingsRequestMsg) Type() MsgType { return ChangeSettingsRequest }

func (m *ChangeSettingsRequestMsg) Encode() []byte {
	s := []byte(m.Setting)
	out := make([]byte, 0, 2+len(s))
	out = append(out, byte(len(s)))
	out = append(out, s...)
	out = append(out, boolByte(m.Value))
	return out
}

func (m *ChangeSettingsRequestMsg) Decode(data []byte) error {
	if len(data) < 1 {
		return ErrTruncated
	}
	slen := int(data[0])
	if len(data) < 1+slen+1 {
		return ErrTruncated
	}
	m.Setting = string(data[1 : 1+slen])
	m.Value = data[len(data)-1] != 0
	return nil
}

// ChangeSettingsResponseMsg acknowledges a settings change. Empty payload.
type ChangeSettingsResponseMsg struct{}

func (m *ChangeSettingsResponseMsg) Type() MsgType           { return ChangeSettingsResponse }
func (m *ChangeSettingsResponseMsg) Encode() []byte          { return nil }
func (m *ChangeSettingsResponseMsg) Decode(data []byte) error { return nil }

// ErrorResponseMsg carries one wire error code. Payload: code:u8.
type ErrorResponseMsg struct{ Code ErrorCode }

func (m *ErrorResponseMsg) Type() MsgType  { return ErrorResponseType }
func (m *ErrorResponseMsg) Encode() []byte { return []byte{byte(m.Code)} }
func (m *ErrorResponseMsg) Decode(data []byte) error {
	if len(data) < 1 {
		return ErrTruncated
	}
	m.Code = ErrorCode(data[0])
	return nil
}

// FileMsg begins one file within a GET/PUT envelope. Payload:
// flen:u8 | filename[flen].
type FileMsg struct{ Filename string }

func (m *FileMsg) Type() MsgType { return File }
func (m *FileMsg) Encode() []byte {
	n := []byte(m.Filename)
	out := make([]byte, 0, 1+len(n))
	out = append(out, byte(len(n)))
	return append(out, n...)
}
func (m *FileMsg) Decode(data []byte) error {
	if len(data) < 1 {
		return ErrTruncated
	}
	flen := int(data[0])
	if len(data) < 1+flen {
		return ErrTruncated
	}
	m.Filename = string(data[1 : 1+flen])
	return nil
}

// FileChunkMsg carries one (possibly transformed) chunk of file data.
// Payload: data[] (remainder).
type FileChunkMsg struct{ Data []byte }

func (m *FileChunkMsg) Type() MsgType           { return FileChunk }
func (m *FileChunkMsg) Encode() []byte          { return m.Data }
func (m *FileChunkMsg) Decode(data []byte) error {
	m.Data = data
	return nil
}

// EndOfFileChunksMsg terminates one file's chunk stream. Empty payload.
type EndOfFileChunksMsg struct{}

func (m *EndOfFileChunksMsg) Type() MsgType           { return EndOfFileChunks }
func (m *EndOfFileChunksMsg) Encode() []byte          { return nil }
func (m *EndOfFileChunksMsg) Decode(data []byte) error { return nil }

// EndOfFilesMsg terminates the whole envelope. Empty payload.
type EndOfFilesMsg struct{}

func (m *EndOfFilesMsg) Type() MsgType           { return EndOfFiles }
func (m *EndOfFilesMsg) Encode() []byte          { return nil }
func (m *EndOfFilesMsg) Decode(data []byte) error { return nil }

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// New constructs a zero-valued Message for the given type, ready to Decode
// into. It is the decode dispatch table from spec.md's Design Notes ("a
// single switch on the tag handles encoding, decoding, and dispatch").
func New(t MsgType) (Message, error) {
	switch t {
	case ClientHello:
		return &ClientHelloMsg{}, nil
	case ServerHello:
		return &ServerHelloMsg{}, nil
	case CDRequest:
		return &CDRequestMsg{}, nil
	case CDResponse:
		return &CDResponseMsg{}, nil
	case LSRequest:
		return &LSRequestMsg{}, nil
	case LSResponse:
		return &LSResponseMsg{}, nil
	case GetRequest:
		return &GetRequestMsg{}, nil
	case GetResponse:
		return &GetResponseMsg{}, nil
	case PutRequest:
		return &PutRequestMsg{}, nil
	case PutResponse:
		return &PutResponseMsg{}, nil
	case QuitRequest:
		return &QuitRequestMsg{}, nil
	case QuitResponse:
		return &QuitResponseMsg{}, nil
	case ChangeSettingsRequest:
		return &ChangeSettingsRequestMsg{}, nil
	case ChangeSettingsResponse:
		return &ChangeSettingsResponseMsg{}, nil
	case ErrorResponseType:
		return &ErrorResponseMsg{}, nil
	case File:
		return &FileMsg{}, nil
	case FileChunk:
		return &FileChunkMsg{}, nil
	case EndOfFileChunks:
		return &EndOfFileChunksMsg{}, nil
	case EndOfFiles:
		return &EndOfFilesMsg{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMsgType, uint8(t))
	}
}

// Decode constructs the appropriate Message for t and decodes payload into
// it.
func Decode(t MsgType, payload []byte) (Message, error) {
	msg, err := New(t)
	if err != nil {
		return nil, err
	}
	if err := msg.Decode(payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return msg, nil
}
