// Package session implements the Session State Machine: the per-connection
// dispatch loop that runs the pre-auth handshake and the post-auth command
// loop, driven entirely off the wire codec's message types.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alexmullins/effteepee/internal/auth"
	"github.com/alexmullins/effteepee/internal/filestream"
	"github.com/alexmullins/effteepee/internal/transport"
	"github.com/alexmullins/effteepee/pkg/protocol"
)

// State is one of the three states of the Session State Machine.
type State int

const (
	AwaitingHello State = iota
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingHello:
		return "AwaitingHello"
	case Active:
		return "Active"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Authenticator verifies credentials and returns the authenticated user's
// sandbox root. internal/auth.UserStore satisfies this.
type Authenticator interface {
	Authenticate(username, password string) (auth.Record, bool)
}

// Session drives one connection's protocol lifecycle: AwaitingHello ->
// Active -> Closed. It owns the socket and any open file handles for the
// lifetime of the connection.
type Session struct {
	ID   string
	conn *transport.FrameConn
	auth Authenticator
	log  *zap.Logger

	state State

	username string
	rootDir  string
	cwd      string

	binary      bool
	compression bool
	encryption  bool

	dispatch map[protocol.MsgType]func(protocol.Message) error
}

// New constructs a Session in AwaitingHello over conn, authenticating
// against authenticator.
func New(conn *transport.FrameConn, authenticator Authenticator, log *zap.Logger) *Session {
	id := uuid.NewString()
	s := &Session{
		ID:     id,
		conn:   conn,
		auth:   authenticator,
		log:    log.With(zap.String("session_id", id)),
		state:  AwaitingHello,
		binary: true,
	}
	s.dispatch = map[protocol.MsgType]func(protocol.Message) error{
		protocol.ClientHello:           s.handleHello,
		protocol.CDRequest:             s.handleCD,
		protocol.LSRequest:             s.handleLS,
		protocol.GetRequest:            s.handleGet,
		protocol.PutRequest:            s.handlePut,
		protocol.QuitRequest:           s.handleQuit,
		protocol.ChangeSettingsRequest: s.handleChangeSettings,
	}
	return s
}

// Run drives the session to completion: it reads and dispatches messages
// until the state machine reaches Closed, then releases the connection.
func (s *Session) Run() {
	defer s.conn.Close()
	log := s.log

	for s.state != Closed {
		msg, err := s.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, transport.ErrConnectionClosed) {
				log.Info("connection closed by peer")
			} else {
				log.Warn("read failed, closing session", zap.Error(err))
			}
			return
		}

		if s.state == AwaitingHello && msg.Type() != protocol.ClientHello {
			log.Warn("protocol violation: expected ClientHello", zap.String("got", msg.Type().String()))
			s.state = Closed
			return
		}

		handler, ok := s.dispatch[msg.Type()]
		if !ok {
			log.Warn("no handler for message type, closing", zap.String("type", msg.Type().String()))
			_ = s.conn.WriteMessage(&protocol.ErrorResponseMsg{Code: protocol.ErrUnknownRequest})
			s.state = Closed
			return
		}

		log.Debug("dispatching", zap.String("type", msg.Type().String()))
		if err := handler(msg); err != nil {
			log.Warn("handler error, closing session", zap.String("type", msg.Type().String()), zap.Error(err))
			s.state = Closed
			return
		}
	}
}

func (s *Session) handleHello(m protocol.Message) error {
	hello := m.(*protocol.ClientHelloMsg)
	rec, ok := s.auth.Authenticate(hello.Username, hello.Password)
	if !ok {
		s.log.Info("authentication failed", zap.String("username", hello.Username))
		if err := s.conn.WriteMessage(&protocol.ErrorResponseMsg{Code: protocol.ErrFailedAuthentication}); err != nil {
			return err
		}
		s.state = Closed
		return nil
	}

	s.username = hello.Username
	s.rootDir = filepath.Clean(rec.RootDir)
	s.cwd = s.rootDir
	s.state = Active

	s.log.Info("authenticated", zap.String("username", s.username))
	return s.conn.WriteMessage(&protocol.ServerHelloMsg{
		Binary:      s.binary,
		Compression: s.compression,
		Encryption:  s.encryption,
	})
}

func (s *Session) handleQuit(protocol.Message) error {
	if err := s.conn.WriteMessage(&protocol.QuitResponseMsg{}); err != nil {
		return err
	}
	s.state = Closed
	return nil
}

func (s *Session) handleChangeSettings(m protocol.Message) error {
	req := m.(*protocol.ChangeSettingsRequestMsg)
	switch req.Setting {
	case "binary":
		s.binary = req.Value
	case "compression":
		s.compression = req.Value
	case "encryption":
		s.encryption = req.Value
	default:
		return s.conn.WriteMessage(&protocol.ErrorResponseMsg{Code: protocol.ErrUnknownSetting})
	}
	return s.conn.WriteMessage(&protocol.ChangeSettingsResponseMsg{})
}

// resolveSandboxPath resolves a client-supplied path (possibly relative,
// possibly "..") against cwd and verifies the sandbox invariant: the result
// must be root or a descendant of root. This is deliberately stricter than
// the original's _valid_path, which trusted client-controlled string
// concatenation instead of filesystem-path semantics.
func (s *Session) resolveSandboxPath(clientPath string) (string, error) {
	var candidate string
	if filepath.IsAbs(clientPath) {
		candidate = filepath.Clean(clientPath)
	} else {
		candidate = filepath.Clean(filepath.Join(s.cwd, clientPath))
	}

	rel, err := filepath.Rel(s.rootDir, candidate)
	if err != nil {
		return "", fmt.Errorf("sandbox: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("sandbox: %q escapes root", clientPath)
	}
	return candidate, nil
}

func (s *Session) handleCD(m protocol.Message) error {
	req := m.(*protocol.CDRequestMsg)

	newCwd, err := s.resolveSandboxPath(req.Path)
	if err != nil {
		return s.conn.WriteMessage(&protocol.ErrorResponseMsg{Code: protocol.ErrBadCDPath})
	}
	info, err := os.Stat(newCwd)
	if err != nil || !info.IsDir() {
		return s.conn.WriteMessage(&protocol.ErrorResponseMsg{Code: protocol.ErrBadCDPath})
	}

	s.cwd = newCwd
	return s.conn.WriteMessage(&protocol.CDResponseMsg{})
}

func (s *Session) handleLS(m protocol.Message) error {
	req := m.(*protocol.LSRequestMsg)

	clientPath := req.Path
	if clientPath == "" {
		clientPath = "."
	}
	path, err := s.resolveSandboxPath(clientPath)
	if err != nil {
		return s.conn.WriteMessage(&protocol.ErrorResponseMsg{Code: protocol.ErrFileOpFailed})
	}

	var folders, files []string

	if strings.Contains(path, "*") {
		matches, err := filepath.Glob(path)
		if err != nil {
			return s.conn.WriteMessage(&protocol.ErrorResponseMsg{Code: protocol.ErrFileOpFailed})
		}
		for _, match := range matches {
			files = append(files, filepath.Base(match))
		}
	} else {
		entries, err := os.ReadDir(path)
		if err != nil {
			return s.conn.WriteMessage(&protocol.ErrorResponseMsg{Code: protocol.ErrFileOpFailed})
		}
		for _, e := range entries {
			if e.IsDir() {
				folders = append(folders, e.Name())
			} else {
				files = append(files, e.Name())
			}
		}
	}

	sort.Strings(folders)
	sort.Strings(files)
	return s.conn.WriteMessage(&protocol.LSResponseMsg{Folders: folders, Files: files})
}

func (s *Session) transferFlags() filestream.TransferFlags {
	return filestream.TransferFlags{Compression: s.compression, Encryption: s.encryption}
}

func (s *Session) handleGet(m protocol.Message) error {
	req := m.(*protocol.GetRequestMsg)

	var resolvable []string
	for _, name := range req.Names {
		full := filepath.Join(s.cwd, filepath.Base(name))
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			resolvable = append(resolvable, full)
		}
	}

	if err := s.conn.WriteMessage(&protocol.GetResponseMsg{NumFiles: uint16(len(resolvable))}); err != nil {
		return err
	}

	stats, err := filestream.SendFiles(s.conn, resolvable, s.transferFlags())
	if stats != nil {
		s.log.Debug("get completed", zap.Int("files", stats.Files()), zap.Uint64("bytes", stats.Bytes()), zap.Duration("took", stats.Duration()))
	}
	return err
}

func (s *Session) handlePut(m protocol.Message) error {
	req := m.(*protocol.PutRequestMsg)

	stats, err := filestream.ReceiveFiles(s.conn, s.cwd, int(req.NumFiles), s.transferFlags())
	if stats != nil {
		s.log.Debug("put completed", zap.Int("files", stats.Files()), zap.Uint64("bytes", stats.Bytes()), zap.Duration("took", stats.Duration()))
	}
	if err != nil {
		if errors.Is(err, filestream.ErrAborted) || errors.Is(err, fs.ErrNotExist) {
			return s.conn.WriteMessage(&protocol.ErrorResponseMsg{Code: protocol.ErrFileOpFailed})
		}
		return err
	}
	return s.conn.WriteMessage(&protocol.PutResponseMsg{})
}
