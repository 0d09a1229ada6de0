// Package client implements the Client Library: a typed driver over one
// EffTeePee session. It is not an interactive UI; cmd/client builds one on
// top of it.
package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alexmullins/effteepee/internal/filestream"
	"github.com/alexmullins/effteepee/internal/transport"
	"github.com/alexmullins/effteepee/pkg/protocol"
)

// Client drives one EffTeePee session from the caller's side. Its
// transport-flag fields mirror the server's in lockstep: Handshake copies
// them from ServerHello, and afterwards they change only through
// ChangeSettings round trips (ToggleBinary, ToggleCompression,
// ToggleEncryption, Normal).
type Client struct {
	retry *transport.RetryManager
	conn  *transport.FrameConn

	username    string
	binary      bool
	compression bool
	encryption  bool

	lastErr *protocol.ErrorCode
	closed  bool

	localDir string
}

// New constructs an unconnected Client. localDir is where Get/MGet write
// downloaded files and where Put/MPut read local files from.
func New(localDir string) *Client {
	return &Client{retry: transport.NewRetryManager(), localDir: localDir}
}

// Connect dials addr (host:port), retrying with backoff per RetryManager's
// policy.
func (c *Client) Connect(ctx context.Context, addr string) error {
	conn, err := c.retry.DialWithRetry(ctx, addr)
	if err != nil {
		return fmt.Errorf("client: connect: %w", err)
	}
	c.conn = transport.NewFrameConn(conn)
	return nil
}

// Handshake sends ClientHello and waits for ServerHello or ErrorResponse.
// On success it records the server's initial transport flags.
func (c *Client) Handshake(username, password string) (bool, error) {
	if err := c.conn.WriteMessage(&protocol.ClientHelloMsg{Username: username, Password: password}); err != nil {
		return false, fmt.Errorf("client: send hello: %w", err)
	}
	msg, err := c.conn.ReadMessage()
	if err != nil {
		return false, fmt.Errorf("client: read hello response: %w", err)
	}
	switch m := msg.(type) {
	case *protocol.ServerHelloMsg:
		c.username = username
		c.binary = m.Binary
		c.compression = m.Compression
		c.encryption = m.Encryption
		return true, nil
	case *protocol.ErrorResponseMsg:
		c.setLastErr(m.Code)
		return false, nil
	default:
		return false, fmt.Errorf("client: unexpected response to hello: %s", msg.Type())
	}
}

func (c *Client) setLastErr(code protocol.ErrorCode) {
	cp := code
	c.lastErr = &cp
}

// GetError returns and clears the last recorded error code, matching the
// single-slot, consumed-on-read client error state of spec.md §3.
func (c *Client) GetError() (protocol.ErrorCode, bool) {
	if c.lastErr == nil {
		return 0, false
	}
	code := *c.lastErr
	c.lastErr = nil
	return code, true
}

// CD requests a directory change on the server.
func (c *Client) CD(path string) (bool, error) {
	if err := c.conn.WriteMessage(&protocol.CDRequestMsg{Path: path}); err != nil {
		return false, fmt.Errorf("client: send cd: %w", err)
	}
	return c.expectOKOrError(&protocol.CDResponseMsg{})
}

// LSResult mirrors the folders/files split the server returns.
type LSResult struct {
	Folders []string
	Files   []string
}

// LS lists the current directory on the server.
func (c *Client) LS() (LSResult, error) {
	if err := c.conn.WriteMessage(&protocol.LSRequestMsg{Path: "."}); err != nil {
		return LSResult{}, fmt.Errorf("client: send ls: %w", err)
	}
	msg, err := c.conn.ReadMessage()
	if err != nil {
		return LSResult{}, fmt.Errorf("client: read ls response: %w", err)
	}
	switch m := msg.(type) {
	case *protocol.LSResponseMsg:
		return LSResult{Folders: m.Folders, Files: m.Files}, nil
	case *protocol.ErrorResponseMsg:
		c.setLastErr(m.Code)
		return LSResult{}, nil
	default:
		return LSResult{}, fmt.Errorf("client: unexpected response to ls: %s", msg.Type())
	}
}

func (c *Client) transferFlags() filestream.TransferFlags {
	return filestream.TransferFlags{Compression: c.compression, Encryption: c.encryption}
}

// Get downloads a single named file into localDir.
func (c *Client) Get(name string) error {
	return c.MGet([]string{name})
}

// MGet downloads multiple named files into localDir.
func (c *Client) MGet(names []string) error {
	if err := c.conn.WriteMessage(&protocol.GetRequestMsg{Names: names}); err != nil {
		return fmt.Errorf("client: send get: %w", err)
	}
	msg, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("client: read get response: %w", err)
	}
	resp, ok := msg.(*protocol.GetResponseMsg)
	if !ok {
		if errMsg, ok := msg.(*protocol.ErrorResponseMsg); ok {
			c.setLastErr(errMsg.Code)
			return nil
		}
		return fmt.Errorf("client: unexpected response to get: %s", msg.Type())
	}

	_, err = filestream.ReceiveFiles(c.conn, c.localDir, int(resp.NumFiles), c.transferFlags())
	return err
}

// Put uploads a single local file to the server's current directory.
func (c *Client) Put(name string) error {
	return c.MPut([]string{name})
}

// MPut uploads multiple local files to the server's current directory. It
// pre-verifies that every named file exists locally; missing files abort
// before the first header is sent, matching spec.md §4.4.
func (c *Client) MPut(names []string) error {
	var paths []string
	for _, name := range names {
		full := filepath.Join(c.localDir, name)
		if _, err := os.Stat(full); err != nil {
			return fmt.Errorf("client: local file %q: %w", name, err)
		}
		paths = append(paths, full)
	}

	if err := c.conn.WriteMessage(&protocol.PutRequestMsg{NumFiles: uint16(len(paths))}); err != nil {
		return fmt.Errorf("client: send put: %w", err)
	}
	if _, err := filestream.SendFiles(c.conn, paths, c.transferFlags()); err != nil {
		return fmt.Errorf("client: put envelope: %w", err)
	}

	_, err := c.expectOKOrError(&protocol.PutResponseMsg{})
	return err
}

// ToggleBinary flips the binary flag and negotiates it with the server.
func (c *Client) ToggleBinary() (bool, error) { return c.toggleSetting("binary", !c.binary) }

// ToggleCompression flips the compression flag and negotiates it with the server.
func (c *Client) ToggleCompression() (bool, error) {
	return c.toggleSetting("compression", !c.compression)
}

// ToggleEncryption flips the encryption flag and negotiates it with the server.
func (c *Client) ToggleEncryption() (bool, error) {
	return c.toggleSetting("encryption", !c.encryption)
}

// Normal resets compression and encryption to off.
func (c *Client) Normal() error {
	if _, err := c.toggleSetting("compression", false); err != nil {
		return err
	}
	_, err := c.toggleSetting("encryption", false)
	return err
}

func (c *Client) toggleSetting(name string, value bool) (bool, error) {
	if err := c.conn.WriteMessage(&protocol.ChangeSettingsRequestMsg{Setting: name, Value: value}); err != nil {
		return false, fmt.Errorf("client: send change setting %s: %w", name, err)
	}
	msg, err := c.conn.ReadMessage()
	if err != nil {
		return false, fmt.Errorf("client: read change setting response: %w", err)
	}
	switch m := msg.(type) {
	case *protocol.ChangeSettingsResponseMsg:
		switch name {
		case "binary":
			c.binary = value
		case "compression":
			c.compression = value
		case "encryption":
			c.encryption = value
		}
		return true, nil
	case *protocol.ErrorResponseMsg:
		c.setLastErr(m.Code)
		return false, nil
	default:
		return false, fmt.Errorf("client: unexpected response to change setting: %s", msg.Type())
	}
}

func (c *Client) expectOKOrError(want protocol.Message) (bool, error) {
	msg, err := c.conn.ReadMessage()
	if err != nil {
		return false, fmt.Errorf("client: read response: %w", err)
	}
	if msg.Type() == want.Type() {
		return true, nil
	}
	if errMsg, ok := msg.(*protocol.ErrorResponseMsg); ok {
		c.setLastErr(errMsg.Code)
		return false, nil
	}
	return false, fmt.Errorf("client: unexpected response type %s, want %s", msg.Type(), want.Type())
}

// Quit sends QuitRequest, waits for QuitResponse, then closes the connection.
func (c *Client) Quit() error {
	if err := c.conn.WriteMessage(&protocol.QuitRequestMsg{}); err != nil {
		return fmt.Errorf("client: send quit: %w", err)
	}
	msg, err := c.conn.ReadMessage()
	if err != nil && !errors.Is(err, transport.ErrConnectionClosed) {
		return fmt.Errorf("client: read quit response: %w", err)
	}
	if err == nil && msg.Type() != protocol.QuitResponse {
		return fmt.Errorf("client: unexpected response to quit: %s", msg.Type())
	}
	c.closed = true
	return c.conn.Close()
}

// Closed reports whether Quit has been called.
func (c *Client) Closed() bool { return c.closed }
