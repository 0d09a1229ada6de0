// Package filestream implements the File Streamer: the sender and receiver
// halves of the multi-file envelope (File, FileChunk*, EndOfFileChunks,
// repeated, EndOfFiles) used by both GET and PUT.
package filestream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alexmullins/effteepee/internal/crypto"
	"github.com/alexmullins/effteepee/internal/transport"
	"github.com/alexmullins/effteepee/pkg/protocol"
)

// DefaultChunkSize is the plaintext read size per FileChunk; post-transform
// size may differ and is carried in the frame length.
const DefaultChunkSize = 8192

// TransferFlags carries the negotiated Payload Transform settings for one
// envelope. Encryption/Compression mirror the session's transport flags at
// the moment the transfer starts; mid-transfer flag changes are forbidden.
type TransferFlags struct {
	Compression bool
	Encryption  bool
	Key         string
}

func (f TransferFlags) key() string {
	if f.Key == "" {
		return crypto.DefaultKey
	}
	return f.Key
}

// ErrAborted is returned when the peer sends an ErrorResponse in place of
// the next FileChunk of a file. An ErrorResponse in place of a File header
// or EndOfFiles is reported as an unexpected-message error instead.
var ErrAborted = errors.New("filestream: transfer aborted by peer")

// SendFiles emits the envelope for the given absolute file paths, keyed by
// the basenames the peer should use: File{basename} -> FileChunk* ->
// EndOfFileChunks, once per path, followed by one EndOfFiles.
func SendFiles(conn *transport.FrameConn, paths []string, flags TransferFlags) (*TransferStats, error) {
	stats := NewTransferStats()

	for _, path := range paths {
		basename := filepath.Base(path)
		if err := conn.WriteMessage(&protocol.FileMsg{Filename: basename}); err != nil {
			return stats, fmt.Errorf("send file header %q: %w", basename, err)
		}

		if err := sendOneFile(conn, path, flags, stats); err != nil {
			return stats, err
		}

		if err := conn.WriteMessage(&protocol.EndOfFileChunksMsg{}); err != nil {
			return stats, fmt.Errorf("send end-of-file-chunks for %q: %w", basename, err)
		}
		stats.RecordFile()
	}

	if err := conn.WriteMessage(&protocol.EndOfFilesMsg{}); err != nil {
		return stats, fmt.Errorf("send end-of-files: %w", err)
	}
	return stats, nil
}

func sendOneFile(conn *transport.FrameConn, path string, flags TransferFlags, stats *TransferStats) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, DefaultChunkSize)
	buf := make([]byte, DefaultChunkSize)
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			transformed, err := crypto.Transform(buf[:n], flags.Compression, flags.Encryption, flags.key())
			if err != nil {
				return fmt.Errorf("transform chunk of %q: %w", path, err)
			}
			if err := conn.WriteMessage(&protocol.FileChunkMsg{Data: transformed}); err != nil {
				return fmt.Errorf("send chunk of %q: %w", path, err)
			}
			stats.RecordBytes(n)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read %q: %w", path, readErr)
		}
	}
}

// ReceiveFiles reads numFiles worth of the envelope from conn and writes
// each file's chunks, after inverse transform, beneath destDir using the
// basename the peer supplied.
func ReceiveFiles(conn *transport.FrameConn, destDir string, numFiles int, flags TransferFlags) (*TransferStats, error) {
	stats := NewTransferStats()

	for i := 0; i < numFiles; i++ {
		msg, err := conn.ReadMessage()
		if err != nil {
			return stats, fmt.Errorf("read file header: %w", err)
		}
		fileMsg, ok := msg.(*protocol.FileMsg)
		if !ok {
			return stats, fmt.Errorf("expected File, got %s", msg.Type())
		}

		base := filepath.Base(fileMsg.Filename)
		if base == "." || base == ".." || base == string(filepath.Separator) {
			return stats, fmt.Errorf("receive file: refusing unsafe filename %q", fileMsg.Filename)
		}

		if err := receiveOneFile(conn, filepath.Join(destDir, base), flags, stats); err != nil {
			return stats, err
		}
		stats.RecordFile()
	}

	msg, err := conn.ReadMessage()
	if err != nil {
		return stats, fmt.Errorf("read end-of-files: %w", err)
	}
	if _, ok := msg.(*protocol.EndOfFilesMsg); !ok {
		return stats, fmt.Errorf("expected EndOfFiles, got %s", msg.Type())
	}
	return stats, nil
}

func receiveOneFile(conn *transport.FrameConn, destPath string, flags TransferFlags, stats *TransferStats) error {
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", destPath, err)
	}
	defer f.Close()

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read chunk of %q: %w", destPath, err)
		}
		switch m := msg.(type) {
		case *protocol.ErrorResponseMsg:
			return fmt.Errorf("%w: code %d", ErrAborted, m.Code)
		case *protocol.EndOfFileChunksMsg:
			return nil
		case *protocol.FileChunkMsg:
			data, err := crypto.InverseTransform(m.Data, flags.Compression, flags.Encryption, flags.key())
			if err != nil {
				return fmt.Errorf("inverse transform chunk of %q: %w", destPath, err)
			}
			if _, err := f.Write(data); err != nil {
				return fmt.Errorf("write %q: %w", destPath, err)
			}
			stats.RecordBytes(len(data))
		default:
			return fmt.Errorf("expected FileChunk, got %s", msg.Type())
		}
	}
}
