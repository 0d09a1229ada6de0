// Package crypto implements the Payload Transform: the optional
// encrypt-then-compress / decompress-then-decrypt pipeline applied to
// FileChunk payloads.
package crypto

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// DefaultKey is the fixed ASCII key used to key the Vigenère cipher. It is a
// documented, weak cipher kept for wire compatibility, not confidentiality.
const DefaultKey = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Encrypt applies the Vigenère-style byte cipher keyed by key to plaintext.
// For index i, the output byte is (plain[i] + key[i mod len(key)]) mod 256.
// Panics if key is empty; callers are expected to use DefaultKey or another
// non-empty key.
func Encrypt(key string, plaintext []byte) []byte {
	if len(key) == 0 {
		panic("crypto: empty key")
	}
	out := make([]byte, len(plaintext))
	for i, p := range plaintext {
		k := key[i%len(key)]
		out[i] = byte(int(p) + int(k))
	}
	return out
}

// Decrypt inverts Encrypt for the same key.
func Decrypt(key string, ciphertext []byte) []byte {
	if len(key) == 0 {
		panic("crypto: empty key")
	}
	out := make([]byte, len(ciphertext))
	for i, c := range ciphertext {
		k := key[i%len(key)]
		out[i] = byte(int(c) - int(k))
	}
	return out
}

// Compress encodes data as an XZ stream with a CRC32 integrity check,
// matching the reference implementation's lzma.FORMAT_XZ / CHECK_CRC32.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.WriterConfig{CheckSum: xz.CRC32}.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("crypto: new xz writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("crypto: xz write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("crypto: xz close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress decodes an XZ stream produced by Compress.
func Decompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("crypto: new xz reader: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("crypto: xz read: %w", err)
	}
	return out, nil
}

// Transform applies the send-side pipeline to a single FileChunk payload:
// encrypt (if encryption is set), then compress (if compression is set).
// The two flags are independent; either, both, or neither may be set.
func Transform(data []byte, compression, encryption bool, key string) ([]byte, error) {
	if encryption {
		data = Encrypt(key, data)
	}
	if compression {
		compressed, err := Compress(data)
		if err != nil {
			return nil, err
		}
		data = compressed
	}
	return data, nil
}

// InverseTransform undoes Transform: decompress (if compression is set),
// then decrypt (if encryption is set).
func InverseTransform(data []byte, compression, encryption bool, key string) ([]byte, error) {
	if compression {
		decompressed, err := Decompress(data)
		if err != nil {
			return nil, err
		}
		data = decompressed
	}
	if encryption {
		data = Decrypt(key, data)
	}
	return data, nil
}

