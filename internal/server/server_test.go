package server_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/alexmullins/effteepee/internal/auth"
	"github.com/alexmullins/effteepee/internal/client"
	"github.com/alexmullins/effteepee/internal/server"
	"github.com/alexmullins/effteepee/pkg/protocol"
)

// startTestServer boots a Server on a loopback port backed by a single user
// record, and returns its address.
func startTestServer(t *testing.T, username, password, root string) string {
	t.Helper()

	userFilePath := filepath.Join(t.TempDir(), "users.txt")
	body := username + "::" + auth.HashPassword(password) + "::" + root + "\n"
	if err := os.WriteFile(userFilePath, []byte(body), 0o600); err != nil {
		t.Fatalf("write user file: %v", err)
	}

	users, err := auth.LoadUserFile(userFilePath)
	if err != nil {
		t.Fatalf("LoadUserFile: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := server.New(users, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Serve(ctx, ln)

	return ln.Addr().String()
}

func TestAuthSuccessAndLSEmptyDir(t *testing.T) {
	root := t.TempDir()
	addr := startTestServer(t, "alex", "alex@example.com", root)

	c := client.New(t.TempDir())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx, addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ok, err := c.Handshake("alex", "alex@example.com")
	if err != nil {
		t.Fatalf("Handshake error: %v", err)
	}
	if !ok {
		t.Fatal("expected successful authentication")
	}

	res, err := c.LS()
	if err != nil {
		t.Fatalf("LS error: %v", err)
	}
	if len(res.Folders) != 0 || len(res.Files) != 0 {
		t.Fatalf("expected empty dir, got folders=%v files=%v", res.Folders, res.Files)
	}

	if err := c.Quit(); err != nil {
		t.Fatalf("Quit error: %v", err)
	}
}

func TestAuthFailure(t *testing.T) {
	root := t.TempDir()
	addr := startTestServer(t, "alex", "alex@example.com", root)

	c := client.New(t.TempDir())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx, addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ok, err := c.Handshake("alex", "wrong")
	if err != nil {
		t.Fatalf("Handshake error: %v", err)
	}
	if ok {
		t.Fatal("expected authentication to fail")
	}
	code, has := c.GetError()
	if !has || code != protocol.ErrFailedAuthentication {
		t.Fatalf("GetError() = %v, %v; want ErrFailedAuthentication", code, has)
	}
}

func TestCDOutsideSandboxRejected(t *testing.T) {
	root := t.TempDir()
	addr := startTestServer(t, "alex", "alex@example.com", root)

	c := client.New(t.TempDir())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx, addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if ok, err := c.Handshake("alex", "alex@example.com"); err != nil || !ok {
		t.Fatalf("Handshake: ok=%v err=%v", ok, err)
	}

	ok, err := c.CD("../../../../../../etc")
	if err != nil {
		t.Fatalf("CD error: %v", err)
	}
	if ok {
		t.Fatal("expected sandbox escape to be rejected")
	}
	code, has := c.GetError()
	if !has || code != protocol.ErrBadCDPath {
		t.Fatalf("GetError() = %v, %v; want ErrBadCDPath", code, has)
	}
}

func TestPutGetRoundTripByteExact(t *testing.T) {
	root := t.TempDir()
	addr := startTestServer(t, "alex", "alex@example.com", root)

	localDir := t.TempDir()
	contents := strings.Repeat("hello effteepee ", 1000)
	if err := os.WriteFile(filepath.Join(localDir, "upload.txt"), []byte(contents), 0o644); err != nil {
		t.Fatalf("write local file: %v", err)
	}

	c := client.New(localDir)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx, addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if ok, err := c.Handshake("alex", "alex@example.com"); err != nil || !ok {
		t.Fatalf("Handshake: ok=%v err=%v", ok, err)
	}

	if err := c.Put("upload.txt"); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	uploaded, err := os.ReadFile(filepath.Join(root, "upload.txt"))
	if err != nil {
		t.Fatalf("read uploaded file on server root: %v", err)
	}
	if string(uploaded) != contents {
		t.Fatalf("uploaded content mismatch")
	}

	downloadDir := t.TempDir()
	c2 := client.New(downloadDir)
	if err := c2.Connect(ctx, addr); err != nil {
		t.Fatalf("Connect 2: %v", err)
	}
	if ok, err := c2.Handshake("alex", "alex@example.com"); err != nil || !ok {
		t.Fatalf("Handshake 2: ok=%v err=%v", ok, err)
	}
	if err := c2.Get("upload.txt"); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	downloaded, err := os.ReadFile(filepath.Join(downloadDir, "upload.txt"))
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(downloaded) != contents {
		t.Fatalf("downloaded content mismatch")
	}
}

func TestGetWithEncryptionRoundTrip(t *testing.T) {
	root := t.TempDir()
	addr := startTestServer(t, "alex", "alex@example.com", root)

	contents := "ciphertext round trip should still recover the original bytes"
	if err := os.WriteFile(filepath.Join(root, "secret.txt"), []byte(contents), 0o644); err != nil {
		t.Fatalf("seed server file: %v", err)
	}

	downloadDir := t.TempDir()
	c := client.New(downloadDir)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx, addr); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if ok, err := c.Handshake("alex", "alex@example.com"); err != nil || !ok {
		t.Fatalf("Handshake: ok=%v err=%v", ok, err)
	}
	if _, err := c.ToggleEncryption(); err != nil {
		t.Fatalf("ToggleEncryption: %v", err)
	}

	if err := c.Get("secret.txt"); err != nil {
		t.Fatalf("Get error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(downloadDir, "secret.txt"))
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(got) != contents {
		t.Fatalf("decrypted content mismatch: got %q, want %q", got, contents)
	}
}
