package transport

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestDialWithRetrySucceedsImmediately(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	rm := NewRetryManager()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := rm.DialWithRetry(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("DialWithRetry error: %v", err)
	}
	conn.Close()

	if rm.GetCircuitState(ln.Addr().String()) != CircuitClosed {
		t.Fatal("expected circuit closed after success")
	}
}

func TestDialWithRetryFailsAfterExhaustingRetries(t *testing.T) {
	rm := NewRetryManager()
	rm.MaxRetries = 2
	rm.BaseBackoff = time.Millisecond
	rm.MaxBackoff = 5 * time.Millisecond

	// Nothing is listening on this port.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close() // close immediately so connections to addr fail

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := rm.DialWithRetry(ctx, addr); err == nil {
		t.Fatal("expected dial to fail against a closed listener")
	}
}

func TestNextBackoffGrowsAndClamps(t *testing.T) {
	rm := NewRetryManager()
	rm.JitterFactor = 0 // deterministic

	first := rm.NextBackoff(1)
	second := rm.NextBackoff(2)
	if second <= first {
		t.Fatalf("expected backoff to grow: attempt1=%v attempt2=%v", first, second)
	}

	huge := rm.NextBackoff(100)
	if huge > rm.MaxBackoff {
		t.Fatalf("NextBackoff(100) = %v, want <= %v", huge, rm.MaxBackoff)
	}
}
