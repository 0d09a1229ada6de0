// Package server implements the Server Core: accepting connections,
// spawning one isolated session per connection, and the in-memory registry
// of currently active sessions.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/alexmullins/effteepee/internal/auth"
	"github.com/alexmullins/effteepee/internal/session"
	"github.com/alexmullins/effteepee/internal/transport"
)

// Server accepts TCP connections and spawns one session per connection.
// The user store is immutable for the server's lifetime; the active-session
// registry is the only mutable shared state, and it exists purely for
// observability (listing who is connected), not for persistence or resume
// — the protocol has no concept of reconnecting to an in-flight transfer.
type Server struct {
	users *auth.UserStore
	log   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
	wg       sync.WaitGroup
}

// New constructs a Server backed by the given user store.
func New(users *auth.UserStore, log *zap.Logger) *Server {
	return &Server{
		users:    users,
		log:      log,
		sessions: make(map[string]*session.Session),
	}
}

// ActiveSessions returns the number of sessions currently being served.
func (srv *Server) ActiveSessions() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return len(srv.sessions)
}

// Serve accepts connections on ln until ctx is cancelled or Accept fails.
// Each connection is handled in its own goroutine. When ctx is cancelled,
// Serve waits for all of them to finish before returning; when Accept fails
// for any other reason, Serve returns the error without waiting.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				srv.wg.Wait()
				return nil
			default:
				return fmt.Errorf("server: accept: %w", err)
			}
		}

		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			srv.handleConn(conn)
		}()
	}
}

func (srv *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	fc := transport.NewFrameConn(conn)
	sess := session.New(fc, srv.users, srv.log)

	srv.mu.Lock()
	srv.sessions[sess.ID] = sess
	srv.mu.Unlock()

	srv.log.Info("connection accepted", zap.String("session_id", sess.ID), zap.String("remote_addr", conn.RemoteAddr().String()))

	sess.Run()

	srv.mu.Lock()
	delete(srv.sessions, sess.ID)
	srv.mu.Unlock()

	srv.log.Info("connection closed", zap.String("session_id", sess.ID))
}
