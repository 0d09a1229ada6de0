package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/alexmullins/effteepee/internal/auth"
	"github.com/alexmullins/effteepee/internal/server"
)

func main() {
	userFile := flag.String("users", "data/userfile.txt", "path to the user file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-users <file>] [-log-level <level>] <host> <port>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	addr := net.JoinHostPort(flag.Arg(0), flag.Arg(1))

	log, err := newLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "effteepee-server: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	users, err := auth.LoadUserFile(*userFile)
	if err != nil {
		log.Fatal("load user file", zap.Error(err))
	}
	log.Info("loaded user file", zap.String("path", *userFile), zap.Int("users", users.Len()))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal("listen", zap.Error(err))
	}
	log.Info("EffTeePee server listening", zap.String("addr", addr))

	srv := server.New(users, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
	log.Info("shut down")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	return cfg.Build()
}
