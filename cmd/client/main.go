// Command client is a non-interactive driver over the Client Library:
// each invocation connects, authenticates, runs one operation, and quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/alexmullins/effteepee/internal/client"
)

func main() {
	addr := flag.String("server", "", "server address (host:port)")
	username := flag.String("user", "", "username")
	password := flag.String("pass", "", "password")
	localDir := flag.String("local-dir", ".", "local directory for get/put")
	op := flag.String("op", "ls", "operation: ls, cd, get, put, mget, mput")
	path := flag.String("path", "", "path for cd, or comma-separated file list for get/put/mget/mput")
	compression := flag.Bool("compression", false, "enable compression before transfer")
	encryption := flag.Bool("encryption", false, "enable encryption before transfer")
	flag.Parse()

	if *addr == "" || *username == "" {
		flag.Usage()
		os.Exit(1)
	}

	c := client.New(*localDir)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.Connect(ctx, *addr); err != nil {
		log.Fatalf("connect: %v", err)
	}

	ok, err := c.Handshake(*username, *password)
	if err != nil {
		log.Fatalf("handshake: %v", err)
	}
	if !ok {
		code, _ := c.GetError()
		log.Fatalf("authentication failed (code %d)", code)
	}

	if *compression {
		if _, err := c.ToggleCompression(); err != nil {
			log.Fatalf("toggle compression: %v", err)
		}
	}
	if *encryption {
		if _, err := c.ToggleEncryption(); err != nil {
			log.Fatalf("toggle encryption: %v", err)
		}
	}

	if err := runOp(c, *op, *path); err != nil {
		log.Fatalf("%s: %v", *op, err)
	}

	if err := c.Quit(); err != nil {
		log.Fatalf("quit: %v", err)
	}
}

func runOp(c *client.Client, op, path string) error {
	switch op {
	case "ls":
		res, err := c.LS()
		if err != nil {
			return err
		}
		for _, f := range res.Folders {
			fmt.Printf("%s/\n", f)
		}
		for _, f := range res.Files {
			fmt.Println(f)
		}
		return nil
	case "cd":
		ok, err := c.CD(path)
		if err != nil {
			return err
		}
		if !ok {
			code, _ := c.GetError()
			return fmt.Errorf("server rejected cd (code %d)", code)
		}
		return nil
	case "get":
		return withProgress(path, c.Get)
	case "mget":
		return c.MGet(splitList(path))
	case "put":
		return withProgress(path, c.Put)
	case "mput":
		return c.MPut(splitList(path))
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

func splitList(path string) []string {
	var names []string
	for _, n := range strings.Split(path, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// withProgress wraps a single-file transfer with a spinner-style bar: the
// protocol gives no byte-count up front for a single-name get/put, so this
// just tracks elapsed activity rather than a percentage.
func withProgress(name string, fn func(string) error) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("transferring %s", name)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	defer bar.Finish()
	return fn(name)
}
