// Command useradmin manages the server's user file. It recovers the
// "adduser" workflow from the original implementation's manage.py, without
// its commented-out email-shaped password requirement: a password here is
// any non-empty string, hashed the same way the server hashes a login
// attempt.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/alexmullins/effteepee/internal/auth"
)

func main() {
	userFile := flag.String("users", "data/userfile.txt", "path to the user file")
	flag.Parse()

	if flag.NArg() != 1 || flag.Arg(0) != "adduser" {
		fmt.Fprintln(os.Stderr, "usage: useradmin -users <path> adduser")
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)
	username := prompt(reader, "Username: ")
	password := prompt(reader, "Password: ")
	if password == "" {
		log.Fatal("password must not be empty")
	}
	directory := prompt(reader, "Root directory (must be absolute): ")
	if directory == "" || !os.IsPathSeparator(directory[0]) {
		log.Fatalf("root directory %q must be absolute", directory)
	}

	line := fmt.Sprintf("%s::%s::%s\n", username, auth.HashPassword(password), directory)

	f, err := os.OpenFile(*userFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		log.Fatalf("open user file: %v", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		log.Fatalf("write user file: %v", err)
	}
	fmt.Println("User added.")
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := r.ReadString('\n')
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
