package auth

import (
	"strings"
	"testing"
)

func TestParseUserFileAndAuthenticate(t *testing.T) {
	hash := HashPassword("alex@example.com")
	data := "# a comment\n" +
		"alex::" + hash + "::/srv/effteepee/alex\n" +
		"\n" +
		"sam::" + HashPassword("hunter2") + "::/srv/effteepee/sam\n"

	store, err := ParseUserFile(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseUserFile error: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}

	rec, ok := store.Authenticate("alex", "alex@example.com")
	if !ok {
		t.Fatal("expected alex to authenticate")
	}
	if rec.RootDir != "/srv/effteepee/alex" {
		t.Fatalf("RootDir = %q, want /srv/effteepee/alex", rec.RootDir)
	}

	if _, ok := store.Authenticate("alex", "wrong"); ok {
		t.Fatal("expected wrong password to fail")
	}
	if _, ok := store.Authenticate("nobody", "anything"); ok {
		t.Fatal("expected unknown username to fail")
	}
}

func TestParseUserFileMalformedLine(t *testing.T) {
	if _, err := ParseUserFile(strings.NewReader("alex::onlytwofields\n")); err == nil {
		t.Fatal("expected error for malformed line")
	}
}

func TestParseUserFileEmptyUsername(t *testing.T) {
	if _, err := ParseUserFile(strings.NewReader("::" + HashPassword("x") + "::/root\n")); err == nil {
		t.Fatal("expected error for empty username")
	}
}
