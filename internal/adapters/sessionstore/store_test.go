package sessionstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mikey-austin/media_session/pkg/msp"
)

func TestStorePutGetClear(t *testing.T) {
	store := NewStoreAt(filepath.Join(t.TempDir(), "state", "sessions.json"))

	if _, ok, err := store.Get("node"); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}
	ref := msp.SessionRef{SessionID: "s1", ProtocolVersion: 1, AllowedCommands: []string{msp.TypeLibraryRoot}}
	if err := store.Put("node", ref); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := store.Get("node")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.SessionID != "s1" || len(got.AllowedCommands) != 1 {
		t.Fatalf("unexpected ref %+v", got)
	}
	if err := store.Clear("node"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := store.Get("node"); ok {
		t.Fatalf("expected cleared")
	}
	if err := store.Clear("missing"); err != nil {
		t.Fatalf("clear missing: %v", err)
	}
}

func TestStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := NewStoreAt(path).Get("node"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestSessionsPathUsesXDGState(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	path, err := sessionsPath()
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if path != filepath.Join(dir, "mss", "sessions.json") {
		t.Fatalf("unexpected path %s", path)
	}
}
