package patcher

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const (
	target = "https://dojo.nplusplus.ninja"
	local  = "127.0.0.1:8124"
)

func writeLibrary(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "libnpp.so")
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func library() []byte {
	var b bytes.Buffer
	b.Write([]byte{0x7f, 'E', 'L', 'F', 0, 1, 2})
	b.WriteString(target)
	b.Write([]byte{0, 0xff, 0x10})
	b.WriteString(target + "/prod/steam/")
	b.WriteString("https://dojo.nplusplus.ninj")
	return b.Bytes()
}

func TestPad(t *testing.T) {
	got, err := Pad(local, target)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(target) {
		t.Errorf("len = %d, want %d", len(got), len(target))
	}
	if !bytes.HasPrefix(got, []byte(local)) {
		t.Errorf("Pad() = %q", got)
	}
	if bytes.Count(got[len(local):], []byte{0}) != len(target)-len(local) {
		t.Errorf("padding is not all NUL: %q", got[len(local):])
	}

	_, err = Pad("127.0.0.1:8124/a/very/long/path", target)
	var lengthErr *LengthError
	if !errors.As(err, &lengthErr) {
		t.Fatalf("Pad() error = %v, want *LengthError", err)
	}
}

func TestPatcher_RoundTrip(t *testing.T) {
	original := library()
	path := writeLibrary(t, original)
	p := New(path, target)

	n, err := p.Patch(local)
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Patch() replaced %d, want 2", n)
	}

	patched, _ := os.ReadFile(path)
	if len(patched) != len(original) {
		t.Fatalf("patched size = %d, want %d", len(patched), len(original))
	}
	if bytes.Contains(patched, []byte(target)) {
		t.Error("target address still present after Patch()")
	}
	if !bytes.Contains(patched, []byte("https://dojo.nplusplus.ninj")) {
		t.Error("Patch() touched a partial match")
	}

	state, err := p.Status(local)
	if err != nil {
		t.Fatal(err)
	}
	if state != (State{Original: 0, Patched: 2}) || !state.IsPatched() {
		t.Errorf("Status() = %+v", state)
	}

	if n, err := p.Patch(local); err != nil || n != 0 {
		t.Errorf("second Patch() = %d, %v, want no-op", n, err)
	}

	if n, err := p.Unpatch(local); err != nil || n != 2 {
		t.Fatalf("Unpatch() = %d, %v", n, err)
	}
	restored, _ := os.ReadFile(path)
	if !bytes.Equal(restored, original) {
		t.Error("Unpatch() did not restore the original bytes")
	}

	if n, err := p.Unpatch(local); err != nil || n != 0 {
		t.Errorf("second Unpatch() = %d, %v, want no-op", n, err)
	}
	if state, _ := p.Status(local); state.IsPatched() || state.Original != 2 {
		t.Errorf("Status() after Unpatch = %+v", state)
	}
}

func TestPatcher_KeepsMode(t *testing.T) {
	path := writeLibrary(t, library())
	if _, err := New(path, target).Patch(local); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("left %d files in the library directory", len(entries))
	}
}

func TestPatcher_Errors(t *testing.T) {
	missing := New(filepath.Join(t.TempDir(), "missing.so"), target)
	if _, err := missing.Patch(local); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Patch() on missing file error = %v", err)
	}
	if _, err := missing.Status(local); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Status() on missing file error = %v", err)
	}

	path := writeLibrary(t, library())
	if _, err := New(path, "short").Patch(local); err == nil {
		t.Error("Patch() accepted an address longer than the target")
	}
}

func TestDefaultLibraryPath(t *testing.T) {
	path, err := DefaultLibraryPath()
	if errors.Is(err, ErrNoDefaultPath) {
		t.Skip("no default path on this platform")
	}
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "libnpp.so" {
		t.Errorf("DefaultLibraryPath() = %q", path)
	}
}
