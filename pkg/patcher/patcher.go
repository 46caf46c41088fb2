package patcher

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

// ErrNoDefaultPath is returned by DefaultLibraryPath on platforms without a
// known install location.
var ErrNoDefaultPath = errors.New("patcher: no default library path for this platform")

// LengthError reports a local address that does not fit in the space of
// the address it replaces.
type LengthError struct {
	Local  string
	Target string
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("patcher: local address %q is longer than target %q (%d > %d bytes)",
		e.Local, e.Target, len(e.Local), len(e.Target))
}

// DefaultLibraryPath returns where Steam installs the client library.
func DefaultLibraryPath() (string, error) {
	if runtime.GOOS != "linux" {
		return "", ErrNoDefaultPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("patcher: %w", err)
	}
	return filepath.Join(home, ".steam", "steam", "steamapps", "common", "N++", "lib64", "libnpp.so"), nil
}

// Pad returns local padded with NUL bytes to the length of target.
func Pad(local, target string) ([]byte, error) {
	if len(local) > len(target) {
		return nil, &LengthError{Local: local, Target: target}
	}
	out := make([]byte, len(target))
	copy(out, local)
	return out, nil
}

// State counts the occurrences of both addresses in a library.
type State struct {
	Original int `json:"original"`
	Patched  int `json:"patched"`
}

// IsPatched reports whether the library points at the local address only.
func (s State) IsPatched() bool {
	return s.Patched > 0 && s.Original == 0
}

// Patcher rewrites one library file.
type Patcher struct {
	path   string
	target string
	logger *slog.Logger
}

// Option configures a Patcher.
type Option func(*Patcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Patcher) {
		p.logger = logger
	}
}

// New returns a Patcher for the library at path whose compiled-in server
// address is target.
func New(path, target string, opts ...Option) *Patcher {
	p := &Patcher{
		path:   path,
		target: target,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "patcher", "library", path)
	return p
}

// Path returns the library path.
func (p *Patcher) Path() string {
	return p.path
}

// Patch replaces every occurrence of the target address with local.
// It returns the number of replacements.
func (p *Patcher) Patch(local string) (int, error) {
	padded, err := Pad(local, p.target)
	if err != nil {
		return 0, err
	}
	p.logger.Debug("patching library", "local", local)
	n, err := replaceInFile(p.path, []byte(p.target), padded)
	if err != nil {
		return 0, err
	}
	p.logger.Info("patched library", "local", local, "replaced", n)
	return n, nil
}

// Unpatch restores the target address wherever local was written by Patch.
// It returns the number of replacements.
func (p *Patcher) Unpatch(local string) (int, error) {
	padded, err := Pad(local, p.target)
	if err != nil {
		return 0, err
	}
	p.logger.Debug("unpatching library", "local", local)
	n, err := replaceInFile(p.path, padded, []byte(p.target))
	if err != nil {
		return 0, err
	}
	p.logger.Info("unpatched library", "local", local, "replaced", n)
	return n, nil
}

// Status counts the target and patched local addresses in the library.
func (p *Patcher) Status(local string) (State, error) {
	padded, err := Pad(local, p.target)
	if err != nil {
		return State{}, err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return State{}, fmt.Errorf("patcher: %w", err)
	}
	return State{
		Original: bytes.Count(data, []byte(p.target)),
		Patched:  bytes.Count(data, padded),
	}, nil
}

// replaceInFile swaps old for repl in the file at path. The file is only
// rewritten when something matched; the write goes through a temporary file
// in the same directory so a crash never leaves a truncated library.
func replaceInFile(path string, old, repl []byte) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("patcher: %w", err)
	}
	n := bytes.Count(data, old)
	if n == 0 {
		return 0, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("patcher: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".patch-*")
	if err != nil {
		return 0, fmt.Errorf("patcher: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(bytes.ReplaceAll(data, old, repl)); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("patcher: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("patcher: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("patcher: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("patcher: %w", err)
	}
	return n, nil
}
