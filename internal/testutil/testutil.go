// Package testutil provides shared test fixtures. All files are created
// under t.TempDir() so tests stay isolated and self-cleaning.
package testutil

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
)

// Fixture is a temp directory posing as a home directory.
type Fixture struct {
	T    *testing.T
	Root string
}

// NewFixture creates a fixture rooted at a fresh temp dir, resolved
// through symlinks so path comparisons against canonicalized output hold.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	return &Fixture{T: t, Root: root}
}

// Path joins a relative path onto the fixture root.
func (f *Fixture) Path(rel string) string {
	return filepath.Join(f.Root, rel)
}

// CreateFile writes a file (creating parents) and returns its path.
func (f *Fixture) CreateFile(rel string, content []byte) string {
	f.T.Helper()
	path := f.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		f.T.Fatalf("create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		f.T.Fatalf("create file %s: %v", path, err)
	}
	return path
}

// CreateRandomFile writes size bytes of random content.
func (f *Fixture) CreateRandomFile(rel string, size int) string {
	f.T.Helper()
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		f.T.Fatalf("random content: %v", err)
	}
	return f.CreateFile(rel, buf)
}
