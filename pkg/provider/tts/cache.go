package tts

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cache manages the directory of temporary audio files produced by
// providers. Files are short-lived: the orchestrator removes each one as
// soon as its payload has been built.
type Cache struct {
	dir string
}

// NewCache creates the cache directory if needed.
func NewCache(dir string) (*Cache, error) {
	if dir == "" {
		dir = "cache"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tts: create cache dir %s: %w", dir, err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string { return c.dir }

// NewPath returns a unique path for a new audio file with the given
// extension, named by timestamp plus a short random suffix so concurrent
// synthesis calls never collide.
func (c *Cache) NewPath(ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := fmt.Sprintf("%s_%s.%s", time.Now().Format("20060102_150405"), suffix, ext)
	return filepath.Join(c.dir, name)
}

// Remove deletes a cached audio file. Failure is logged, not returned:
// a leaked temp file must not fail the payload that already shipped.
func (c *Cache) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove cached audio file", "path", path, "error", err)
	}
}
