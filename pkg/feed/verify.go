package feed

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmcdole/gofeed"
)

// ErrInvalidFeed wraps every verification failure.
var ErrInvalidFeed = errors.New("invalid feed")

// Verify parses data back as a feed and checks what readers rely on:
// channel metadata, the item count, and non-empty title/link/guid/description per item.
func Verify(data []byte, wantItems int) error {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeed, err)
	}
	if parsed.FeedType != "rss" {
		return fmt.Errorf("%w: feed type %q", ErrInvalidFeed, parsed.FeedType)
	}
	if strings.TrimSpace(parsed.Title) == "" || strings.TrimSpace(parsed.Link) == "" {
		return fmt.Errorf("%w: channel title or link missing", ErrInvalidFeed)
	}
	if len(parsed.Items) != wantItems {
		return fmt.Errorf("%w: %d items, want %d", ErrInvalidFeed, len(parsed.Items), wantItems)
	}
	for i, it := range parsed.Items {
		switch {
		case strings.TrimSpace(it.Title) == "":
			return fmt.Errorf("%w: item %d has no title", ErrInvalidFeed, i)
		case strings.TrimSpace(it.Link) == "":
			return fmt.Errorf("%w: item %d has no link", ErrInvalidFeed, i)
		case strings.TrimSpace(it.GUID) == "":
			return fmt.Errorf("%w: item %d has no guid", ErrInvalidFeed, i)
		case strings.TrimSpace(it.Description) == "":
			return fmt.Errorf("%w: item %d has no description", ErrInvalidFeed, i)
		}
	}
	return nil
}

// WriteFile replaces path with data atomically, creating the parent directory.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
