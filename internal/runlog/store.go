// Package runlog keeps a local history of feed runs in a bbolt file.
package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/michael-poon/rss-feeds/internal/crawler"
)

var runsBucket = []byte("runs")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("run log is closed")

// Store persists crawler reports keyed by start time and run ID.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the run log at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create run log dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init run log: %w", err)
	}
	return &Store{db: db}, nil
}

// Record stores rep. Reports sort by StartedAt so List returns newest first.
func (s *Store) Record(ctx context.Context, rep crawler.Report) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put(key(rep), val)
	})
}

// List returns up to limit reports, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]crawler.Report, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	var out []crawler.Report
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(runsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var rep crawler.Report
			if err := json.Unmarshal(v, &rep); err != nil {
				return fmt.Errorf("decode report %s: %w", k, err)
			}
			out = append(out, rep)
		}
		return nil
	})
	return out, err
}

// Close releases the database file.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// key is the UTC start time in fixed-width form followed by the run ID.
func key(rep crawler.Report) []byte {
	return []byte(rep.StartedAt.UTC().Format("20060102T150405.000000000Z") + "/" + rep.RunID)
}

var _ crawler.Recorder = (*Store)(nil)
