package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// DiskTier persists entries as one msgpack file per key under dir. The
// filename is the SHA-256 of the key, so arbitrary keys map to safe paths.
// File mtime doubles as the LRU recency marker: reads touch the file, and
// capacity enforcement removes the oldest files first.
type DiskTier struct {
	dir        string
	maxEntries int

	now func() time.Time
}

// NewDiskTier creates (and if needed makes) a disk tier rooted at dir
func NewDiskTier(dir string, maxEntries int) (*DiskTier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
	}
	return &DiskTier{
		dir:        dir,
		maxEntries: maxEntries,
		now:        time.Now,
	}, nil
}

// Get reads the entry for key, removing it if expired
func (d *DiskTier) Get(_ context.Context, key string) (*Entry, error) {
	path := d.path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("disk cache read failed: %w", err)
	}

	var entry Entry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		// Corrupt file is unrecoverable; drop it and report a miss
		_ = os.Remove(path)
		return nil, nil
	}

	if entry.Expired(d.now()) {
		_ = os.Remove(path)
		return nil, nil
	}

	// Touch for LRU recency; best effort
	nowT := d.now()
	_ = os.Chtimes(path, nowT, nowT)

	return &entry, nil
}

// Set writes the entry atomically (temp file + rename) and enforces the
// capacity bound by evicting the least-recently-used files
func (d *DiskTier) Set(_ context.Context, key string, entry *Entry) error {
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	path := d.path(key)
	tmp, err := os.CreateTemp(d.dir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("disk cache write failed: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("disk cache write failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("disk cache write failed: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("disk cache write failed: %w", err)
	}

	return d.enforceCapacity()
}

// Delete removes the entry for key if present
func (d *DiskTier) Delete(_ context.Context, key string) error {
	if err := os.Remove(d.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("disk cache delete failed: %w", err)
	}
	return nil
}

// Len returns the number of entry files currently on disk
func (d *DiskTier) Len(_ context.Context) (int, error) {
	files, err := d.entryFiles()
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

func (d *DiskTier) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.dir, hex.EncodeToString(sum[:])+".mp")
}

type diskFile struct {
	path  string
	mtime time.Time
}

func (d *DiskTier) entryFiles() ([]diskFile, error) {
	dirents, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("disk cache scan failed: %w", err)
	}

	files := make([]diskFile, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() || filepath.Ext(de.Name()) != ".mp" {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, diskFile{
			path:  filepath.Join(d.dir, de.Name()),
			mtime: info.ModTime(),
		})
	}
	return files, nil
}

func (d *DiskTier) enforceCapacity() error {
	files, err := d.entryFiles()
	if err != nil {
		return err
	}
	if len(files) <= d.maxEntries {
		return nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].mtime.Before(files[j].mtime)
	})

	for _, f := range files[:len(files)-d.maxEntries] {
		_ = os.Remove(f.path)
	}
	return nil
}
