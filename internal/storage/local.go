// Package storage keeps rendered tickets on local disk, one folder per
// sender identity, mirroring the Drive layout.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// File is a named document payload.
type File struct {
	Name string
	Data []byte
}

// Shelf manages the per-sender ticket folders under a base directory.
type Shelf struct {
	base string
}

// NewShelf creates a shelf rooted at base.
func NewShelf(base string) *Shelf {
	return &Shelf{base: base}
}

// EnsureFolders creates the base directory and one folder per sender key.
func (s *Shelf) EnsureFolders(senderKeys []string) error {
	for _, key := range senderKeys {
		if err := os.MkdirAll(filepath.Join(s.base, key), 0o755); err != nil {
			return fmt.Errorf("ensure ticket folder %s: %w", key, err)
		}
	}
	return nil
}

// Save writes a ticket under the sender's folder.
func (s *Shelf) Save(senderKey, filename string, data []byte) error {
	dir := filepath.Join(s.base, senderKey)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure ticket folder %s: %w", senderKey, err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write ticket %s: %w", path, err)
	}
	return nil
}

// ListRecent returns up to n PDF tickets for a sender, newest first.
func (s *Shelf) ListRecent(senderKey string, n int) ([]File, error) {
	dir := filepath.Join(s.base, senderKey)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ticket folder %s: %w", senderKey, err)
	}

	type candidate struct {
		name    string
		modTime time.Time
	}
	var pdfs []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		pdfs = append(pdfs, candidate{name: e.Name(), modTime: info.ModTime()})
	}
	sort.Slice(pdfs, func(i, j int) bool { return pdfs[i].modTime.After(pdfs[j].modTime) })
	if len(pdfs) > n {
		pdfs = pdfs[:n]
	}

	files := make([]File, 0, len(pdfs))
	for _, c := range pdfs {
		data, err := os.ReadFile(filepath.Join(dir, c.name))
		if err != nil {
			continue
		}
		files = append(files, File{Name: c.name, Data: data})
	}
	return files, nil
}
