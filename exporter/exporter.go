// Package exporter persists one scraped entry as a directory named after
// its collection code: meta_data.json, the exported CIF, and an optional
// screenshot.
package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/icsd-tools/icsdcrawl/models"
)

// Writer writes per-entry artifacts under a fixed output root.
type Writer struct {
	root string
}

// NewWriter creates the output root if needed.
func NewWriter(root string) (*Writer, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output root %q: %w", root, err)
	}
	return &Writer{root: root}, nil
}

// EntryDir returns the directory an entry's artifacts live in.
func (w *Writer) EntryDir(code int) string {
	return filepath.Join(w.root, strconv.Itoa(code))
}

// WriteEntry creates the entry's directory and writes meta_data.json into
// it. A pre-existing directory of the same name is destructively replaced:
// the collection code is the identity of the entry, and a re-crawl wins.
func (w *Writer) WriteEntry(entry models.Entry) (string, error) {
	code := entry.CollectionCode()
	if code == 0 {
		return "", models.NewCrawlError(
			models.ErrCodeInternal, "entry has no collection code", nil)
	}

	dir := w.EntryDir(code)
	if _, err := os.Stat(dir); err == nil {
		slog.Warn("replacing existing entry directory", "dir", dir)
		if err := os.RemoveAll(dir); err != nil {
			return "", fmt.Errorf("remove stale entry dir %q: %w", dir, err)
		}
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create entry dir %q: %w", dir, err)
	}

	data, err := entry.MarshalIndented()
	if err != nil {
		return "", fmt.Errorf("marshal entry %d: %w", code, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meta_data.json"), data, 0o644); err != nil {
		return "", fmt.Errorf("write meta_data.json for %d: %w", code, err)
	}
	return dir, nil
}

// MoveCIF moves the downloaded CIF into the entry's directory as
// <code>.cif. The download dir may sit on another filesystem, so a failed
// rename falls back to copy+remove.
func (w *Writer) MoveCIF(src string, code int) error {
	dst := filepath.Join(w.EntryDir(code), strconv.Itoa(code)+".cif")
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open downloaded CIF %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy CIF to %q: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// WriteScreenshot saves the page capture as screenshot.png.
func (w *Writer) WriteScreenshot(code int, png []byte) error {
	path := filepath.Join(w.EntryDir(code), "screenshot.png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("write screenshot for %d: %w", code, err)
	}
	return nil
}
