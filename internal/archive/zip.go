// Package archive handles uploaded ZIP datasets: safe extraction into a
// temporary directory, flattening of single-folder archives, packing of job
// output, and cleanup of stale extraction folders.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrTooManyFiles is returned when a dataset exceeds the configured file cap.
var ErrTooManyFiles = errors.New("too many files in dataset")

// ExtractDataset unpacks a ZIP archive into a fresh temporary directory and
// returns its path. Entries escaping the destination (zip slip) are rejected;
// directory entries and files beyond maxFiles fail the whole extraction. The
// caller owns the returned directory and must remove it.
func ExtractDataset(data []byte, maxFiles int) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening zip archive: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "ffai_")
	if err != nil {
		return "", fmt.Errorf("creating extraction directory: %w", err)
	}

	count := 0
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		count++
		if maxFiles > 0 && count > maxFiles {
			os.RemoveAll(tmpDir)
			return "", fmt.Errorf("%w: more than %d", ErrTooManyFiles, maxFiles)
		}
		if err := extractFile(f, tmpDir); err != nil {
			os.RemoveAll(tmpDir)
			return "", err
		}
	}

	return tmpDir, nil
}

func extractFile(f *zip.File, destDir string) error {
	cleaned := filepath.Clean(f.Name)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return fmt.Errorf("archive entry escapes destination: %s", f.Name)
	}
	target := filepath.Join(destDir, cleaned)

	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("creating directory for %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target) //nolint:gosec // target validated against zip slip above
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil { //nolint:gosec // dataset size is capped by the upload limit
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	return nil
}

// FlattenSingleDir returns the sole subdirectory of dir when the archive
// wrapped everything in one folder, otherwise dir itself. Archives exported
// by desktop tools commonly carry that extra level.
func FlattenSingleDir(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dir
	}
	return filepath.Join(dir, entries[0].Name())
}

// PackDir writes a ZIP archive of every file under dir (flat, base names
// only) to w. Used to ship a job's annotated output back to the caller.
func PackDir(w io.Writer, dir string) error {
	zw := zip.NewWriter(w)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path) //nolint:gosec // path comes from walking the job's own output dir
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(entry, f)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("packing %s: %w", dir, err)
	}
	return zw.Close()
}

// CleanupStale removes subdirectories of baseDir with the given prefix that
// have not been modified for maxAge. Errors are ignored: a folder may be in
// use by a running job or already gone.
func CleanupStale(baseDir, prefix string, maxAge time.Duration) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.RemoveAll(filepath.Join(baseDir, e.Name()))
		}
	}
}
