// Package archive extracts downloaded dataset archives. Extraction errors
// are per-item conditions: the caller logs them and moves on.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractZip extracts every entry of the archive at src into destDir,
// creating destDir if needed. Entries escaping destDir are rejected.
func ExtractZip(src, destDir string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("opening archive %s failed: %w", src, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	root := filepath.Clean(destDir)
	for _, entry := range reader.File {
		if err := extractEntry(entry, root); err != nil {
			return fmt.Errorf("extracting %s from %s failed: %w", entry.Name, src, err)
		}
	}
	return nil
}

func extractEntry(entry *zip.File, root string) error {
	target := filepath.Join(root, filepath.FromSlash(entry.Name))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return fmt.Errorf("entry path escapes extraction directory")
	}
	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	in, err := entry.Open()
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
