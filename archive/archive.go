// Package archive unpacks source feeds and packs the merged output.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/sink"
)

// ErrUnsafePath is returned for entries that would land outside destDir.
var ErrUnsafePath = errors.New("archive: entry escapes destination")

// Extract writes every regular file of the zip at zipPath below destDir and
// returns the extracted paths in archive order. Directories are created as
// needed; symlinks and other special entries are skipped.
func Extract(zipPath, destDir string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &sink.IOError{Op: "open archive", Path: zipPath, Err: err}
		}
		return nil, fmt.Errorf("archive: open %s: %w", zipPath, err)
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, &sink.IOError{Op: "mkdir", Path: destDir, Err: err}
	}
	root, err := filepath.Abs(destDir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return nil, fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}
		mode := f.Mode()
		if mode.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, &sink.IOError{Op: "mkdir", Path: target, Err: err}
			}
			continue
		}
		if !mode.IsRegular() {
			continue
		}
		if err := extractFile(f, target); err != nil {
			return nil, err
		}
		out = append(out, target)
	}
	return out, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &sink.IOError{Op: "mkdir", Path: filepath.Dir(target), Err: err}
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("archive: open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	w, err := os.Create(target)
	if err != nil {
		return &sink.IOError{Op: "create", Path: target, Err: err}
	}
	if _, err := io.Copy(w, rc); err != nil {
		w.Close()
		return &sink.IOError{Op: "extract", Path: target, Err: err}
	}
	if err := w.Close(); err != nil {
		return &sink.IOError{Op: "close", Path: target, Err: err}
	}
	return nil
}

// Pack writes files into a new Deflate-compressed zip at outPath. Entries use
// base names only, in the order given.
func Pack(outPath string, files []string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return &sink.IOError{Op: "create", Path: outPath, Err: err}
	}
	zw := zip.NewWriter(out)
	seen := make(map[string]bool, len(files))
	for _, p := range files {
		name := filepath.Base(p)
		if seen[name] {
			zw.Close()
			out.Close()
			return fmt.Errorf("archive: duplicate entry %s", name)
		}
		seen[name] = true
		if err := addFile(zw, p, name); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return &sink.IOError{Op: "finish", Path: outPath, Err: err}
	}
	if err := out.Close(); err != nil {
		return &sink.IOError{Op: "close", Path: outPath, Err: err}
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return &sink.IOError{Op: "open", Path: path, Err: err}
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return &sink.IOError{Op: "stat", Path: path, Err: err}
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("archive: header %s: %w", path, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("archive: entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return &sink.IOError{Op: "pack", Path: path, Err: err}
	}
	return nil
}
