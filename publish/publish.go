// Package publish delivers the packaged merge archive.
//
// GitHub commits the archive into a repository through the contents API.
// Local copies it to a path and is used for dry runs.
package publish

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/theoremus-urban-solutions/gtfs-regional-merge/sink"
)

// DefaultMessage is the commit message used when the triggering commit has none.
const DefaultMessage = "Atualização Automática"

// Artifact is a file to publish. An empty Message lets the publisher choose.
type Artifact struct {
	Path    string
	Message string
}

// Publisher delivers an artifact.
type Publisher interface {
	Publish(ctx context.Context, a Artifact) error
}

// BlobSHA returns the git blob object id of content, the value the contents
// API reports as a file's sha.
func BlobSHA(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// Local copies artifacts to Dest. A Dest ending in a separator or naming an
// existing directory keeps the artifact's base name.
type Local struct {
	Dest string
}

func (l Local) Publish(ctx context.Context, a Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest := l.Dest
	if dest == "" {
		return fmt.Errorf("publish: local destination is empty")
	}
	if info, err := os.Stat(dest); (err == nil && info.IsDir()) || os.IsPathSeparator(dest[len(dest)-1]) {
		dest = filepath.Join(dest, filepath.Base(a.Path))
	}
	if filepath.Clean(dest) == filepath.Clean(a.Path) {
		return nil
	}
	in, err := os.Open(a.Path)
	if err != nil {
		return &sink.IOError{Op: "open", Path: a.Path, Err: err}
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &sink.IOError{Op: "mkdir", Path: filepath.Dir(dest), Err: err}
	}
	out, err := os.Create(dest)
	if err != nil {
		return &sink.IOError{Op: "create", Path: dest, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return &sink.IOError{Op: "copy", Path: dest, Err: err}
	}
	if err := out.Close(); err != nil {
		return &sink.IOError{Op: "close", Path: dest, Err: err}
	}
	log.Printf("✔︎ Copied %q to %q", a.Path, dest)
	return nil
}
