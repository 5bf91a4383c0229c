// Package internal holds process-wide helpers for the command.
package internal

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// InitLogging sends the standard logger to stdout with microsecond stamps.
// A non-empty runID is added as the line prefix.
func InitLogging(runID string) {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lmsgprefix)
	if runID != "" {
		log.SetPrefix("[" + runID[:min(8, len(runID))] + "] ")
	}
}

var annotationEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")

// ActionError writes err as a GitHub Actions error annotation, which also
// marks the step as failed in the workflow UI.
func ActionError(w io.Writer, err error) {
	fmt.Fprintf(w, "::error::%s\n", annotationEscaper.Replace(err.Error()))
}
