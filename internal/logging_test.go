package internal

import (
	"bytes"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
)

func TestActionError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("boom"), "::error::boom\n"},
		{errors.New("line one\nline two"), "::error::line one%0Aline two\n"},
		{errors.New("100% broken\r\n"), "::error::100%25 broken%0D%0A\n"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		ActionError(&buf, tt.err)
		if buf.String() != tt.want {
			t.Errorf("ActionError(%q) = %q, want %q", tt.err, buf.String(), tt.want)
		}
	}
}

func TestInitLoggingPrefix(t *testing.T) {
	defer log.SetPrefix("")
	defer log.SetOutput(os.Stdout)
	InitLogging("0123456789abcdef")
	if p := log.Prefix(); p != "[01234567] " {
		t.Errorf("prefix = %q", p)
	}
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.Printf("hello")
	if !strings.HasSuffix(buf.String(), "[01234567] hello\n") {
		t.Errorf("line = %q", buf.String())
	}
}
