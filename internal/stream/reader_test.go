package stream

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/logweave/logweave/internal/errs"
)

func writeFile(t *testing.T, dir, name string, lines []string, gz bool) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var w io.Writer = f
	var gzw *gzip.Writer
	if gz {
		gzw = gzip.NewWriter(f)
		w = gzw
	}
	for _, l := range lines {
		if _, err := io.WriteString(w, l+"\n"); err != nil {
			t.Fatal(err)
		}
	}
	if gzw != nil {
		gzw.Close()
	}
	return path
}

func TestReadChunkPlain(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", []string{"one", "two", "three"}, false)

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	chunk, err := r.ReadChunk(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunk) != 2 || chunk[0] != "one" || chunk[1] != "two" {
		t.Fatalf("chunk = %v", chunk)
	}

	chunk, err = r.ReadChunk(2)
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if len(chunk) != 1 || chunk[0] != "three" {
		t.Fatalf("last chunk = %v", chunk)
	}
}

func TestReadChunkGzip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "b.txt.gz", []string{"alpha", "beta"}, true)

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	chunk, err := r.ReadChunk(10)
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if len(chunk) != 2 || chunk[0] != "alpha" || chunk[1] != "beta" {
		t.Fatalf("chunk = %v", chunk)
	}
}

func TestOpenMissingFileIsInputIO(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.txt"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, errs.InputIO) {
		t.Fatalf("expected errs.InputIO, got %v", err)
	}
}

func TestSanitizeUTF8ReplacesInvalidBytes(t *testing.T) {
	bad := "valid\xffend"
	got := sanitizeUTF8(bad)
	if got == bad {
		t.Fatalf("expected replacement to change the string")
	}
}
