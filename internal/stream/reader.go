// Package stream provides a chunked, streaming line reader over plain or
// gzip-compressed text files. Memory use is bounded: lines are read and
// emitted in fixed-size chunks rather than materializing the whole file.
package stream

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/logweave/logweave/internal/errs"
)

// Reader streams a text file line by line, transparently decompressing
// gzip input. It never aborts on malformed UTF-8: invalid byte sequences
// are replaced with the Unicode replacement character, matching the "tolerant
// UTF-8" requirement — only open/read failures surface as errors.
type Reader struct {
	f       *os.File
	scanner *bufio.Scanner
}

// Open opens path for streaming. If path ends in ".gz" the stream is
// transparently gunzipped. Returns a wrapped errs.InputIO-kind error on
// failure.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, inputIOErr(err))
	}

	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, inputIOErr(err))
		}
		src = gz
	}

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	sc.Split(bufio.ScanLines)

	return &Reader{f: f, scanner: sc}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// ReadChunk returns up to n lines from the stream. A returned slice shorter
// than n (including empty) together with io.EOF means the stream is
// exhausted; a read error other than EOF is an errs.InputIO-kind failure.
func (r *Reader) ReadChunk(n int) ([]string, error) {
	lines := make([]string, 0, n)
	for len(lines) < n {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return lines, fmt.Errorf("read: %w", inputIOErr(err))
			}
			return lines, io.EOF
		}
		lines = append(lines, sanitizeUTF8(r.scanner.Text()))
	}
	return lines, nil
}

// sanitizeUTF8 replaces invalid UTF-8 byte sequences with the replacement
// rune so downstream text processing never panics or corrupts on malformed
// input; it never returns an error.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
			i++
			continue
		}
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}

type ioError struct{ err error }

func (e *ioError) Error() string { return errs.InputIO.Error() + ": " + e.err.Error() }
func (e *ioError) Unwrap() error { return errs.InputIO }

func inputIOErr(err error) error { return &ioError{err} }
