// Package xio opens and creates files, transparently handling gzip and
// zstd compression by file extension.
package xio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	gzip "github.com/klauspost/pgzip"
)

// WipSuffix is appended to files that are still being written.
const WipSuffix = ".wip"

// Compression by file extension.
type Compression int

const (
	None Compression = iota
	Gzip
	Zstd
)

// CompressionOf returns the compression implied by the file name.
func CompressionOf(name string) Compression {
	name = strings.TrimSuffix(name, WipSuffix)
	switch {
	case strings.HasSuffix(name, ".gz"):
		return Gzip
	case strings.HasSuffix(name, ".zst"):
		return Zstd
	default:
		return None
	}
}

// Ext returns the file extension of a compression, including the dot.
func (c Compression) Ext() string {
	switch c {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// ParseCompression parses "gz", "zst" or the empty string.
func ParseCompression(s string) (Compression, error) {
	switch strings.TrimPrefix(s, ".") {
	case "":
		return None, nil
	case "gz", "gzip":
		return Gzip, nil
	case "zst", "zstd":
		return Zstd, nil
	default:
		return None, fmt.Errorf("unknown compression: %s", s)
	}
}

// Open opens a file for reading, "-" is stdin.
func Open(filename string) (io.ReadCloser, error) {
	if filename == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	rc, err := NewReader(file, filename)
	if err != nil {
		file.Close()
		return nil, err
	}
	return rc, nil
}

// NewReader wraps a reader with a decompressor, if the name calls for it.
// Closing the returned reader closes r as well, if it is a closer.
func NewReader(r io.Reader, filename string) (io.ReadCloser, error) {
	var closer io.Closer = nopCloser{}
	if c, ok := r.(io.Closer); ok {
		closer = c
	}
	switch CompressionOf(filename) {
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("error creating gzip reader: %w", err)
		}
		return &readCloserPair{zr, closer}, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("error creating zstd reader: %w", err)
		}
		return &readCloserPair{zr.IOReadCloser(), closer}, nil
	default:
		if rc, ok := r.(io.ReadCloser); ok {
			return rc, nil
		}
		return io.NopCloser(r), nil
	}
}

// NewWriter wraps a writer with a compressor, if the name calls for it.
// Closing the returned writer flushes the compressor and closes w.
func NewWriter(w io.WriteCloser, filename string) (io.WriteCloser, error) {
	switch CompressionOf(filename) {
	case Gzip:
		return &writeCloserPair{gzip.NewWriter(w), w}, nil
	case Zstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("error creating zstd writer: %w", err)
		}
		return &writeCloserPair{zw, w}, nil
	default:
		return w, nil
	}
}

// AtomicFile is written to a temporary name next to its final name and
// only renamed on Close. A failed or aborted write leaves no file behind.
type AtomicFile struct {
	name string
	file *os.File
	w    io.WriteCloser
	done bool
}

// Create creates a file for writing, compressed if the name has a .gz or
// .zst extension. The content appears under filename after Close.
func Create(filename string) (*AtomicFile, error) {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(filename + WipSuffix)
	if err != nil {
		return nil, fmt.Errorf("error creating file: %w", err)
	}
	w, err := NewWriter(file, filename)
	if err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, err
	}
	return &AtomicFile{name: filename, file: file, w: w}, nil
}

// Name returns the final name of the file.
func (f *AtomicFile) Name() string {
	return f.name
}

func (f *AtomicFile) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

// Close flushes all data and moves the file into place.
func (f *AtomicFile) Close() error {
	if f.done {
		return nil
	}
	f.done = true
	err := f.w.Close()
	if err != nil {
		os.Remove(f.file.Name())
		return err
	}
	if err := os.Rename(f.file.Name(), f.name); err != nil {
		os.Remove(f.file.Name())
		return err
	}
	return nil
}

// Abort discards the file. Calling Abort after Close is a noop.
func (f *AtomicFile) Abort() error {
	if f.done {
		return nil
	}
	f.done = true
	f.w.Close()
	return os.Remove(f.file.Name())
}

// Exists reports whether a regular file exists at the path.
func Exists(filename string) bool {
	fi, err := os.Stat(filename)
	return err == nil && fi.Mode().IsRegular()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// readCloserPair closes a decompressor and the underlying file.
type readCloserPair struct {
	reader io.ReadCloser
	file   io.Closer
}

func (rc *readCloserPair) Read(p []byte) (n int, err error) {
	return rc.reader.Read(p)
}

func (rc *readCloserPair) Close() error {
	err1 := rc.reader.Close()
	err2 := rc.file.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// writeCloserPair closes a compressor and the underlying file.
type writeCloserPair struct {
	writer io.WriteCloser
	file   io.Closer
}

func (wc *writeCloserPair) Write(p []byte) (n int, err error) {
	return wc.writer.Write(p)
}

func (wc *writeCloserPair) Close() error {
	err1 := wc.writer.Close()
	err2 := wc.file.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
