package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/miku/dblpkit/xio"
)

var ErrCompressedDatabase = errors.New("sqlite output cannot be compressed")

// Write renders a table in a stream format.
func Write(w io.Writer, format Format, t Table) error {
	switch format {
	case CSV:
		return WriteCSV(w, t)
	case JSON:
		return WriteJSON(w, t)
	case XLSX:
		return WriteXLSX(w, t)
	default:
		return fmt.Errorf("cannot stream format %q", format)
	}
}

// WriteFile writes a table to a file. The file appears only after it has
// been written completely, compressed if the name ends with .gz or .zst.
func WriteFile(ctx context.Context, filename string, format Format, t Table) error {
	if format == SQLite {
		return writeDatabase(ctx, filename, t)
	}
	return writeAtomic(filename, func(w io.Writer) error {
		return Write(w, format, t)
	})
}

// WriteAuthorsFile writes a sorted list of author names. CSV has no header
// line, text has one name per line.
func WriteAuthorsFile(ctx context.Context, filename string, format Format, names []string) error {
	switch format {
	case CSV:
		return writeAtomic(filename, func(w io.Writer) error { return WriteAuthorsCSV(w, names) })
	case Text:
		return writeAtomic(filename, func(w io.Writer) error { return WriteAuthorsText(w, names) })
	case JSON:
		return writeAtomic(filename, func(w io.Writer) error { return WriteAuthorsJSON(w, names) })
	default:
		return WriteFile(ctx, filename, format, AuthorTable(names))
	}
}

func writeAtomic(filename string, fn func(w io.Writer) error) error {
	f, err := xio.Create(filename)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Abort()
		return err
	}
	return f.Close()
}

func writeDatabase(ctx context.Context, filename string, t Table) error {
	if xio.CompressionOf(filename) != xio.None {
		return ErrCompressedDatabase
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	tmp := filename + xio.WipSuffix
	os.Remove(tmp)
	if err := WriteSQLite(ctx, tmp, t); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filename)
}
