// Package output writes extracted records as CSV, JSON, XLSX or SQLite.
package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/miku/dblpkit/extract"
	"github.com/miku/dblpkit/schema/dblp"
)

var ErrUnknownFormat = errors.New("unknown format")

// Delimiter joins multiple values of a feature in a single cell.
const Delimiter = "::"

// IDColumn is the name of the optional identifier column.
const IDColumn = "id"

// Format of an output file.
type Format string

const (
	CSV    Format = "csv"
	JSON   Format = "json"
	XLSX   Format = "xlsx"
	SQLite Format = "sqlite"
	Text   Format = "txt"
)

// Formats for records. Text is only used for author lists.
var Formats = []Format{CSV, JSON, XLSX, SQLite}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(s, "."))); f {
	case CSV, JSON, XLSX, SQLite, Text:
		return f, nil
	case "db", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, s)
	}
}

// Ext returns the file extension, including the dot.
func (f Format) Ext() string {
	if f == SQLite {
		return ".db"
	}
	return "." + string(f)
}

// Table is a named list of records with a fixed column layout.
type Table struct {
	Name    string
	Columns []string
	Records []extract.Record
	// UUID adds an id column, derived from the record key.
	UUID bool
}

// NewTable creates a table with columns for the given features, the key
// first if includeKey is set.
func NewTable(name string, records []extract.Record, features []dblp.Feature, includeKey bool) Table {
	var columns []string
	if includeKey {
		columns = append(columns, extract.KeyColumn)
	}
	seen := make(map[string]bool)
	for _, f := range features {
		if seen[string(f)] {
			continue
		}
		seen[string(f)] = true
		columns = append(columns, string(f))
	}
	return Table{Name: name, Columns: columns, Records: records}
}

// AuthorTable wraps a list of names as a single column table.
func AuthorTable(names []string) Table {
	records := make([]extract.Record, len(names))
	for i, name := range names {
		records[i] = extract.Record{
			Keys:   []string{string(dblp.Author)},
			Values: map[string][]string{string(dblp.Author): {name}},
		}
	}
	return Table{Name: string(dblp.Author), Columns: []string{string(dblp.Author)}, Records: records}
}

// Header returns the column names.
func (t Table) Header() []string {
	if !t.UUID {
		return t.Columns
	}
	return append([]string{IDColumn}, t.Columns...)
}

// Row renders a record as cells, multiple values joined by Delimiter.
func (t Table) Row(rec extract.Record) []string {
	row := make([]string, 0, len(t.Columns)+1)
	if t.UUID {
		row = append(row, RecordID(rec))
	}
	for _, c := range t.Columns {
		row = append(row, strings.Join(rec.Values[c], Delimiter))
	}
	return row
}

// RecordID returns a name based UUID of the record key or the empty string,
// if the record has no key.
func RecordID(rec extract.Record) string {
	key := rec.Key()
	if key == "" {
		return ""
	}
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(key)).String()
}
