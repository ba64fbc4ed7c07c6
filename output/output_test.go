package output

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/miku/dblpkit/extract"
	"github.com/miku/dblpkit/schema/dblp"
	"github.com/miku/dblpkit/xio"
	"github.com/segmentio/encoding/json"
	"github.com/xuri/excelize/v2"
)

var features = []dblp.Feature{dblp.Title, dblp.Author, dblp.Pages}

func record(key string, values map[string][]string) extract.Record {
	rec := extract.Record{Values: make(map[string][]string)}
	if key != "" {
		rec.Keys = append(rec.Keys, extract.KeyColumn)
		rec.Values[extract.KeyColumn] = []string{key}
	}
	for _, f := range features {
		rec.Keys = append(rec.Keys, string(f))
		vs := values[string(f)]
		if vs == nil {
			vs = []string{}
		}
		rec.Values[string(f)] = vs
	}
	return rec
}

func testTable(includeKey bool) Table {
	key := func(k string) string {
		if includeKey {
			return k
		}
		return ""
	}
	records := []extract.Record{
		record(key("journals/a/A1"), map[string][]string{
			"title":  {"Streams, Trees"},
			"author": {"A", "B"},
			"pages":  {"4"},
		}),
		record(key("conf/b/B2"), map[string][]string{
			"title": {`Quote "me"`},
		}),
	}
	return NewTable("article", records, features, includeKey)
}

func TestParseFormat(t *testing.T) {
	var cases = []struct {
		s    string
		want Format
		err  bool
	}{
		{"csv", CSV, false},
		{"JSON", JSON, false},
		{".xlsx", XLSX, false},
		{"sqlite", SQLite, false},
		{"db", SQLite, false},
		{"txt", Text, false},
		{"parquet", "", true},
	}
	for _, c := range cases {
		got, err := ParseFormat(c.s)
		if (err != nil) != c.err {
			t.Errorf("%s: got err %v", c.s, err)
		}
		if got != c.want {
			t.Errorf("%s: got %v, want %v", c.s, got, c.want)
		}
	}
	if SQLite.Ext() != ".db" || CSV.Ext() != ".csv" {
		t.Errorf("unexpected extensions")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testTable(true)); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	want := "key,title,author,pages\n" +
		"journals/a/A1,\"Streams, Trees\",A::B,4\n" +
		"conf/b/B2,\"Quote \"\"me\"\"\",,\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteCSVWithoutKey(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testTable(false)); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if line := strings.SplitN(buf.String(), "\n", 2)[0]; line != "title,author,pages" {
		t.Fatalf("got %q", line)
	}
}

func TestRecordID(t *testing.T) {
	rec := record("journals/a/A1", nil)
	id := RecordID(rec)
	u, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if u.Version() != 5 {
		t.Fatalf("got version %d, want 5", u.Version())
	}
	if RecordID(record("journals/a/A1", nil)) != id {
		t.Fatalf("id not stable")
	}
	if RecordID(record("journals/a/A2", nil)) == id {
		t.Fatalf("id collision")
	}
	if RecordID(record("", nil)) != "" {
		t.Fatalf("expected empty id for record without key")
	}
}

func TestWriteJSON(t *testing.T) {
	tbl := testTable(true)
	tbl.UUID = true
	var buf bytes.Buffer
	if err := WriteJSON(&buf, tbl); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	var docs []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &docs); err != nil {
		t.Fatalf("invalid json %s: %v", buf.String(), err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0]["id"] != RecordID(tbl.Records[0]) {
		t.Fatalf("got %v, want id", docs[0]["id"])
	}
	if !strings.HasPrefix(buf.String(), `[{"id":`) {
		t.Fatalf("id must come first: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"author":["A","B"]`) {
		t.Fatalf("unexpected authors: %s", buf.String())
	}
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, NewTable("x", nil, features, false)); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if buf.String() != "[]\n" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, testTable(true)); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	defer f.Close()
	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"article"}) {
		t.Fatalf("got %v, want [article]", got)
	}
	rows, err := f.GetRows("article")
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if !reflect.DeepEqual(rows[1], []string{"journals/a/A1", "Streams, Trees", "A::B", "4"}) {
		t.Fatalf("got %v", rows[1])
	}
}

func TestSheetName(t *testing.T) {
	if got := sheetName("article", 1); got != "article" {
		t.Errorf("got %q", got)
	}
	if got := sheetName("article", 3); got != "article_3" {
		t.Errorf("got %q", got)
	}
	if got := sheetName(strings.Repeat("x", 40), 2); len(got) != 31 || !strings.HasSuffix(got, "_2") {
		t.Errorf("got %q", got)
	}
}

func TestTruncateCell(t *testing.T) {
	s := strings.Repeat("ü", maxCellChars+10)
	if got := truncateCell(s); len([]rune(got)) != maxCellChars {
		t.Fatalf("got %d runes, want %d", len([]rune(got)), maxCellChars)
	}
	if got := truncateCell("short"); got != "short" {
		t.Fatalf("got %q", got)
	}
}

func TestWriteSQLite(t *testing.T) {
	var (
		ctx      = context.Background()
		filename = filepath.Join(t.TempDir(), "dblp.db")
	)
	tbl := testTable(true)
	for i := 0; i < 2; i++ {
		// Writing twice replaces the table.
		if err := WriteFile(ctx, filename, SQLite, tbl); err != nil {
			t.Fatalf("got %v, want nil", err)
		}
	}
	if !xio.Exists(filename) || xio.Exists(filename+xio.WipSuffix) {
		t.Fatalf("expected database file only")
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "article"`).Scan(&n); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if n != 2 {
		t.Fatalf("got %d rows, want 2", n)
	}
	var author string
	if err := db.QueryRow(`SELECT "author" FROM "article" WHERE "key" = ?`, "journals/a/A1").Scan(&author); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if author != "A::B" {
		t.Fatalf("got %q, want A::B", author)
	}
}

func TestWriteSQLiteCompressed(t *testing.T) {
	err := WriteFile(context.Background(), filepath.Join(t.TempDir(), "x.db.gz"), SQLite, testTable(false))
	if err != ErrCompressedDatabase {
		t.Fatalf("got %v, want %v", err, ErrCompressedDatabase)
	}
}

func TestWriteFileCompressed(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "article.csv.zst")
	if err := WriteFile(context.Background(), filename, CSV, testTable(false)); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	rc, err := xio.Open(filename)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if !strings.HasPrefix(string(b), "title,author,pages\n") {
		t.Fatalf("got %q", b)
	}
}

func TestWriteAuthorsFile(t *testing.T) {
	var (
		ctx   = context.Background()
		dir   = t.TempDir()
		names = []string{"Alice", "Bob, Jr.", extract.UnknownAuthor}
	)
	var cases = []struct {
		format Format
		want   string
	}{
		{CSV, "Alice\n\"Bob, Jr.\"\nUnknown Author\n"},
		{Text, "Alice\nBob, Jr.\nUnknown Author\n"},
		{JSON, "[\"Alice\",\"Bob, Jr.\",\"Unknown Author\"]\n"},
	}
	for _, c := range cases {
		t.Run(string(c.format), func(t *testing.T) {
			filename := filepath.Join(dir, "author"+c.format.Ext())
			if err := WriteAuthorsFile(ctx, filename, c.format, names); err != nil {
				t.Fatalf("got %v, want nil", err)
			}
			rc, err := xio.Open(filename)
			if err != nil {
				t.Fatalf("got %v, want nil", err)
			}
			defer rc.Close()
			b, _ := io.ReadAll(rc)
			if string(b) != c.want {
				t.Fatalf("got %q, want %q", b, c.want)
			}
		})
	}
	filename := filepath.Join(dir, "author.xlsx")
	if err := WriteAuthorsFile(ctx, filename, XLSX, names); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	f, err := excelize.OpenFile(filename)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	defer f.Close()
	rows, _ := f.GetRows("author")
	if len(rows) != 4 || rows[0][0] != "author" || rows[3][0] != extract.UnknownAuthor {
		t.Fatalf("got %v", rows)
	}
}
