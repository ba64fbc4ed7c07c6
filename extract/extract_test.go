package extract

import (
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/miku/dblpkit/normal"
	"github.com/miku/dblpkit/schema/dblp"
	"github.com/miku/dblpkit/xmlstream"
	"github.com/sirupsen/logrus"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func mustElement(t *testing.T, s string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil {
		t.Fatalf("cannot parse %q: %v", s, err)
	}
	return doc.Root()
}

func walker(s string) *xmlstream.Walker {
	return xmlstream.NewWalker(strings.NewReader(s), dblp.Tags(dblp.AllRecordTypes),
		xmlstream.WithLogger(quietLogger()))
}

func TestExtract(t *testing.T) {
	var cases = []struct {
		about      string
		input      string
		features   []dblp.Feature
		includeKey bool
		keys       []string
		values     map[string][]string
	}{
		{
			about:    "multiple authors in document order",
			input:    `<article key="k"><author>B</author><author>A</author><year>2001</year></article>`,
			features: []dblp.Feature{dblp.Author, dblp.Year},
			keys:     []string{"author", "year"},
			values: map[string][]string{
				"author": {"B", "A"},
				"year":   {"2001"},
			},
		},
		{
			about:      "key first",
			input:      `<article key="journals/x/Y99"><year>1999</year></article>`,
			features:   []dblp.Feature{dblp.Year},
			includeKey: true,
			keys:       []string{"key", "year"},
			values: map[string][]string{
				"key":  {"journals/x/Y99"},
				"year": {"1999"},
			},
		},
		{
			about:    "missing feature is present but empty",
			input:    `<article><title>T</title></article>`,
			features: []dblp.Feature{dblp.Title, dblp.Pages},
			keys:     []string{"title", "pages"},
			values: map[string][]string{
				"title": {"T"},
				"pages": {},
			},
		},
		{
			about:    "pages are counted",
			input:    `<article><pages>12-15</pages></article>`,
			features: []dblp.Feature{dblp.Pages},
			keys:     []string{"pages"},
			values:   map[string][]string{"pages": {"4"}},
		},
		{
			about:    "unparseable pages are dropped",
			input:    `<article><pages>i-xii</pages></article>`,
			features: []dblp.Feature{dblp.Pages},
			keys:     []string{"pages"},
			values:   map[string][]string{"pages": {}},
		},
		{
			about:    "title starting with markup",
			input:    `<article><title><i>Drosophila</i> genetics.</title></article>`,
			features: []dblp.Feature{dblp.Title},
			keys:     []string{"title"},
			values:   map[string][]string{"title": {"Drosophila genetics."}},
		},
		{
			about:    "title with inline markup keeps leading text",
			input:    `<article><title>On <i>E. coli</i></title></article>`,
			features: []dblp.Feature{dblp.Title},
			keys:     []string{"title"},
			values:   map[string][]string{"title": {"On "}},
		},
		{
			about:    "empty elements are dropped",
			input:    `<article><author></author><author>A</author></article>`,
			features: []dblp.Feature{dblp.Author},
			keys:     []string{"author"},
			values:   map[string][]string{"author": {"A"}},
		},
		{
			about:    "only direct children",
			input:    `<article><note><year>1900</year></note></article>`,
			features: []dblp.Feature{dblp.Year},
			keys:     []string{"year"},
			values:   map[string][]string{"year": {}},
		},
		{
			about:    "duplicate features collapse",
			input:    `<article><year>1999</year></article>`,
			features: []dblp.Feature{dblp.Year, dblp.Year},
			keys:     []string{"year"},
			values:   map[string][]string{"year": {"1999"}},
		},
	}
	for _, c := range cases {
		t.Run(c.about, func(t *testing.T) {
			rec := Extract(mustElement(t, c.input), c.features, c.includeKey)
			if !reflect.DeepEqual(rec.Keys, c.keys) {
				t.Fatalf("keys: got %v, want %v", rec.Keys, c.keys)
			}
			if !reflect.DeepEqual(rec.Values, c.values) {
				t.Fatalf("values: got %v, want %v", rec.Values, c.values)
			}
		})
	}
}

func TestExtractorNormalizer(t *testing.T) {
	x := &Extractor{Normalizer: normal.Whitespace}
	rec := x.Extract(mustElement(t, "<www><title>  a\n  b </title></www>"), []dblp.Feature{dblp.Title}, false)
	if got := rec.Get("title"); len(got) != 1 || got[0] != "a b" {
		t.Fatalf("got %q, want [a b]", got)
	}
}

func TestRecordMarshalJSON(t *testing.T) {
	rec := Extract(mustElement(t, `<article key="k"><year>2020</year><author>Z</author></article>`),
		[]dblp.Feature{dblp.Year, dblp.Author, dblp.Pages}, true)
	b, err := rec.MarshalJSON()
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	want := `{"key":["k"],"year":["2020"],"author":["Z"],"pages":[]}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
}

func TestProcess(t *testing.T) {
	input := `<dblp>
<article key="a1"><author>A</author><title>T1</title><year>2020</year><pages>12-15</pages></article>
<inproceedings key="i1"><author>B</author><title>T2</title><year>2021</year></inproceedings>
<www key="w1"><title>Home</title></www>
</dblp>`
	var (
		filter   = dblp.NewTypeSet(dblp.Article, dblp.Inproceedings)
		features = []dblp.Feature{dblp.Title, dblp.Author, dblp.Year, dblp.Pages}
	)
	records, stats, err := Process(walker(input), filter, features, true, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if got := records[0].Get("pages"); len(got) != 1 || got[0] != "4" {
		t.Fatalf("got %v, want [4]", got)
	}
	if records[1].Key() != "i1" {
		t.Fatalf("got %v, want i1", records[1].Key())
	}
	if stats.Full != 1 || stats.Partial != 1 {
		t.Fatalf("got full=%d partial=%d, want 1 and 1", stats.Full, stats.Partial)
	}
	want := map[string]int{"title": 2, "author": 2, "year": 2, "pages": 1}
	if !reflect.DeepEqual(stats.Features, want) {
		t.Fatalf("got %v, want %v", stats.Features, want)
	}
	if _, ok := stats.Features[KeyColumn]; ok {
		t.Fatalf("key must not be counted")
	}
	if got, want := stats.String(), "total=2 full=1 partial=1 title=2 author=2 year=2 pages=1"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestProcessCountsValues(t *testing.T) {
	input := `<dblp>
<article key="a1"><author>A</author><author>B</author><author>C</author><title>T</title></article>
<article key="a2"><author>D</author><author></author><title>U</title></article>
</dblp>`
	features := []dblp.Feature{dblp.Author, dblp.Title}
	_, stats, err := Process(walker(input), dblp.NewTypeSet(dblp.Article), features, false,
		WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	want := map[string]int{"author": 4, "title": 2}
	if !reflect.DeepEqual(stats.Features, want) {
		t.Fatalf("got %v, want %v", stats.Features, want)
	}
	if got, want := stats.String(), "total=2 full=2 partial=0 author=4 title=2"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestProcessEmpty(t *testing.T) {
	records, stats, err := Process(walker("<dblp></dblp>"), dblp.NewTypeSet(dblp.Article),
		[]dblp.Feature{dblp.Title}, false)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if len(records) != 0 || stats.Total() != 0 {
		t.Fatalf("got %d records, stats %v", len(records), stats)
	}
	if stats.Features["title"] != 0 {
		t.Fatalf("got %v", stats.Features)
	}
}

func TestProcessSinceAndLimit(t *testing.T) {
	input := `<dblp>
<article key="old" mdate="2010-05-01"><title>1</title></article>
<article key="new" mdate="2020-05-01"><title>2</title></article>
<article key="nodate"><title>3</title></article>
<article key="newer" mdate="2021-05-01"><title>4</title></article>
</dblp>`
	var (
		filter   = dblp.NewTypeSet(dblp.Article)
		features = []dblp.Feature{dblp.Title}
		since    = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	var cases = []struct {
		about string
		opts  []ProcessOption
		keys  []string
	}{
		{"all", nil, []string{"old", "new", "nodate", "newer"}},
		{"since", []ProcessOption{WithSince(since)}, []string{"new", "nodate", "newer"}},
		{"limit", []ProcessOption{WithLimit(2)}, []string{"old", "new"}},
		{"since and limit", []ProcessOption{WithSince(since), WithLimit(1)}, []string{"new"}},
	}
	for _, c := range cases {
		t.Run(c.about, func(t *testing.T) {
			opts := append([]ProcessOption{WithLogger(quietLogger())}, c.opts...)
			records, _, err := Process(walker(input), filter, features, true, opts...)
			if err != nil {
				t.Fatalf("got %v, want nil", err)
			}
			var keys []string
			for _, r := range records {
				keys = append(keys, r.Key())
			}
			if !reflect.DeepEqual(keys, c.keys) {
				t.Fatalf("got %v, want %v", keys, c.keys)
			}
		})
	}
}

// countingSource wraps a source and counts releases.
type countingSource struct {
	Source
	released int
}

func (s *countingSource) Release(node *etree.Element) {
	s.released++
	s.Source.Release(node)
}

func TestProcessReleasesEveryNode(t *testing.T) {
	input := `<dblp><article/><book/><www/><phdthesis/></dblp>`
	src := &countingSource{Source: walker(input)}
	records, _, err := Process(src, dblp.NewTypeSet(dblp.Book), []dblp.Feature{dblp.Title}, false)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if src.released != 4 {
		t.Fatalf("got %d releases, want 4", src.released)
	}
}

func TestCollectAuthors(t *testing.T) {
	input := `<dblp>
<article><author>Bob</author><author>Alice</author></article>
<inproceedings><author>Alice</author><author></author></inproceedings>
<book><author>Carol</author></book>
<www><author>Dave</author></www>
<proceedings><editor>Eve</editor><author>Frank</author></proceedings>
</dblp>`
	set, err := CollectAuthors(walker(input))
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if set.Len() != 4 {
		t.Fatalf("got %d authors, want 4", set.Len())
	}
	if !set.Has("") {
		t.Fatalf("empty author missing")
	}
	want := []string{"Alice", "Bob", "Carol", UnknownAuthor}
	if got := set.Sorted(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
