// Package xmlstream walks huge, loosely valid XML documents one record at
// a time. The document is cut into record elements with a tag splitter,
// each record is parsed into a small element tree, handed to the caller and
// must be released afterwards.
//
//	w := xmlstream.NewWalker(r, []string{"article", "www"})
//	for w.Next() {
//		node := w.Node()
//		// ...
//		w.Release(node)
//	}
//	if err := w.Err(); err != nil {
//		// ...
//	}
package xmlstream

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/beevik/etree"
	"github.com/miku/dblpkit/pproc/record"
	"github.com/sirupsen/logrus"
)

const (
	defaultBufferSize   = 1 << 20 // 1MB, initial scan buffer
	defaultMaxTokenSize = 1 << 26 // 64MB, hard limit for a single record
)

var errNoElement = errors.New("no element in record")

// Stats about a walk.
type Stats struct {
	// Nodes is the number of nodes handed out.
	Nodes int
	// Skipped counts malformed records that were dropped.
	Skipped int
	// Retained is the number of tokens still attached to the document
	// root. Bounded by one, if every node gets released.
	Retained int
}

// Option configures a Walker.
type Option func(*Walker)

// WithMaxTokenSize sets the maximum size of a single record in bytes.
func WithMaxTokenSize(size int) Option {
	return func(w *Walker) {
		if size > 0 {
			w.maxTokenSize = size
		}
	}
}

// WithBufferSize sets the initial size of the scan buffer.
func WithBufferSize(size int) Option {
	return func(w *Walker) {
		if size > 0 {
			w.bufferSize = size
		}
	}
}

// WithStrict enables strict XML parsing of records. A strict walker drops
// more records.
func WithStrict(strict bool) Option {
	return func(w *Walker) {
		w.strict = strict
	}
}

// WithEntities adds named entities, e.g. from a DTD that has been read
// elsewhere. HTML entities are always known.
func WithEntities(entities map[string]string) Option {
	return func(w *Walker) {
		for k, v := range entities {
			w.entities[k] = v
		}
	}
}

// WithLogger sets the logger for skipped records.
func WithLogger(log logrus.FieldLogger) Option {
	return func(w *Walker) {
		if log != nil {
			w.log = log
		}
	}
}

// Walker yields record elements in document order. The DTD and external
// entities are never loaded, unknown entities are kept as literal text.
type Walker struct {
	r            io.Reader
	tags         []string
	splitter     *record.TagSplitter
	scanner      *bufio.Scanner
	root         *etree.Element
	node         *etree.Element
	entities     map[string]string
	strict       bool
	bufferSize   int
	maxTokenSize int
	stats        Stats
	log          logrus.FieldLogger
	err          error
}

// NewWalker creates a walker over the elements with the given tag names.
func NewWalker(r io.Reader, tags []string, opts ...Option) *Walker {
	w := &Walker{
		r:            r,
		tags:         tags,
		root:         etree.NewElement("root"),
		entities:     make(map[string]string),
		bufferSize:   defaultBufferSize,
		maxTokenSize: defaultMaxTokenSize,
		log:          logrus.StandardLogger(),
	}
	for k, v := range xml.HTMLEntity {
		w.entities[k] = v
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.maxTokenSize < w.bufferSize {
		w.maxTokenSize = w.bufferSize
	}
	splitter, err := record.NewTagSplitter(tags...)
	if err != nil {
		w.err = err
		return w
	}
	w.splitter = splitter
	w.scanner = bufio.NewScanner(r)
	w.scanner.Buffer(make([]byte, 0, w.bufferSize), w.maxTokenSize)
	w.scanner.Split(splitter.Split)
	return w
}

// Next advances to the next record and reports whether there is one.
func (w *Walker) Next() bool {
	w.node = nil
	if w.err != nil {
		return false
	}
	for w.scanner.Scan() {
		node, err := w.build(w.scanner.Bytes())
		if err != nil {
			w.stats.Skipped++
			w.log.WithError(err).WithField("bytes", len(w.scanner.Bytes())).Warn("skipping malformed record")
			continue
		}
		w.node = node
		w.stats.Nodes++
		return true
	}
	w.err = w.scanner.Err()
	if errors.Is(w.err, bufio.ErrTooLong) {
		w.err = fmt.Errorf("%w: record larger than %d bytes", record.ErrMaxTokenSizeExceeded, w.maxTokenSize)
	}
	return false
}

// Node returns the current record element. The element stays valid until it
// is released.
func (w *Walker) Node() *etree.Element {
	return w.node
}

// Release frees the content of a node and unlinks all nodes preceding it,
// which have been handed out and released before. Every node returned by
// Node must be released, or memory grows with the size of the document.
func (w *Walker) Release(node *etree.Element) {
	if node == nil {
		return
	}
	node.Child = nil
	node.Attr = nil
	parent := node.Parent()
	if parent == nil {
		return
	}
	for node.Index() > 0 {
		parent.RemoveChildAt(0)
	}
}

// Err returns the first non-recoverable error, e.g. from the underlying
// reader or an oversized record.
func (w *Walker) Err() error {
	return w.err
}

// Stats returns counters about the walk so far.
func (w *Walker) Stats() Stats {
	s := w.stats
	if w.splitter != nil {
		s.Skipped += w.splitter.Skipped
	}
	s.Retained = len(w.root.Child)
	return s
}

// build parses a single record into an element attached to the root.
func (w *Walker) build(p []byte) (*etree.Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(p))
	dec.Strict = w.strict
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = w.entities
	var (
		top   *etree.Element
		stack []*etree.Element
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if top != nil {
				w.root.RemoveChild(top)
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var el *etree.Element
			switch {
			case len(stack) > 0:
				el = stack[len(stack)-1].CreateElement(t.Name.Local)
			case top == nil:
				el = w.root.CreateElement(t.Name.Local)
				top = el
			default:
				// Trailing element after the record, ignore.
				continue
			}
			for _, a := range t.Attr {
				el.CreateAttr(a.Name.Local, a.Value)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].CreateText(string(t))
			}
		}
	}
	if top == nil {
		return nil, errNoElement
	}
	return top, nil
}
