package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/miku/dblpkit/normal"
	"github.com/miku/dblpkit/schema/dblp"
	"github.com/sirupsen/logrus"
)

// Source yields record elements, e.g. a *xmlstream.Walker.
type Source interface {
	Next() bool
	Node() *etree.Element
	Release(*etree.Element)
	Err() error
}

// Stats about an extraction. A record is full, if every requested feature
// has at least one value. Features holds, per feature, the cumulative
// number of non-empty values. The key column is never counted.
type Stats struct {
	Full     int
	Partial  int
	Features map[string]int
	order    []string
}

// NewStats creates empty stats for the given features.
func NewStats(features []dblp.Feature) Stats {
	s := Stats{Features: make(map[string]int, len(features))}
	for _, f := range features {
		if _, ok := s.Features[string(f)]; ok {
			continue
		}
		s.Features[string(f)] = 0
		s.order = append(s.order, string(f))
	}
	return s
}

// Add records a single extracted record.
func (s *Stats) Add(rec Record, features []dblp.Feature) {
	if s.Features == nil {
		*s = NewStats(features)
	}
	if rec.Complete(features) {
		s.Full++
	} else {
		s.Partial++
	}
	for _, name := range s.order {
		s.Features[name] += len(rec.Values[name])
	}
}

// Total number of records.
func (s Stats) Total() int {
	return s.Full + s.Partial
}

// String renders a one line summary, features in request order.
func (s Stats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "total=%d full=%d partial=%d", s.Total(), s.Full, s.Partial)
	for _, name := range s.order {
		fmt.Fprintf(&sb, " %s=%d", name, s.Features[name])
	}
	return sb.String()
}

type processor struct {
	since      time.Time
	limit      int
	normalizer normal.Normalizer
	log        logrus.FieldLogger
}

// ProcessOption configures Process.
type ProcessOption func(*processor)

// WithSince only keeps records with an mdate on or after t. Records without
// a parseable mdate are kept.
func WithSince(t time.Time) ProcessOption {
	return func(p *processor) { p.since = t }
}

// WithLimit stops after n records have been kept, zero means no limit.
func WithLimit(n int) ProcessOption {
	return func(p *processor) { p.limit = n }
}

// WithNormalizer applies a normalizer to every extracted value.
func WithNormalizer(n normal.Normalizer) ProcessOption {
	return func(p *processor) { p.normalizer = n }
}

// WithLogger sets a logger for debug output.
func WithLogger(log logrus.FieldLogger) ProcessOption {
	return func(p *processor) {
		if log != nil {
			p.log = log
		}
	}
}

// mdateLayout is the layout of the mdate attribute.
const mdateLayout = "2006-01-02"

// Process routes the records of src by tag name, extracts the requested
// features from records with a type in filter and collects them together
// with statistics. Records of other known types are skipped, unknown tags
// are ignored. Every node is released, whether it is kept or not.
func Process(src Source, filter dblp.TypeSet, features []dblp.Feature, includeKey bool, opts ...ProcessOption) ([]Record, Stats, error) {
	p := &processor{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(p)
	}
	var (
		x       = &Extractor{Normalizer: p.normalizer}
		stats   = NewStats(features)
		records []Record
		ignored int
	)
	for src.Next() {
		node := src.Node()
		t := dblp.RecordType(node.Tag)
		switch {
		case !dblp.IsRecordType(t):
			ignored++
		case !filter.Has(t):
		case !p.keep(node):
		default:
			rec := x.Extract(node, features, includeKey)
			stats.Add(rec, features)
			records = append(records, rec)
		}
		src.Release(node)
		if p.limit > 0 && len(records) >= p.limit {
			break
		}
	}
	if err := src.Err(); err != nil {
		return records, stats, err
	}
	if ignored > 0 {
		p.log.WithField("count", ignored).Debug("ignored elements with unknown tags")
	}
	return records, stats, nil
}

func (p *processor) keep(node *etree.Element) bool {
	if p.since.IsZero() {
		return true
	}
	v := node.SelectAttrValue("mdate", "")
	if v == "" {
		return true
	}
	t, err := time.Parse(mdateLayout, v)
	if err != nil {
		p.log.WithField("mdate", v).Debug("cannot parse mdate")
		return true
	}
	return !t.Before(p.since)
}
