package extract

import (
	"bytes"

	"github.com/miku/dblpkit/schema/dblp"
	"github.com/segmentio/encoding/json"
)

// KeyColumn is the name of the record key, taken from the key attribute.
const KeyColumn = "key"

// Record maps feature names to values, in document order. Keys keeps the
// column order: the key first, if requested, then the features in the order
// they were requested. Every key is present, even if it has no values.
type Record struct {
	Keys   []string
	Values map[string][]string
}

func newRecord(size int) Record {
	return Record{
		Keys:   make([]string, 0, size),
		Values: make(map[string][]string, size),
	}
}

func (r *Record) init(name string) {
	r.Keys = append(r.Keys, name)
	r.Values[name] = []string{}
}

// Get returns the values for a feature.
func (r Record) Get(name string) []string {
	return r.Values[name]
}

// Key returns the record key or the empty string.
func (r Record) Key() string {
	if vs := r.Values[KeyColumn]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Complete reports whether every given feature has at least one value.
func (r Record) Complete(features []dblp.Feature) bool {
	for _, f := range features {
		if len(r.Values[string(f)]) == 0 {
			return false
		}
	}
	return true
}

// MarshalJSON renders the record as an object, keeping the column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		buf.WriteByte(':')
		vs := r.Values[k]
		if vs == nil {
			vs = []string{}
		}
		if b, err = json.Marshal(vs); err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
