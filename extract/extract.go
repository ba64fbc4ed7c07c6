// Package extract turns record elements into feature maps and keeps
// statistics about how complete the records are.
package extract

import (
	"github.com/beevik/etree"
	"github.com/miku/dblpkit/normal"
	"github.com/miku/dblpkit/schema/dblp"
)

// rule computes the value of a feature from its element.
type rule func(el *etree.Element) string

// rules for features that need more than their direct text.
var rules = map[dblp.Feature]rule{
	dblp.Title: titleText,
	dblp.Pages: pageCount,
}

// titleText uses the direct text, or, if a title starts with markup like
// <i>, the serialized element without tags.
func titleText(el *etree.Element) string {
	if s := el.Text(); s != "" {
		return s
	}
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return normal.StripTags(s)
}

func pageCount(el *etree.Element) string {
	return normal.CountPages(el.Text())
}

func directText(el *etree.Element) string {
	return el.Text()
}

// Extractor extracts features from record elements. The zero value is
// ready to use.
type Extractor struct {
	// Normalizer is applied to every value after the feature rule, if set.
	Normalizer normal.Normalizer
}

// Extract collects the requested features from the direct children of a
// record element. The result contains every requested feature, even if
// the element has no such child. Empty values are dropped.
func (x *Extractor) Extract(node *etree.Element, features []dblp.Feature, includeKey bool) Record {
	size := len(features)
	if includeKey {
		size++
	}
	rec := newRecord(size)
	if includeKey {
		rec.init(KeyColumn)
		if attr := node.SelectAttr(KeyColumn); attr != nil && attr.Value != "" {
			rec.Values[KeyColumn] = append(rec.Values[KeyColumn], attr.Value)
		}
	}
	requested := make(map[dblp.Feature]bool, len(features))
	for _, f := range features {
		if requested[f] {
			continue
		}
		requested[f] = true
		rec.init(string(f))
	}
	for _, child := range node.ChildElements() {
		f := dblp.Feature(child.Tag)
		if !requested[f] {
			continue
		}
		text := x.value(f, child)
		if text == "" {
			continue
		}
		rec.Values[child.Tag] = append(rec.Values[child.Tag], text)
	}
	return rec
}

func (x *Extractor) value(f dblp.Feature, el *etree.Element) string {
	fn, ok := rules[f]
	if !ok {
		fn = directText
	}
	s := fn(el)
	if x.Normalizer != nil && s != "" {
		s = x.Normalizer.Normalize(s)
	}
	return s
}

var defaultExtractor = &Extractor{}

// Extract runs the default extractor.
func Extract(node *etree.Element, features []dblp.Feature, includeKey bool) Record {
	return defaultExtractor.Extract(node, features, includeKey)
}
