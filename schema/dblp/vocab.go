// Package dblp contains the fixed element vocabulary of the DBLP dump and
// the entity profiles we know how to extract, cf.
// https://dblp.org/xml/dblp.dtd.
package dblp

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnknownProfile = errors.New("unknown profile")

// RecordType is the tag of a top level record element.
type RecordType string

const (
	Article       RecordType = "article"
	Inproceedings RecordType = "inproceedings"
	Proceedings   RecordType = "proceedings"
	Book          RecordType = "book"
	Incollection  RecordType = "incollection"
	PhdThesis     RecordType = "phdthesis"
	MastersThesis RecordType = "mastersthesis"
	WWW           RecordType = "www"
)

// Feature is the tag of a direct child of a record element.
type Feature string

const (
	Address   Feature = "address"
	Author    Feature = "author"
	Booktitle Feature = "booktitle"
	Cdrom     Feature = "cdrom"
	Chapter   Feature = "chapter"
	Cite      Feature = "cite"
	Crossref  Feature = "crossref"
	Editor    Feature = "editor"
	Ee        Feature = "ee"
	Isbn      Feature = "isbn"
	Journal   Feature = "journal"
	Month     Feature = "month"
	Note      Feature = "note"
	Number    Feature = "number"
	Pages     Feature = "pages"
	Publisher Feature = "publisher"
	School    Feature = "school"
	Series    Feature = "series"
	Title     Feature = "title"
	URL       Feature = "url"
	Volume    Feature = "volume"
	Year      Feature = "year"
)

// AllRecordTypes in document order of the DTD.
var AllRecordTypes = []RecordType{
	Article, Inproceedings, Proceedings, Book, Incollection, PhdThesis, MastersThesis, WWW,
}

// AllFeatures in alphabetical order.
var AllFeatures = []Feature{
	Address, Author, Booktitle, Cdrom, Chapter, Cite, Crossref, Editor, Ee, Isbn,
	Journal, Month, Note, Number, Pages, Publisher, School, Series, Title, URL,
	Volume, Year,
}

// AuthorTypes are the record types contributing to the author set.
var AuthorTypes = []RecordType{Article, Book, Incollection, Inproceedings}

var (
	recordTypes = NewTypeSet(AllRecordTypes...)
	features    = make(map[Feature]bool)
)

func init() {
	for _, f := range AllFeatures {
		features[f] = true
	}
}

// IsRecordType reports whether t is one of the known record tags.
func IsRecordType(t RecordType) bool {
	return recordTypes.Has(t)
}

// IsFeature reports whether f is one of the known feature tags.
func IsFeature(f Feature) bool {
	return features[f]
}

// TypeSet is a set of record types.
type TypeSet map[RecordType]struct{}

// NewTypeSet creates a set from the given types.
func NewTypeSet(types ...RecordType) TypeSet {
	s := make(TypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Has returns true, if t is in the set.
func (s TypeSet) Has(t RecordType) bool {
	_, ok := s[t]
	return ok
}

// Tags returns the sorted tag names.
func (s TypeSet) Tags() []string {
	var tags []string
	for t := range s {
		tags = append(tags, string(t))
	}
	sort.Strings(tags)
	return tags
}

// Tags returns the tag names of the given record types, e.g. to configure a
// splitter.
func Tags(types []RecordType) []string {
	tags := make([]string, len(types))
	for i, t := range types {
		tags[i] = string(t)
	}
	return tags
}

// Profile describes one entity extraction: which records to look at and
// which features to keep. An author profile collects the distinct author
// names instead.
type Profile struct {
	Name     string
	Types    []RecordType
	Features []Feature
	Authors  bool
}

// TypeSet returns the record types of the profile as a set.
func (p Profile) TypeSet() TypeSet {
	return NewTypeSet(p.Types...)
}

// Validate checks the profile against the vocabulary.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile without name")
	}
	if len(p.Types) == 0 {
		return fmt.Errorf("profile %s: no record types", p.Name)
	}
	for _, t := range p.Types {
		if !IsRecordType(t) {
			return fmt.Errorf("profile %s: unknown record type %q", p.Name, t)
		}
	}
	if p.Authors {
		return nil
	}
	if len(p.Features) == 0 {
		return fmt.Errorf("profile %s: no features", p.Name)
	}
	for _, f := range p.Features {
		if !IsFeature(f) {
			return fmt.Errorf("profile %s: unknown feature %q", p.Name, f)
		}
	}
	return nil
}

func (p Profile) String() string {
	if p.Authors {
		return fmt.Sprintf("%s [%s] -> distinct authors", p.Name, strings.Join(Tags(p.Types), ", "))
	}
	var fs = make([]string, len(p.Features))
	for i, f := range p.Features {
		fs[i] = string(f)
	}
	return fmt.Sprintf("%s [%s] -> %s", p.Name, strings.Join(Tags(p.Types), ", "), strings.Join(fs, ", "))
}

// Profiles are the built-in entity profiles, in processing order.
var Profiles = []Profile{
	{
		Name:     "article",
		Types:    []RecordType{Article},
		Features: []Feature{Title, Author, Year, Journal, Pages},
	},
	{
		Name:     "publications",
		Types:    AuthorTypes,
		Features: []Feature{Title, Year, Pages},
	},
	{
		Name:     "book",
		Types:    []RecordType{Book},
		Features: []Feature{Title, Author, Publisher, Isbn, Year, Pages},
	},
	{
		// Other features would be volume, isbn and url.
		Name:     "proceedings",
		Types:    []RecordType{Proceedings},
		Features: []Feature{Title, Editor, Year, Booktitle, Series, Publisher},
	},
	{
		Name:     "inproceedings",
		Types:    []RecordType{Inproceedings},
		Features: []Feature{Title, Author, Year, Pages, Booktitle},
	},
	{
		Name:    "author",
		Types:   AuthorTypes,
		Authors: true,
	},
}

// FindProfile returns the profile with the given name from a list of profiles.
func FindProfile(profiles []Profile, name string) (Profile, error) {
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
}
