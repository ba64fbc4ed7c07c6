package extract

import (
	"sort"

	"github.com/miku/dblpkit/schema/dblp"
)

// UnknownAuthor is written in place of an author element without text.
const UnknownAuthor = "Unknown Author"

// AuthorSet is a set of distinct author names. An author element without
// text is stored as the empty string.
type AuthorSet map[string]struct{}

// Add a name.
func (s AuthorSet) Add(name string) {
	s[name] = struct{}{}
}

// Has reports whether the name is in the set.
func (s AuthorSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of distinct names.
func (s AuthorSet) Len() int {
	return len(s)
}

// Sorted returns the names in lexicographic order, with the empty name
// replaced by UnknownAuthor.
func (s AuthorSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		if k == "" {
			k = UnknownAuthor
		}
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// CollectAuthors gathers the distinct author names of all publications in
// src. Only article, book, incollection and inproceedings records count;
// author elements are matched as direct children of a record. Every node is
// released.
func CollectAuthors(src Source) (AuthorSet, error) {
	var (
		set    = make(AuthorSet)
		filter = dblp.NewTypeSet(dblp.AuthorTypes...)
	)
	for src.Next() {
		node := src.Node()
		if filter.Has(dblp.RecordType(node.Tag)) {
			for _, el := range node.SelectElements(string(dblp.Author)) {
				set.Add(el.Text())
			}
		}
		src.Release(node)
	}
	return set, src.Err()
}
