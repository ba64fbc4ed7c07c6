// Package normal contains the text normalization rules applied to feature
// values.
package normal

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalizer rewrites a single value.
type Normalizer interface {
	Normalize(string) string
}

// NormalizerFunc adapts a plain function.
type NormalizerFunc func(string) string

func (f NormalizerFunc) Normalize(s string) string {
	return f(s)
}

// Pipeline applies a list of normalizers in order.
type Pipeline struct {
	Normalizer []Normalizer
}

func (p *Pipeline) Normalize(s string) string {
	for _, n := range p.Normalizer {
		s = n.Normalize(s)
	}
	return s
}

// Len returns the number of steps in the pipeline.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Normalizer)
}

var (
	// NFC composes characters, the dump mixes precomposed and combining
	// forms in author names.
	NFC = NormalizerFunc(norm.NFC.String)
	// Whitespace replaces newlines and tabs and collapses runs of space.
	Whitespace = NormalizerFunc(CollapseSpace)
)

// ReplaceNewlineAndTab replaces newlines and tabs with a single space each.
func ReplaceNewlineAndTab(s string) string {
	var sb strings.Builder
	for _, c := range s {
		if c == '\n' || c == '\t' {
			sb.WriteString(" ")
		} else {
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

// CollapseSpace turns any run of unicode whitespace into a single space and
// trims the result.
func CollapseSpace(s string) string {
	var (
		sb    strings.Builder
		space bool
	)
	for _, c := range strings.TrimSpace(ReplaceNewlineAndTab(s)) {
		if unicode.IsSpace(c) {
			if !space {
				sb.WriteRune(' ')
			}
			space = true
			continue
		}
		space = false
		sb.WriteRune(c)
	}
	return sb.String()
}
