// Package record splits XML streams into complete elements, without parsing
// the XML.
package record

import (
	"bytes"
	"errors"
)

var (
	ErrMaxTokenSizeExceeded = errors.New("max token size exceeded")
	ErrNoTags               = errors.New("splitter needs at least one tag")
)

// TagSplitter provides a split function that can be used in a bufio.Scanner
// to split on XML elements with one of a given set of names. Bytes between
// elements are dropped. An element that is still open when the next
// element of the set starts is considered broken and dropped as well; this
// keeps a single unclosed element from swallowing the rest of the stream.
//
// Elements of the set are not expected to nest.
type TagSplitter struct {
	// Skipped counts broken elements that have been dropped.
	Skipped int
	tags    map[string]bool
	maxLen  int // longest tag name
}

// NewTagSplitter returns a splitter for the given tag names.
func NewTagSplitter(tags ...string) (*TagSplitter, error) {
	if len(tags) == 0 {
		return nil, ErrNoTags
	}
	s := &TagSplitter{tags: make(map[string]bool)}
	for _, t := range tags {
		if t == "" {
			return nil, ErrNoTags
		}
		s.tags[t] = true
		if len(t) > s.maxLen {
			s.maxLen = len(t)
		}
	}
	return s, nil
}

// Split implements bufio.SplitFunc. The token is a complete element,
// including its start and end tag.
func (s *TagSplitter) Split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil
	}
	start, end, resync := s.findFirstCompleteTag(data)
	switch {
	case start == -1:
		// Nothing that could become an element, drop all of it.
		return len(data), nil, nil
	case end != -1:
		return end, data[start:end], nil
	case resync != -1:
		s.Skipped++
		return resync, nil, nil
	case atEOF:
		// Truncated element at the end of the stream.
		if _, _, complete := s.nextOpenTag(data, start); complete {
			s.Skipped++
		}
		return len(data), nil, nil
	case start > 0:
		// Drop the prefix, so the buffer only holds the pending element.
		return start, nil, nil
	default:
		// Need more data.
		return 0, nil, nil
	}
}

func isValidTagTerminator(ch byte) bool {
	switch ch {
	case '>', ' ', '/', '\n', '\t', '\r':
		return true
	}
	return false
}

// nextOpenTag finds the next start tag of one of the splitter tags,
// beginning at offset i. If the input ends in the middle of a tag name that
// could still become one of ours, the start is returned with complete set
// to false.
func (s *TagSplitter) nextOpenTag(input []byte, i int) (start int, name string, complete bool) {
	for i < len(input) {
		lt := bytes.IndexByte(input[i:], '<')
		if lt == -1 {
			return -1, "", false
		}
		lt += i
		j := lt + 1
		for j < len(input) && !isValidTagTerminator(input[j]) && input[j] != '<' {
			j++
		}
		if j == len(input) {
			// The name may continue in the next chunk of data.
			if j-lt-1 <= s.maxLen {
				return lt, "", false
			}
			return -1, "", false
		}
		if candidate := string(input[lt+1 : j]); s.tags[candidate] {
			return lt, candidate, true
		}
		i = lt + 1
	}
	return -1, "", false
}

// findFirstCompleteTag finds the first complete element. A start of -1
// means, there is no element at all; an end of -1 means, we found a start
// but the element is not complete yet. If the element is interrupted by
// the start of another element, resync points to that start.
func (s *TagSplitter) findFirstCompleteTag(input []byte) (start, end, resync int) {
	start, name, complete := s.nextOpenTag(input, 0)
	if start == -1 {
		return -1, -1, -1
	}
	if !complete {
		return start, -1, -1
	}
	// Find the end of the opening tag.
	openEnd := bytes.IndexByte(input[start:], '>')
	if openEnd == -1 {
		return start, -1, -1
	}
	openEnd += start
	// Check for self-closing tag.
	if input[openEnd-1] == '/' {
		return start, openEnd + 1, -1
	}
	var (
		closeTag = []byte("</" + name + ">")
		closeAt  = bytes.Index(input[openEnd+1:], closeTag)
		limit    = len(input)
	)
	if closeAt != -1 {
		closeAt += openEnd + 1
		limit = closeAt
	}
	// Another record starting before our end tag means, ours is broken.
	if next, _, ok := s.nextOpenTag(input[:limit], openEnd+1); next != -1 && ok {
		return start, -1, next
	}
	if closeAt == -1 {
		return start, -1, -1
	}
	return start, closeAt + len(closeTag), -1
}
