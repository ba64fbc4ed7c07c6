package normal

import "regexp"

var tagRegex = regexp.MustCompile(`<.*?>`)

// StripTags removes anything that looks like a markup tag, e.g. to turn a
// serialized "<title><i>Gamma</i>-Rays</title>" into "Gamma-Rays". Entities
// are left alone.
func StripTags(s string) string {
	return tagRegex.ReplaceAllString(s, "")
}
