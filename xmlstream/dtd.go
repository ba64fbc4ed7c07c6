package xmlstream

import (
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	entityDecl = regexp.MustCompile(`<!ENTITY\s+([A-Za-z_][\w.-]*)\s+"([^"]*)"\s*>`)
	charRef    = regexp.MustCompile(`&#(x[0-9a-fA-F]+|[0-9]+);`)
)

// ReadEntities reads the general entity declarations of a DTD, e.g.
// <!ENTITY Auml "&#196;">. Character references in values are resolved,
// parameter entities are ignored.
func ReadEntities(r io.Reader) (map[string]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	entities := make(map[string]string)
	for _, m := range entityDecl.FindAllSubmatch(b, -1) {
		entities[string(m[1])] = resolveCharRefs(string(m[2]))
	}
	return entities, nil
}

func resolveCharRefs(s string) string {
	if !strings.Contains(s, "&#") {
		return s
	}
	return charRef.ReplaceAllStringFunc(s, func(ref string) string {
		var (
			v   = ref[2 : len(ref)-1]
			n   uint64
			err error
		)
		if v[0] == 'x' {
			n, err = strconv.ParseUint(v[1:], 16, 32)
		} else {
			n, err = strconv.ParseUint(v, 10, 32)
		}
		if err != nil {
			return ref
		}
		return string(rune(n))
	})
}
