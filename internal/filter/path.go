package filter

import (
	"strconv"
	"strings"
)

// Lookup walks a dot-separated path through a decoded JSON document and
// reports whether the value was present. Map segments index objects and
// numeric segments index arrays, so "trackResponse.shipment.0.package.0"
// reaches the first package of the first shipment. Any unmatched segment
// yields absent; Lookup never panics on malformed documents.
func Lookup(doc any, path string) (any, bool) {
	current := doc
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return nil, false
		}
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}
			current = node[index]
		default:
			return nil, false
		}
	}
	return current, true
}

// LookupString is Lookup restricted to string values; non-string matches
// count as absent.
func LookupString(doc any, path string) (string, bool) {
	value, ok := Lookup(doc, path)
	if !ok {
		return "", false
	}
	text, ok := value.(string)
	return text, ok
}
