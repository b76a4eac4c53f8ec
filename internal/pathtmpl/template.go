// Package pathtmpl generalizes concrete request paths into parameterized
// templates so repeated calls to the same logical endpoint collapse into one
// documented path.
package pathtmpl

import (
	"strconv"
	"strings"
)

// Template replaces variable segments of a concrete path with named
// placeholders. A purely numeric segment always becomes a placeholder, even
// on its first occurrence; an explicitly marked segment like ":name" becomes
// "{name}". Applying Template to an already-templated path is a no-op.
//
// Two distinct resources sharing a numeric-ID position at the same depth
// collapse into one templated endpoint. That precision/recall tradeoff is
// accepted, not a bug.
func Template(path string) string {
	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	numeric := 0
	for i, seg := range segments {
		switch {
		case seg == "":
			continue
		case strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
			// Already templated.
		case strings.HasPrefix(seg, ":") && len(seg) > 1:
			segments[i] = "{" + seg[1:] + "}"
		case isNumeric(seg):
			numeric++
			segments[i] = "{" + placeholderName(numeric) + "}"
		}
	}

	templated := strings.Join(segments, "/")
	if !strings.HasPrefix(templated, "/") {
		templated = "/" + templated
	}
	return templated
}

// ParamNames returns the placeholder names of a templated path, in order.
func ParamNames(templated string) []string {
	var names []string
	for _, seg := range strings.Split(templated, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") && len(seg) > 2 {
			names = append(names, seg[1:len(seg)-1])
		}
	}
	return names
}

// placeholderName keeps parameter names unique within one path: the first
// numeric segment is {id}, later ones {id2}, {id3}, and so on.
func placeholderName(n int) string {
	if n == 1 {
		return "id"
	}
	return "id" + strconv.Itoa(n)
}

func isNumeric(seg string) bool {
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return seg != ""
}
