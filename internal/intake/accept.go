package intake

import (
	"strings"
)

// Accept is an allow-list in the syntax of the HTML accept attribute:
// comma-separated extensions (".mp3"), exact MIME types ("application/pdf")
// and wildcard types ("audio/*").
type Accept struct {
	raw        string
	extensions map[string]bool
	types      map[string]bool
	prefixes   []string
}

// ParseAccept parses an accept list. An empty list accepts everything.
func ParseAccept(s string) Accept {
	a := Accept{
		raw:        s,
		extensions: make(map[string]bool),
		types:      make(map[string]bool),
	}
	for _, item := range strings.Split(s, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		switch {
		case item == "":
		case strings.HasPrefix(item, "."):
			a.extensions[item] = true
		case strings.HasSuffix(item, "/*"):
			a.prefixes = append(a.prefixes, strings.TrimSuffix(item, "*"))
		default:
			a.types[item] = true
		}
	}
	return a
}

// String returns the list as it was given, for use in an accept attribute.
func (a Accept) String() string { return a.raw }

// Extensions returns the dotted extensions in the list.
func (a Accept) Extensions() []string {
	var out []string
	for _, item := range strings.Split(a.raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if strings.HasPrefix(item, ".") {
			out = append(out, item)
		}
	}
	return out
}

// Matches reports whether a file with the given name and content type is
// allowed. Either the extension or the content type may match.
func (a Accept) Matches(name, contentType string) bool {
	if len(a.extensions) == 0 && len(a.types) == 0 && len(a.prefixes) == 0 {
		return true
	}

	ext := strings.ToLower(name)
	if i := strings.LastIndexByte(ext, '.'); i >= 0 {
		if a.extensions[ext[i:]] {
			return true
		}
	}

	ct := baseType(contentType)
	if ct == "" {
		return false
	}
	if a.types[ct] {
		return true
	}
	for _, p := range a.prefixes {
		if strings.HasPrefix(ct, p) {
			return true
		}
	}
	return false
}
