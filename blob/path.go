package blob

import (
	"path"
	"strings"
)

// Join builds an object name from prefix and parts using forward slashes,
// ignoring empty elements.
func Join(prefix string, parts ...string) string {
	elems := make([]string, 0, len(parts)+1)
	if p := strings.Trim(prefix, "/"); p != "" {
		elems = append(elems, p)
	}
	for _, part := range parts {
		if p := strings.Trim(part, "/"); p != "" {
			elems = append(elems, p)
		}
	}
	return path.Join(elems...)
}

// Rel returns name relative to prefix. ok is false when name is not inside
// prefix.
func Rel(prefix, name string) (rel string, ok bool) {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return strings.TrimPrefix(name, "/"), name != ""
	}
	rest, found := strings.CutPrefix(name, prefix+"/")
	if !found || rest == "" {
		return "", false
	}
	return rest, true
}
