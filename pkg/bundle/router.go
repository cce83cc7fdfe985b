package bundle

import (
	"strings"
)

// Route resolves an event name of the form "<bundle-prefix>/<handler-id>"
// to its bundle and handler id. ok is false for an empty name, a missing
// separator, or an unknown prefix; callers respond with silent success in
// that case rather than surfacing an error.
func Route(eventName string) (cat Category, handlerID string, ok bool) {
	name := strings.TrimSpace(eventName)
	if name == "" {
		return "", "", false
	}

	prefix, id, found := strings.Cut(name, "/")
	if !found || id == "" {
		return "", "", false
	}

	cat = Category(prefix)
	if _, known := contracts[cat]; !known {
		return "", "", false
	}
	return cat, id, true
}
