package storage

import "strings"

// Store is a flat settings store with dotted key paths.
type Store interface {
	// Get returns the value stored under key and whether it exists.
	Get(key string) (string, bool)

	// Set writes value under key, creating or overwriting it.
	Set(key, value string) error

	// Delete removes prefix and every key nested beneath it
	// ("a.b" removes "a.b" and "a.b.c", but not "a.bc").
	Delete(prefix string) error

	// List returns the keys at or beneath prefix, sorted. An empty prefix
	// lists every key.
	List(prefix string) []string
}

// underPrefix reports whether key equals prefix or is a dotted descendant
// of it.
func underPrefix(key, prefix string) bool {
	if prefix == "" {
		return true
	}
	return key == prefix || strings.HasPrefix(key, prefix+".")
}
