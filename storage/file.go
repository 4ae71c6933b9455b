package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// File persists the key set as a single JSON object, rewritten on every
// mutation. This matches the write-through settings-file model of the
// desktop client: no mutation is considered applied until it is on disk.
type File struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// OpenFile opens or creates the settings file at path.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logrus.WithFields(logrus.Fields{
			"function": "OpenFile",
			"path":     path,
		}).Info("Creating new settings file")
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings file %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &f.values); err != nil {
			return nil, fmt.Errorf("parse settings file %s: %w", path, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "OpenFile",
		"path":     path,
		"keys":     len(f.values),
	}).Debug("Settings file loaded")
	return f, nil
}

// Get implements Store.Get.
func (f *File) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	return value, ok
}

// Set implements Store.Set.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f.flush()
}

// Delete implements Store.Delete.
func (f *File) Delete(prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := false
	for key := range f.values {
		if underPrefix(key, prefix) {
			delete(f.values, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.flush()
}

// List implements Store.List.
func (f *File) List(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for key := range f.values {
		if underPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// flush rewrites the whole file. Callers hold f.mu.
func (f *File) flush() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write settings file %s: %w", f.path, err)
	}
	return nil
}
