package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns a fresh instance of every Store implementation so the
// contract tests run against all of them.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	file, err := OpenFile(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": sqlite,
	}
}

func TestStore_SetGet(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok := store.Get("contacts.host.request.message")
			assert.False(t, ok, "missing key should not exist")

			require.NoError(t, store.Set("contacts.host.request.message", "hello"))
			value, ok := store.Get("contacts.host.request.message")
			require.True(t, ok)
			assert.Equal(t, "hello", value)

			// Overwrite
			require.NoError(t, store.Set("contacts.host.request.message", "updated"))
			value, _ = store.Get("contacts.host.request.message")
			assert.Equal(t, "updated", value)
		})
	}
}

func TestStore_DeleteSubtree(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set("contacts.a.request.message", "m"))
			require.NoError(t, store.Set("contacts.a.request.nickname", "n"))
			require.NoError(t, store.Set("contacts.a.nickname", "keepme"))
			require.NoError(t, store.Set("contacts.ab.request.message", "other"))

			require.NoError(t, store.Delete("contacts.a.request"))

			_, ok := store.Get("contacts.a.request.message")
			assert.False(t, ok, "descendant should be deleted")
			_, ok = store.Get("contacts.a.request.nickname")
			assert.False(t, ok, "descendant should be deleted")

			_, ok = store.Get("contacts.a.nickname")
			assert.True(t, ok, "sibling outside subtree must survive")
			_, ok = store.Get("contacts.ab.request.message")
			assert.True(t, ok, "prefix-similar key must survive")
		})
	}
}

func TestStore_List(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set("contacts.b.request.message", "1"))
			require.NoError(t, store.Set("contacts.a.request.message", "2"))
			require.NoError(t, store.Set("contactRequests.blacklist", "[]"))

			keys := store.List("contacts")
			assert.Equal(t, []string{
				"contacts.a.request.message",
				"contacts.b.request.message",
			}, keys, "list must be sorted and scoped to the prefix")

			all := store.List("")
			assert.Len(t, all, 3)
		})
	}
}

func TestFile_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	first, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, first.Set("contacts.host.request.nickname", "Alice"))
	require.NoError(t, first.Set("contactRequests.blacklist", `["badhost"]`))

	second, err := OpenFile(path)
	require.NoError(t, err)
	value, ok := second.Get("contacts.host.request.nickname")
	require.True(t, ok)
	assert.Equal(t, "Alice", value)
	value, ok = second.Get("contactRequests.blacklist")
	require.True(t, ok)
	assert.Equal(t, `["badhost"]`, value)
}

func TestFile_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenFile(path)
	assert.Error(t, err)
}

func TestSQLite_PersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")

	first, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Set("contacts.host.request.date", "2026-01-02T15:04:05Z"))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	defer second.Close()

	value, ok := second.Get("contacts.host.request.date")
	require.True(t, ok)
	assert.Equal(t, "2026-01-02T15:04:05Z", value)
}
