package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"mem":  NewMemStore(),
		"file": fs,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var out payload
			found, err := s.Get(KeyServers, &out)
			require.NoError(t, err)
			assert.False(t, found)

			in := payload{Name: "echo", Count: 2}
			require.NoError(t, s.Set(KeyServers, in))

			found, err = s.Get(KeyServers, &out)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, in, out)

			require.NoError(t, s.Delete(KeyServers))
			found, err = s.Get(KeyServers, &out)
			require.NoError(t, err)
			assert.False(t, found)

			// Deleting again is not an error.
			require.NoError(t, s.Delete(KeyServers))
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, fs.Set(KeyStatus, payload{Name: "srv", Count: 1}))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)

	var out payload
	found, err := reopened.Get(KeyStatus, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "srv", out.Name)

	// Value lands as one JSON file under the directory.
	_, err = os.Stat(filepath.Join(dir, KeyStatus+".json"))
	assert.NoError(t, err)
}
