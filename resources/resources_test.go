package resources

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.com/vocab.json"))
	assert.True(t, IsURL("http://localhost:8080/vocab.json"))
	assert.False(t, IsURL("vocab.json"))
	assert.False(t, IsURL("/tmp/vocab.json"))
	assert.False(t, IsURL("file:///tmp/vocab.json"))
}

func TestReadResource_Local(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"x"}`), 0644))

	contents, err := ReadResource(path)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"x"}`, string(contents))
}

func TestReadResource_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	contents, err := ReadResource(path)
	require.NoError(t, err)
	assert.Empty(t, contents)
}

func TestReadResource_Missing(t *testing.T) {
	_, err := ReadResource(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestReadResource_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/vocab.json" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte("remote"))
		}))
	defer server.Close()

	contents, err := ReadResource(server.URL + "/vocab.json")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(contents))

	_, err = ReadResource(server.URL + "/other.json")
	assert.ErrorContains(t, err, "404")
}

func TestWriteLocked(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.json")
	require.NoError(t, WriteLocked(path, []byte("first")))
	require.NoError(t, WriteLocked(path, []byte("second")))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(contents))

	// Only the target and its lock file remain.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.ElementsMatch(t, []string{"vocab.json", "vocab.json.lock"}, names)
}
