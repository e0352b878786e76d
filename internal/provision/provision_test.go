package provision

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logrus.SetLevel(logrus.ErrorLevel)
}

// buildZip returns an in-memory zip containing files (name -> content).
// Names ending in "/" become directory entries.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		if !strings.HasSuffix(name, "/") {
			_, err = w.Write([]byte(content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// countingServer serves body for every request and counts hits.
func countingServer(t *testing.T, status int, body []byte) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func newTestProvisioner(root string) *Provisioner {
	return New(root, NewHTTPFetcher(10*time.Second))
}

func TestEnsure_File(t *testing.T) {
	jar := []byte("PK fake jar bytes")
	server, hits := countingServer(t, http.StatusOK, jar)
	root := filepath.Join(t.TempDir(), "cache")

	p := newTestProvisioner(root)
	res := PlantUMLJar(server.URL+"/plantuml.jar", "")

	path, err := p.Ensure(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "plantuml.jar"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, jar, data)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	// memoized within the process
	again, err := p.Ensure(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	// a fresh process reuses the populated cache without touching the network
	fresh := newTestProvisioner(root)
	cached, err := fresh.Ensure(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, path, cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	// no temp files left behind
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEnsure_FileEmptyIsRedownloaded(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK, []byte("jar"))
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "plantuml.jar"), nil, 0644))

	_, err := newTestProvisioner(root).Ensure(context.Background(), PlantUMLJar(server.URL, ""))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestEnsure_FileChecksum(t *testing.T) {
	jar := []byte("pinned jar")
	sum := sha256.Sum256(jar)
	good := hex.EncodeToString(sum[:])
	server, _ := countingServer(t, http.StatusOK, jar)

	t.Run("match", func(t *testing.T) {
		root := t.TempDir()
		_, err := newTestProvisioner(root).Ensure(context.Background(), PlantUMLJar(server.URL, strings.ToUpper(good)))
		assert.NoError(t, err)
	})

	t.Run("mismatch", func(t *testing.T) {
		root := t.TempDir()
		bad := strings.Repeat("0", 64)
		_, err := newTestProvisioner(root).Ensure(context.Background(), PlantUMLJar(server.URL, bad))

		var sumErr *ChecksumError
		require.True(t, errors.As(err, &sumErr))
		assert.Equal(t, bad, sumErr.Expected)
		assert.Equal(t, good, sumErr.Actual)
		assert.NoFileExists(t, filepath.Join(root, "plantuml.jar"))
	})
}

func TestEnsure_FetchFailureIsMemoized(t *testing.T) {
	server, hits := countingServer(t, http.StatusNotFound, nil)
	p := newTestProvisioner(t.TempDir())
	res := PlantUMLJar(server.URL, "")

	_, err := p.Ensure(context.Background(), res)
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), server.URL)

	_, err = p.Ensure(context.Background(), res)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits), "failures must not be retried")
}

func TestEnsure_ConcurrentCallersShareOneFetch(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK, []byte("jar"))
	p := newTestProvisioner(t.TempDir())
	res := PlantUMLJar(server.URL, "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Ensure(context.Background(), res)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestEnsure_Archive(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"plantuml-stdlib-master/":                    "",
		"plantuml-stdlib-master/README.md":           "readme",
		"plantuml-stdlib-master/stdlib/C4/C4.puml":   "@startuml\n@enduml\n",
		"plantuml-stdlib-master/stdlib/aws/aws.puml": "x",
	})
	server, hits := countingServer(t, http.StatusOK, archive)
	root := t.TempDir()

	res := PlantUMLStdlib(server.URL + "/master.zip")
	path, err := newTestProvisioner(root).Ensure(context.Background(), res)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "plantuml-stdlib", "stdlib"), path)
	assert.FileExists(t, filepath.Join(path, "C4", "C4.puml"))
	assert.NoDirExists(t, filepath.Join(root, "plantuml-stdlib-master"))

	// staging directories are cleaned up
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	cached, err := newTestProvisioner(root).Ensure(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, path, cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestEnsure_ArchiveReplacesStaleTarget(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"plantuml-stdlib-v1/stdlib/C4/C4.puml": "fresh",
	})
	server, _ := countingServer(t, http.StatusOK, archive)
	root := t.TempDir()

	// a target without the stdlib subdirectory does not count as cached
	stale := filepath.Join(root, "plantuml-stdlib", "leftover.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	path, err := newTestProvisioner(root).Ensure(context.Background(), PlantUMLStdlib(server.URL))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(path, "C4", "C4.puml"))
	assert.NoFileExists(t, stale)
}

func TestEnsure_ArchiveLayoutErrors(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		expected string
		found    []string
	}{
		{
			name:     "no directory with prefix",
			files:    map[string]string{"something-else/stdlib/x.puml": "x"},
			expected: "plantuml-stdlib-*",
			found:    []string{"something-else"},
		},
		{
			name:     "missing stdlib subdirectory",
			files:    map[string]string{"plantuml-stdlib-master/docs/x.md": "x"},
			expected: `"stdlib"`,
			found:    []string{"docs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := countingServer(t, http.StatusOK, buildZip(t, tt.files))

			_, err := newTestProvisioner(t.TempDir()).Ensure(context.Background(), PlantUMLStdlib(server.URL))

			var layoutErr *LayoutError
			require.True(t, errors.As(err, &layoutErr), "got %v", err)
			assert.Contains(t, layoutErr.Expected, tt.expected)
			assert.Equal(t, tt.found, layoutErr.Found)
			assert.Contains(t, err.Error(), "plantuml-stdlib")
		})
	}
}

func TestEnsure_ArchiveRejectsTraversal(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"../escape.txt": "nope",
	})
	server, _ := countingServer(t, http.StatusOK, archive)
	root := t.TempDir()

	_, err := newTestProvisioner(root).Ensure(context.Background(), PlantUMLStdlib(server.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to extract plantuml-stdlib")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "escape.txt"))
}

func TestEnsure_ArchiveRejectsOversizedEntry(t *testing.T) {
	previous := maxEntrySize
	maxEntrySize = 8
	t.Cleanup(func() { maxEntrySize = previous })

	archive := buildZip(t, map[string]string{
		"plantuml-stdlib-master/stdlib/C4/C4.puml": "@startuml\n@enduml\n",
	})
	server, _ := countingServer(t, http.StatusOK, archive)
	root := t.TempDir()

	_, err := newTestProvisioner(root).Ensure(context.Background(), PlantUMLStdlib(server.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to extract plantuml-stdlib")
	assert.Contains(t, err.Error(), "exceeds 8 bytes")
	assert.NoDirExists(t, filepath.Join(root, "plantuml-stdlib"))
}

func TestEnsure_ArchiveNotAZip(t *testing.T) {
	server, _ := countingServer(t, http.StatusOK, []byte("<html>not a zip</html>"))

	_, err := newTestProvisioner(t.TempDir()).Ensure(context.Background(), PlantUMLStdlib(server.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to extract plantuml-stdlib")
}

func TestHTTPFetcher_SendsUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	data, err := NewHTTPFetcher(0).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	assert.True(t, strings.HasPrefix(got, "diagramcheck/"), "user agent %q", got)
}

func TestHTTPFetcher_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), url)
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 0, fetchErr.StatusCode)
}

func TestClear(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK, []byte("jar"))
	root := t.TempDir()
	p := newTestProvisioner(root)
	res := PlantUMLJar(server.URL, "")

	_, err := p.Ensure(context.Background(), res)
	require.NoError(t, err)

	n, err := p.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, filepath.Join(root, "plantuml.jar"))

	// memo is reset, so the next Ensure downloads again
	_, err = p.Ensure(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestClear_MissingRoot(t *testing.T) {
	n, err := newTestProvisioner(filepath.Join(t.TempDir(), "absent")).Clear()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
