package schema

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// replaceFile swaps the file in one rename, as editors do
func replaceFile(t *testing.T, path string, data []byte) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, data, 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users:\n  name: string\n"), 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	results := make(chan error, 10)
	w, err := NewWatcher(path, reg, WatcherOptions{
		Logger:   zaptest.NewLogger(t),
		Delay:    20 * time.Millisecond,
		OnReload: func(err error) {
			select {
			case results <- err:
			default:
			}
		},
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	replaceFile(t, path, []byte("users:\n  name: string\ntasks:\n  title: string\n"))
	assert.Eventually(t, func() bool { return reg.Exists("tasks") }, 5*time.Second, 10*time.Millisecond)

	replaceFile(t, path, []byte("tasks:\n  title: varchar\n"))
	timeout := time.After(5 * time.Second)
	for failed := false; !failed; {
		select {
		case err := <-results:
			failed = err != nil
		case <-timeout:
			t.Fatal("broken file was not reported")
		}
	}
	assert.Equal(t, []string{"tasks", "users"}, reg.Names(), "a broken file keeps the last good schemas")
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	w, err := NewWatcher(path, NewRegistry(), WatcherOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
