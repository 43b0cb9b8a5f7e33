package filelock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockUnlock(t *testing.T) {
	lock := NewFileLock(filepath.Join(t.TempDir(), "summary.lock"))
	require.NoError(t, lock.Lock())
	require.NoError(t, lock.Unlock())
}

func TestAtomicWriteCreatesDirectoryAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "summaries", "summary_task_3.json")
	require.NoError(t, AtomicWrite(path, []byte(`{"task_id":3}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"task_id":3}`, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "merged_summary.json")
	for i := 0; i < 3; i++ {
		require.NoError(t, AtomicWrite(path, []byte(fmt.Sprintf("v%d", i))))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "temp file %s left behind", e.Name())
	}
	data, _ := os.ReadFile(path)
	assert.Equal(t, "v2", string(data))
}

func TestConcurrentLockAndWriteNeverInterleaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary_task_0.json")

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := map[string]any{"task_id": 0, "writer": i, "pad": strings.Repeat("x", 4096*(i+1))}
			data, _ := json.Marshal(payload)
			assert.NoError(t, LockAndWrite(path, data))
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded), "file must hold exactly one complete document")
	assert.FileExists(t, path+".lock")
}
