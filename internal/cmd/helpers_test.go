package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv is an isolated workspace: config, data tree, summaries, logs and
// history all live under one temp dir.
type testEnv struct {
	dir        string
	config     string
	dataDir    string
	summaryDir string
	historyDB  string
}

func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()
	for _, key := range []string{"ANNOBATCH_TASK_ID", "ANNOBATCH_TASK_COUNT", "SLURM_ARRAY_TASK_ID", "SLURM_ARRAY_TASK_COUNT"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		config:     filepath.Join(dir, "config.yaml"),
		dataDir:    filepath.Join(dir, "data"),
		summaryDir: filepath.Join(dir, "summaries"),
		historyDB:  filepath.Join(dir, "history.db"),
	}
	cfg := fmt.Sprintf(`max_parallel: 2
item_timeout: 10s
progress_every: 1
summary_dir: %s
data_dir: %s
log_dir: %s
log_level: warn
history:
  enabled: true
  db_path: %s
retry:
  attempts: 2
  delay: 0s
%s`, env.summaryDir, env.dataDir, filepath.Join(dir, "logs"), env.historyDB, extra)
	require.NoError(t, os.WriteFile(env.config, []byte(cfg), 0o644))
	return env
}

// writeData creates release_<N>/<organism>/<organism>.gff3 for every pair.
func (e *testEnv) writeData(t *testing.T, layout map[int][]string) {
	t.Helper()
	for rel, orgs := range layout {
		for _, org := range orgs {
			dir := filepath.Join(e.dataDir, fmt.Sprintf("release_%d", rel), org)
			require.NoError(t, os.MkdirAll(dir, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(dir, org+".gff3"), []byte("##gff-version 3\n"), 0o644))
		}
	}
}

// run executes the root command with --config pointing at the env.
func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeCommand(t, append([]string{args[0], "--config", e.config}, args[1:]...)...)
}

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCommand()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
