package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryCommand_NoDatabase(t *testing.T) {
	env := newTestEnv(t, "")

	out, _, err := env.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No history recorded in")
}

func TestHistoryCommand_PartitionsAndItem(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeData(t, map[int][]string{10: {"bad_one", "good"}})
	_, _, err := env.run(t, "run", "--threshold", "0.9", "--", "sh", "-c", "test {organism} = good")
	require.NoError(t, err)

	out, _, err := env.run(t, "history")
	require.NoError(t, err)
	lower := strings.ToLower(out)
	assert.Contains(t, lower, "0/1")
	assert.Contains(t, lower, "50.0%")

	out, _, err = env.run(t, "history", "--item", "bad_one@10")
	require.NoError(t, err)
	assert.Contains(t, out, "release_10/bad_one/bad_one.gff3")
	assert.Contains(t, out, "failed")
	assert.NotContains(t, out, "release_10/good")

	out, _, err = env.run(t, "history", "--item", "good@99")
	require.NoError(t, err)
	assert.Contains(t, out, "No outcomes recorded for good@99")

	out, _, err = env.run(t, "history", "--stage", "gtf")
	require.NoError(t, err)
	assert.Contains(t, out, "No partitions recorded")
}

func TestHistoryCommand_Prune(t *testing.T) {
	env := newTestEnv(t, "")
	env.writeData(t, map[int][]string{10: {"good"}})
	_, _, err := env.run(t, "run", "--", "true")
	require.NoError(t, err)

	out, _, err := env.run(t, "history", "--prune-before", "720h")
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned 0 partition(s)")
	assert.Contains(t, out, "0/1")
}

func TestParseItemKey(t *testing.T) {
	org, rel, err := parseItemKey("homo_sapiens@110")
	require.NoError(t, err)
	assert.Equal(t, "homo_sapiens", org)
	assert.Equal(t, 110, rel)

	for _, bad := range []string{"homo_sapiens", "@110", "homo_sapiens@x"} {
		_, _, err := parseItemKey(bad)
		assert.Error(t, err, bad)
	}
}
