package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// exercisePolicyMerge layers raw policy documents the way Load does, but
// without touching the filesystem or environment.
func exercisePolicyMerge(tb testing.TB, docs ...string) *Policy {
	tb.Helper()
	data := make([][]byte, 0, len(docs))
	for _, doc := range docs {
		data = append(data, []byte(doc))
	}
	policy, err := loadFromBytes(data)
	require.NoError(tb, err)
	return policy
}

// TestPolicyMerging defines the rules for how policy layering works:
// later documents win field by field, absent fields keep their defaults.
func TestPolicyMerging(t *testing.T) {
	t.Parallel()

	t.Run("empty keeps defaults", func(t *testing.T) {
		t.Parallel()
		p := exercisePolicyMerge(t)
		require.Equal(t, Default(), *p)
	})

	t.Run("later scalar wins", func(t *testing.T) {
		t.Parallel()
		p := exercisePolicyMerge(t,
			`{"max_tokens": 64000}`,
			`{"max_tokens": 200000}`,
		)
		require.Equal(t, 200000, p.MaxTokens)
	})

	t.Run("explicit false overrides a true default", func(t *testing.T) {
		t.Parallel()
		p := exercisePolicyMerge(t,
			`{"window": {"preserve_initial_task": false}}`,
		)
		require.False(t, p.Window.PreserveInitialTask)
		require.True(t, p.Window.PreserveSystem, "untouched sibling keeps its default")
	})

	t.Run("nested partial leaves siblings intact", func(t *testing.T) {
		t.Parallel()
		p := exercisePolicyMerge(t,
			`{"truncation": {"max_length": 8000}}`,
			`{"truncation": {"head_length": 6000, "tail_length": 2000}}`,
		)
		require.Equal(t, 8000, p.Truncation.MaxLength)
		require.Equal(t, 6000, p.Truncation.HeadLength)
		require.Equal(t, 2000, p.Truncation.TailLength)
		require.True(t, p.Truncation.ShowNotice)
	})

	t.Run("thresholds layer independently", func(t *testing.T) {
		t.Parallel()
		p := exercisePolicyMerge(t,
			`{"warning_threshold": 0.6, "compaction_threshold": 0.75}`,
			`{"compaction_threshold": 0.9}`,
		)
		require.InDelta(t, 0.6, p.WarningThreshold, 1e-9)
		require.InDelta(t, 0.9, p.CompactionThreshold, 1e-9)
	})

	t.Run("malformed document errors", func(t *testing.T) {
		t.Parallel()
		_, err := loadFromBytes([][]byte{[]byte(`{"max_tokens": `)})
		require.Error(t, err)
	})
}

func TestLoad_LayersFilesAndSkipsMissing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	global := filepath.Join(dir, "global.json")
	project := filepath.Join(dir, "project.json")

	require.NoError(t, os.WriteFile(global,
		[]byte(`{"max_tokens": 64000, "window": {"size": 30}}`), 0o644))
	require.NoError(t, os.WriteFile(project,
		[]byte(`{"window": {"size": 20, "strict": true}}`), 0o644))

	p, err := Load(global, filepath.Join(dir, "missing.json"), project)
	require.NoError(t, err)

	require.Equal(t, 64000, p.MaxTokens)
	require.Equal(t, 20, p.Window.Size)
	require.True(t, p.Window.Strict)
	require.True(t, p.Window.PreserveSystem)
}

func TestLoad_NoFilesYieldsDefaults(t *testing.T) {
	t.Parallel()

	p, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), *p)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(envMaxTokens, "99000")
	t.Setenv(envWarningThreshold, "0.55")

	p, err := Load()
	require.NoError(t, err)
	require.Equal(t, 99000, p.MaxTokens)
	require.InDelta(t, 0.55, p.WarningThreshold, 1e-9)
}

func TestLoad_EnvOverrideMalformed(t *testing.T) {
	t.Setenv(envMaxTokens, "not-a-number")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), envMaxTokens)
}

func TestLoad_RejectsInvalidPolicy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_tokens": -5}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "validating policy")
}
