package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestige-mem/vestige/internal/config"
)

func clearVestigeEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VESTIGE_CONFIG_FILE", "VESTIGE_DB_PATH", "VESTIGE_AUTH_TOKEN",
		"VESTIGE_EMBEDDING_MODEL", "VESTIGE_EMBEDDING_DIM", "VESTIGE_COMPRESSED_DIM",
		"VESTIGE_RRF_K", "VESTIGE_KEYWORD_WEIGHT", "VESTIGE_VECTOR_WEIGHT",
		"VESTIGE_TEMPORAL_HALF_LIFE_DAYS", "VESTIGE_DECAY_GRACE_HOURS",
		"VESTIGE_PRUNE_THRESHOLD", "VESTIGE_PROMOTE_THRESHOLD",
		"VESTIGE_STC_BACKWARD_H", "VESTIGE_STC_FORWARD_H", "VESTIGE_TAG_LIFETIME_H",
		"VESTIGE_PRP_THRESHOLD", "VESTIGE_SUPPRESSION_H", "VESTIGE_SESSION_TIMEOUT_MS",
		"VESTIGE_DEBUG",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearVestigeEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "vestige.db", cfg.DBPath)
	assert.Equal(t, 768, cfg.EmbeddingDim)
	assert.Equal(t, 128, cfg.CompressedDim)
	assert.Equal(t, 60, cfg.RRFK)
	assert.Equal(t, 0.5, cfg.KeywordWeight)
	assert.Equal(t, 0.5, cfg.VectorWeight)
	assert.Equal(t, 14.0, cfg.TemporalHalfLifeDays)
	assert.Equal(t, 24.0, cfg.DecayGraceHours)
	assert.Equal(t, 0.05, cfg.PruneThreshold)
	assert.Equal(t, 0.8, cfg.PromoteThreshold)
	assert.Equal(t, 9.0, cfg.STCBackwardHours)
	assert.Equal(t, 2.0, cfg.STCForwardHours)
	assert.Equal(t, 12.0, cfg.TagLifetimeHours)
	assert.Equal(t, 0.7, cfg.PRPThreshold)
	assert.Equal(t, 24.0, cfg.SuppressionHours)
	assert.Equal(t, 1800000, cfg.SessionTimeoutMS)
	assert.False(t, cfg.Debug)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearVestigeEnv(t)
	t.Setenv("VESTIGE_DB_PATH", "/tmp/custom.db")
	t.Setenv("VESTIGE_RRF_K", "30")
	t.Setenv("VESTIGE_PRUNE_THRESHOLD", "0.1")
	t.Setenv("VESTIGE_DEBUG", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.db", cfg.DBPath)
	assert.Equal(t, 30, cfg.RRFK)
	assert.Equal(t, 0.1, cfg.PruneThreshold)
	assert.True(t, cfg.Debug)
}

func TestLoad_MalformedNumericEnvFallsBackToDefault(t *testing.T) {
	clearVestigeEnv(t)
	t.Setenv("VESTIGE_RRF_K", "not-a-number")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.RRFK)
}

func TestLoad_YAMLFileOverlay(t *testing.T) {
	clearVestigeEnv(t)

	path := filepath.Join(t.TempDir(), "vestige.yaml")
	err := os.WriteFile(path, []byte("rrf_k: 42\nprune_threshold: 0.2\n"), 0o600)
	require.NoError(t, err)
	t.Setenv("VESTIGE_CONFIG_FILE", path)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.RRFK)
	assert.Equal(t, 0.2, cfg.PruneThreshold)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearVestigeEnv(t)

	path := filepath.Join(t.TempDir(), "vestige.yaml")
	err := os.WriteFile(path, []byte("rrf_k: 42\n"), 0o600)
	require.NoError(t, err)
	t.Setenv("VESTIGE_CONFIG_FILE", path)
	t.Setenv("VESTIGE_RRF_K", "99")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.RRFK)
}

func TestLoad_MissingYAMLFileIsNotAnError(t *testing.T) {
	clearVestigeEnv(t)
	t.Setenv("VESTIGE_CONFIG_FILE", filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.RRFK)
}

func TestWatchFile_PicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vestige.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rrf_k: 10\n"), 0o600))

	base := config.Config{RRFK: 10}
	w, err := config.WatchFile(base, path)
	require.NoError(t, err)
	defer w.Close()

	require.Equal(t, 10, w.Snapshot().RRFK)

	require.NoError(t, os.WriteFile(path, []byte("rrf_k: 77\n"), 0o600))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Snapshot().RRFK == 77 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, 77, w.Snapshot().RRFK, "watcher must pick up the file change")
}
