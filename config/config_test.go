package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_OverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orbit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  confidence_threshold: 0.85
  max_templates: 10
embedding:
  provider: openai
  model: text-embedding-3-large
  dimensions: 3072
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.85, cfg.Engine.ConfidenceThreshold)
	assert.Equal(t, 10, cfg.Engine.MaxTemplates)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, 3072, cfg.Embedding.Dimensions)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.Engine.ConfidenceThreshold)
	assert.Equal(t, 5, cfg.Engine.MaxTemplates)
}

func TestLoad_EnvironmentOverridesNestedKey(t *testing.T) {
	t.Setenv("ORBIT_ENGINE_CONFIDENCE_THRESHOLD", "0.42")
	t.Setenv("ORBIT_ENGINE_MAX_TEMPLATES", "9")
	t.Setenv("ORBIT_LLM_MODEL", "gpt-4o")

	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 0.42, cfg.Engine.ConfidenceThreshold)
	assert.Equal(t, 9, cfg.Engine.MaxTemplates)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestLoad_EnvironmentOverridesLayerOnTopOfFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orbit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  confidence_threshold: 0.85
  max_templates: 10
`), 0o644))

	t.Setenv("ORBIT_ENGINE_MAX_TEMPLATES", "20")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.85, cfg.Engine.ConfidenceThreshold)
	assert.Equal(t, 20, cfg.Engine.MaxTemplates)
}
