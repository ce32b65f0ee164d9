package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper functions for JSON marshaling tests
func jsonMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func jsonUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Edge Case Tests - These test scenarios that could cause silent failures
// or unexpected behavior as identified in the comprehensive test analysis.

// =============================================================================
// Config Merge Edge Cases
// =============================================================================

// TestLoad_ZeroValuesNotMerged tests that explicit zero values in config
// don't override defaults (potential silent failure).
func TestLoad_ZeroValuesNotMerged(t *testing.T) {
	// Given: config with explicit zero values
	tmpDir := t.TempDir()
	configContent := `
version: 1
search:
  default_k: 0
  rrf_constant: 0
embeddings:
  provider: ollama
`
	err := os.WriteFile(filepath.Join(tmpDir, ".historian.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: defaults are kept (zero values don't override)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Search.DefaultK, "Zero should not override default_k")
	assert.Equal(t, 60, cfg.Search.RRFConstant, "Zero should not override rrf_constant")
	// Note: this documents the "can't set to zero via YAML" limitation
}

// TestLoad_NegativeValues_Validated tests that negative values are
// rejected by validation.
func TestLoad_NegativeValues_Validated(t *testing.T) {
	// Given: config with a negative min_similarity
	tmpDir := t.TempDir()
	configContent := `
version: 1
search:
  min_similarity: -0.5
`
	err := os.WriteFile(filepath.Join(tmpDir, ".historian.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: validation error is returned
	require.Error(t, err)
	require.Nil(t, cfg)
	assert.Contains(t, err.Error(), "min_similarity must be between")
}

// TestValidate_FallbackFloorAboveMinSimilarity_Rejected tests that a
// fallback floor above the primary threshold is rejected (it would defeat
// the purpose of a fallback).
func TestValidate_FallbackFloorAboveMinSimilarity_Rejected(t *testing.T) {
	// Given: a config with fallback_floor above min_similarity
	cfg := NewConfig()
	cfg.Search.MinSimilarity = 0.5
	cfg.Search.FallbackFloor = 0.6

	// When: validating the configuration
	err := cfg.Validate()

	// Then: validation error is returned
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback_floor")
}

// TestValidate_AlphaOutOfRange_Rejected tests that an out-of-range alpha
// is rejected.
func TestValidate_AlphaOutOfRange_Rejected(t *testing.T) {
	// Given: a config with alpha > 1
	cfg := NewConfig()
	cfg.Search.Alpha = 1.5

	// When: validating the configuration
	err := cfg.Validate()

	// Then: validation error is returned
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha must be between 0 and 1")
}

// TestValidate_InvalidProvider_Rejected tests that an unknown embeddings
// provider is rejected.
func TestValidate_InvalidProvider_Rejected(t *testing.T) {
	// Given: a config with an unrecognized provider
	cfg := NewConfig()
	cfg.Embeddings.Dimensions = 768
	cfg.Embeddings.Provider = "made-up-provider"

	// When: validating the configuration
	err := cfg.Validate()

	// Then: validation error is returned
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embeddings.provider must be")
}

// =============================================================================
// Config File Permission Edge Cases
// =============================================================================

// TestLoad_UnreadableConfigFile_ReturnsError tests that unreadable config
// files return an error.
func TestLoad_UnreadableConfigFile_ReturnsError(t *testing.T) {
	// Skip on CI or if running as root
	if os.Getuid() == 0 {
		t.Skip("Test requires non-root user")
	}

	// Given: a config file with no read permissions
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".historian.yaml")
	err := os.WriteFile(configPath, []byte("version: 1"), 0o000)
	require.NoError(t, err)
	defer func() { _ = os.Chmod(configPath, 0o644) }()

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: error should be returned
	require.Error(t, err, "Load should fail for unreadable config file")
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "read", "Error should mention read failure")
}

// =============================================================================
// Config JSON Marshaling Edge Cases
// =============================================================================

// TestConfig_JSON_RoundTrip tests that config can be marshaled to JSON
// and back without data loss.
func TestConfig_JSON_RoundTrip(t *testing.T) {
	// Given: a configuration with custom values
	cfg := NewConfig()
	cfg.Search.Alpha = 0.4
	cfg.Search.RRFConstant = 100
	cfg.Search.MinSimilarity = 0.6
	cfg.Embeddings.Provider = "static"

	// When: marshaling to JSON and back
	data, err := jsonMarshal(cfg)
	require.NoError(t, err)

	var parsed Config
	err = jsonUnmarshal(data, &parsed)
	require.NoError(t, err)

	// Then: all JSON-accessible values are preserved
	assert.Equal(t, 0.4, parsed.Search.Alpha)
	assert.Equal(t, 100, parsed.Search.RRFConstant)
	assert.Equal(t, 0.6, parsed.Search.MinSimilarity)
	assert.Equal(t, "static", parsed.Embeddings.Provider)
}

// TestConfig_UnmarshalJSON_InvalidJSON_ReturnsError tests that invalid JSON
// returns an error.
func TestConfig_UnmarshalJSON_InvalidJSON_ReturnsError(t *testing.T) {
	// Given: invalid JSON
	invalidJSON := []byte("{invalid json")

	// When: unmarshaling
	var cfg Config
	err := jsonUnmarshal(invalidJSON, &cfg)

	// Then: error is returned
	require.Error(t, err, "Unmarshal should fail for invalid JSON")
}

// =============================================================================
// Store Config Edge Cases
// =============================================================================

// TestNewConfig_IndexDir_UsesHomeDir tests that the index directory defaults
// to a path under the home directory.
func TestNewConfig_IndexDir_UsesHomeDir(t *testing.T) {
	// Given: a new config
	cfg := NewConfig()

	// Then: index dir should be under home or use fallback
	assert.NotEmpty(t, cfg.Paths.IndexDir)
	assert.Contains(t, cfg.Paths.IndexDir, ".historian")
}

// TestNewConfig_SchemaVersion_MatchesCurrent tests that a freshly created
// config always targets the binary's current schema version.
func TestNewConfig_SchemaVersion_MatchesCurrent(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, CurrentSchemaVersion, cfg.Store.SchemaVersion)
}
