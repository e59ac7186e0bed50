package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.NotNil(t, cfg)

	assert.NotEmpty(t, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Catalog.BundleMaxDepth)
	assert.Equal(t, 10, cfg.Catalog.MaxCollectionDepth)
	assert.NotEmpty(t, cfg.Catalog.EventChannelPrefix)
	assert.Positive(t, cfg.RateLimit.RequestsPerWindow)
	assert.Positive(t, cfg.RateLimit.WindowSeconds)
	assert.False(t, cfg.Redis.Enabled, "redis must be off by default")
}
