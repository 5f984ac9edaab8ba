package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"order-display/config"
)

func TestMigrationNames_SortedAndEmbedded(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "migrations/001_order_history.sql", names[0])
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}

	sqlBytes, err := migrationsFS.ReadFile(names[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(sqlBytes), "CREATE TABLE IF NOT EXISTS order_history"))
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger(config.LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))

	_, err = newLogger(config.LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}
