package db

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin-desk-backend/config"
	"checkin-desk-backend/internal/model"
)

func TestInit_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{Driver: "sqlite", DSN: "file:dbinit?mode=memory&cache=shared"}

	gdb, err := Init(cfg, zerolog.Nop())
	require.NoError(t, err)

	for _, table := range []interface{}{&model.EventInstance{}, &model.Registration{}, &model.PushSubscription{}} {
		assert.True(t, gdb.Migrator().HasTable(table))
	}
}

func TestInit_UnsupportedDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "oracle"}, zerolog.Nop())
	assert.ErrorContains(t, err, "unsupported database driver")
}
