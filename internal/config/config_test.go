package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: \"9090\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, StrategyReadModifyWrite, cfg.Store.Strategy)
	assert.Equal(t, DefaultMaxRetries, cfg.StoreMaxRetries())
}

func TestLoadKeepsExplicitZeroRetries(t *testing.T) {
	cfg, err := Load(writeConfig(t, "store:\n  maxRetries: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Store.MaxRetries)
	assert.Equal(t, 0, cfg.StoreMaxRetries())

	cfg, err = Load(writeConfig(t, "store:\n  maxRetries: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.StoreMaxRetries())
}

func TestLoadInfersBackend(t *testing.T) {
	cfg, err := Load(writeConfig(t, "redis:\n  addr: localhost:6379\npostgres:\n  url: postgres://x\n"))
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)

	cfg, err = Load(writeConfig(t, "postgres:\n  url: postgres://x\n"))
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown backend":  "store:\n  backend: mongo\n",
		"unknown strategy": "store:\n  strategy: optimistic\n",
		"redis no addr":    "store:\n  backend: redis\n",
		"postgres no url":  "store:\n  backend: postgres\n",
		"room bounds":      "room:\n  maxPlayers: 2\n  minPlayers: 3\n",
		"negative retries": "store:\n  maxRetries: -1\n",
		"malformed":        "store: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestTTLDuration(t *testing.T) {
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, 5*time.Second, TTLDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
}
