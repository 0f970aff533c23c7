package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestLoadDefaults
func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	v.AddConfigPath(t.TempDir()) // no config.yaml here
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	cfg, err := load(v)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.Addr)
	assert.Equal(t, 10*time.Second, cfg.Market.TickInterval)
	assert.Equal(t, 30*time.Second, cfg.Market.StaleAfter)
	assert.Len(t, cfg.Market.Symbols, 50)
	assert.Equal(t, 64, cfg.Broadcast.QueueSize)
}

// go test -v --run TestLoadFileAndEnv
func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("market:\n  symbols: [\" infy.ns \", \"tcs.ns\"]\n  tick_interval: 2s\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))
	t.Setenv("APP_ADDR", ":9090")

	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	cfg, err := load(v)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.App.Addr)
	assert.Equal(t, []string{"INFY.NS", "TCS.NS"}, cfg.Market.Symbols)
	assert.Equal(t, 6*time.Second, cfg.Market.StaleAfter)
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "papertrade", SSLMode: "disable", TimeZone: "UTC"}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=papertrade sslmode=disable TimeZone=UTC", cfg.DSN("dev"))
	assert.Contains(t, cfg.AdminDSN("dev"), "dbname=postgres")
	assert.Equal(t, "papertrade", cfg.DBName)
}
