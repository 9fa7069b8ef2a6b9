package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
postgres:
  dsn: postgres://u:p@localhost/db
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, "wiki", c.Market.Source)
	assert.Equal(t, 8, c.Scan.Workers)
	assert.Equal(t, "0 0 */6 * * *", c.Market.CatalogSchedule)
	assert.Equal(t, DefaultStrategy(), c.Strategy)
	assert.Equal(t, 12.0, c.Strategy.StopLossPct)
}

func TestParseOverridesStrategy(t *testing.T) {
	c, err := Parse([]byte(minimalYAML + `
market:
  pool_ids: [4151, 11832]
strategy:
  min_roi_pct: 25
  queue_size: 3
  stale_order_age: 45m
`))
	require.NoError(t, err)

	assert.Equal(t, []int64{4151, 11832}, c.Market.PoolIDs)
	assert.Equal(t, 25.0, c.Strategy.MinROIPct)
	assert.Equal(t, 3, c.Strategy.QueueSize)
	assert.Equal(t, 45*time.Minute, c.Strategy.StaleOrderAge)
	// untouched keys keep their defaults
	assert.Equal(t, 1.12, c.Strategy.MinExitRatio)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing dsn":         `environment: prod`,
		"unknown source":      minimalYAML + "market:\n  source: csv\n",
		"clickhouse no host":  minimalYAML + "market:\n  source: clickhouse\n",
		"consumer no brokers": minimalYAML + "kafka:\n  consumer:\n    enabled: true\n",
		"queue over visible":  minimalYAML + "strategy:\n  queue_size: 20\n",
		"recovery inverted":   minimalYAML + "strategy:\n  min_recovery_weeks: 5\n",
		"negative threshold":  minimalYAML + "strategy:\n  min_spread_pct: -1\n",
		"confidence over 100": minimalYAML + "strategy:\n  min_confidence: 120\n",
		"zero workers":        minimalYAML + "scan:\n  workers: 0\n",
		"zero fetch timeout":  minimalYAML + "strategy:\n  fetch_timeout: 0s\n",
		"bad yaml":            "postgres: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MARKET_SOURCE":   "clickhouse",
		"CLICKHOUSE_HOST": "ch.internal",
		"KAFKA_BROKERS":   "k1:9092,k2:9092",
		"REDIS_ADDR":      "redis:6379",
		"MIN_SPREAD_PCT":  "3.5",
		"QUEUE_SIZE":      "4",
		"STALE_ORDER_AGE": "1h",
	}
	c := Default()
	require.NoError(t, c.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "clickhouse", c.Market.Source)
	assert.Equal(t, "ch.internal", c.ClickHouse.Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, 3.5, c.Strategy.MinSpreadPct)
	assert.Equal(t, 4, c.Strategy.QueueSize)
	assert.Equal(t, time.Hour, c.Strategy.StaleOrderAge)
}

func TestApplyEnvRejectsMalformedNumbers(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(func(k string) string {
		if k == "MIN_ROI_PCT" {
			return "ten"
		}
		return ""
	})
	assert.ErrorContains(t, err, "MIN_ROI_PCT")
}

func TestLoadWithEnvValidatesAfterOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\n"), 0o600))

	t.Setenv("POSTGRES_DSN", "")
	_, err := LoadWithEnv(path)
	assert.ErrorContains(t, err, "postgres.dsn")

	t.Setenv("POSTGRES_DSN", "postgres://u:p@db/flipdesk")
	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, "postgres://u:p@db/flipdesk", c.Postgres.DSN)
}
