package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"market-pulse/src/helpers"
	"market-pulse/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestEmptyPathYieldsDefaults(t *testing.T) {
	c, err := NewConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, c.Port)
	assert.Equal(t, "sqlite", c.Storage.DBType)
	assert.Len(t, c.Feeds, len(DefaultFeeds()))

	activity, ok := c.Feed(models.FeedMarketActivity)
	require.True(t, ok)
	assert.Equal(t, DefaultActivitySectors, activity.Symbols)
	assert.Equal(t, models.GateTrading, activity.Gate)

	cls, ok := c.Feed(models.FeedClsNews)
	require.True(t, ok)
	assert.Equal(t, DefaultExcludedTitles, cls.ExcludedTitles)
}

func TestShippedDefaultConfigIsValid(t *testing.T) {
	c, err := NewConfig("../../config/default.yaml")
	require.NoError(t, err)

	assert.Equal(t, 50051, c.GrpcPort)
	_, ok := c.Feed("market_news_rss")
	assert.False(t, ok, "disabled feeds are not returned")

	info, ok := c.Feed(models.FeedStockInfo)
	require.True(t, ok)
	assert.Equal(t, 3, info.Retries)
}

func TestFeedDefaultsFillGaps(t *testing.T) {
	path := writeConfig(t, `
feeds:
  - name: cls_news
  - name: headlines
    kind: rss
    url: https://example.com/rss
`)
	c, err := NewConfig(path)
	require.NoError(t, err)
	require.Len(t, c.Feeds, 2)

	cls := c.Feeds[0]
	assert.Equal(t, models.FeedClsNews, cls.Kind)
	assert.Equal(t, 60, cls.IntervalSeconds)
	assert.Equal(t, 10, cls.TimeoutSeconds)

	rss := c.Feeds[1]
	assert.Equal(t, "rss_news_update", rss.BroadcastType)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("PULSE_TEST_PATH", "/tmp/pulse-test.db")
	t.Setenv("MARKET_PORT", "4100")
	t.Setenv("MARKET_PROXIES", "http://p1:8080,http://p2:8080")
	t.Setenv("MARKET_PROVIDER_URL", "http://bridge:9000/api/public/")

	path := writeConfig(t, `
port: 3001
storage:
  db_type: sqlite
  db_path: ${PULSE_TEST_PATH}
`)
	c, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4100, c.Port)
	assert.Equal(t, "/tmp/pulse-test.db", c.Storage.DBPath)
	assert.True(t, c.Network.Enabled)
	assert.Equal(t, []string{"http://p1:8080", "http://p2:8080"}, c.Network.Proxies)
	assert.Equal(t, "http://bridge:9000/api/public", c.Provider.BaseURL)
}

func TestInvalidEnvironmentPort(t *testing.T) {
	t.Setenv("MARKET_PORT", "not-a-port")
	_, err := NewConfig("")
	var cfgErr *helpers.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "MARKET_PORT")
}

func TestLoadFailuresAreConfigurationErrors(t *testing.T) {
	var cfgErr *helpers.ConfigurationError

	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.As(err, &cfgErr))

	_, err = NewConfig(writeConfig(t, "port: [not, a, number]"))
	assert.True(t, errors.As(err, &cfgErr))

	_, err = NewConfig(writeConfig(t, "port: 80"))
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"low port":          func(c *Config) { c.Port = 80 },
		"bad grpc port":     func(c *Config) { c.GrpcPort = 70000 },
		"postgres no dsn":   func(c *Config) { c.Storage = models.MStorageConfig{DBType: "postgres"} },
		"unknown db":        func(c *Config) { c.Storage.DBType = "mongo" },
		"zero timeout":      func(c *Config) { c.Network.RequestTimeout = 0 },
		"negative retries":  func(c *Config) { c.Network.MaxRetries = -1 },
		"unknown calendar":  func(c *Config) { c.Session.Calendar = "moon" },
		"duplicate feed":    func(c *Config) { c.Feeds = append(c.Feeds, c.Feeds[0]) },
		"unknown kind":      func(c *Config) { c.Feeds[0].Kind = "tweets" },
		"unknown gate":      func(c *Config) { c.Feeds[0].Gate = "sometimes" },
		"zero interval":     func(c *Config) { c.Feeds[0].IntervalSeconds = 0 },
		"negative capacity": func(c *Config) { c.Feeds[0].MaxItems = -1 },
		"rss without url":   func(c *Config) { c.Feeds[0].Kind = models.FeedRss },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			require.NoError(t, c.Validate())
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSaveWritesLoadableYAML(t *testing.T) {
	c := Default()
	c.Port = 3999
	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, c.Save(path))

	loaded, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3999, loaded.Port)
	assert.Equal(t, len(c.Feeds), len(loaded.Feeds))
}
