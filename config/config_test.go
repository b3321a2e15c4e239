package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.PollRate)
	assert.Equal(t, 3*time.Second, cfg.Push.Debounce)
	assert.Equal(t, 15*time.Second, cfg.LocalAgent.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Hub.Timeout)
	assert.Equal(t, "sse", cfg.Push.Backend)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodeconsole.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hub:
  url: http://hub.example:8000/api
poll_rate: 30s
push:
  backend: redis
  redis:
    address: redis.example:6379
messaging:
  enabled: true
  backend: kafka
  kafka:
    brokers: [k1:9092, k2:9092]
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://hub.example:8000/api", cfg.Hub.URL)
	assert.Equal(t, 30*time.Second, cfg.PollRate)
	assert.Equal(t, "redis", cfg.Push.Backend)
	assert.Equal(t, "redis.example:6379", cfg.Push.Redis.Address)
	assert.Equal(t, "task_updates", cfg.Push.Redis.TaskUpdatesChannel, "unset fields keep defaults")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Messaging.Kafka.Brokers)
	assert.Equal(t, "http://localhost:5000/api", cfg.LocalAgent.URL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLocalAPIBaseURL, "http://agent:5000/api")
	t.Setenv(EnvHubAPIBaseURL, "http://hub:8000/api")
	t.Setenv(EnvDBPath, "/var/lib/nodeconsole.db")
	t.Setenv(EnvPushBackend, "REDIS")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://agent:5000/api", cfg.LocalAgent.URL)
	assert.Equal(t, "http://hub:8000/api", cfg.Hub.URL)
	assert.Equal(t, "/var/lib/nodeconsole.db", cfg.Database.SQLite.Path)
	assert.Equal(t, "redis", cfg.Push.Backend)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("HUB_API_BASE_URL=http://from-dotenv/api\n"), 0644))
	t.Setenv(EnvHubAPIBaseURL, "")
	os.Unsetenv(EnvHubAPIBaseURL)

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env"), envPath))
	assert.Equal(t, "http://from-dotenv/api", os.Getenv(EnvHubAPIBaseURL))
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Push.Backend = "websocket"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Messaging.Enabled = true
	cfg.Messaging.Backend = "nats"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Hub.URL = ""
	assert.Error(t, cfg.Validate())

	assert.NoError(t, Defaults().Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Defaults()
	cfg.Web.Port = 9999
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, loaded.Web.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll_rate: [oops"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestUpdateEndpoints(t *testing.T) {
	cfg := Defaults()
	cfg.LocalAgent = EndpointConfig{URL: "http://agent:5000", Timeout: 15 * time.Second}
	cfg.Hub = EndpointConfig{URL: "http://hub:8000", Timeout: 5 * time.Second}

	require.NoError(t, cfg.UpdateEndpoints(EndpointConfig{URL: "http://agent2:5000/"}, EndpointConfig{Timeout: 9 * time.Second}))
	agent, hub := cfg.Endpoints()
	assert.Equal(t, EndpointConfig{URL: "http://agent2:5000", Timeout: 15 * time.Second}, agent)
	assert.Equal(t, EndpointConfig{URL: "http://hub:8000", Timeout: 9 * time.Second}, hub)

	assert.Error(t, cfg.UpdateEndpoints(EndpointConfig{URL: "agent2:5000"}, EndpointConfig{}))
	assert.Error(t, cfg.UpdateEndpoints(EndpointConfig{}, EndpointConfig{Timeout: -time.Second}))
	agent, _ = cfg.Endpoints()
	assert.Equal(t, "http://agent2:5000", agent.URL)
}
