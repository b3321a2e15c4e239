package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	mu sync.Mutex `yaml:"-"`

	LocalAgent   EndpointConfig `yaml:"local_agent"`
	Hub          EndpointConfig `yaml:"hub"`
	PollRate     time.Duration  `yaml:"poll_rate"`
	CycleTimeout time.Duration  `yaml:"cycle_timeout"`

	Push      PushConfig      `yaml:"push"`
	Database  DatabaseConfig  `yaml:"database"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
	Journal   JournalConfig   `yaml:"journal"`
}

// EndpointConfig is an upstream HTTP service.
type EndpointConfig struct {
	URL     string        `yaml:"url"     json:"url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// PushConfig defines how hub push topics are consumed.
type PushConfig struct {
	Backend             string        `yaml:"backend"` // "sse" or "redis"
	Debounce            time.Duration `yaml:"debounce"`
	Reconnect           bool          `yaml:"reconnect"`
	MaxBackoff          time.Duration `yaml:"max_backoff"`
	NetworkActivityPath string        `yaml:"network_activity_path"`
	TaskUpdatesPath     string        `yaml:"task_updates_path"`
	Redis               RedisConfig   `yaml:"redis"`
}

// RedisConfig defines the hub's Redis pub/sub connection.
type RedisConfig struct {
	Address                string `yaml:"address"`
	Password               string `yaml:"password"`
	DB                     int    `yaml:"db"`
	NetworkActivityChannel string `yaml:"network_activity_channel"`
	TaskUpdatesChannel     string `yaml:"task_updates_channel"`
}

// DatabaseConfig selects the local persistence backend.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// WebConfig defines the local API server.
type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MessagingConfig defines the optional snapshot publication backend.
type MessagingConfig struct {
	Enabled             bool          `yaml:"enabled"`
	Backend             string        `yaml:"backend"` // "mqtt" or "kafka"
	MQTT                MQTTConfig    `yaml:"mqtt"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	SnapshotTopic       string        `yaml:"snapshot_topic"`
	ActivityTopic       string        `yaml:"activity_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	PublishTimeout      time.Duration `yaml:"publish_timeout"`
	StationID           string        `yaml:"station_id"`
}

// MQTTConfig defines MQTT broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
}

// KafkaConfig defines Kafka broker settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// JournalConfig bounds the persisted snapshot history.
type JournalConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		LocalAgent: EndpointConfig{
			URL:     "http://localhost:5000/api",
			Timeout: 15 * time.Second,
		},
		Hub: EndpointConfig{
			URL:     "http://localhost:8000/api",
			Timeout: 5 * time.Second,
		},
		PollRate: 15 * time.Second,
		Push: PushConfig{
			Backend:             "sse",
			Debounce:            3 * time.Second,
			Reconnect:           true,
			MaxBackoff:          30 * time.Second,
			NetworkActivityPath: "/sse/network_activity/",
			TaskUpdatesPath:     "/sse/task_updates/",
			Redis: RedisConfig{
				Address:                "localhost:6379",
				NetworkActivityChannel: "network_activity",
				TaskUpdatesChannel:     "task_updates",
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "nodeconsole.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "nodeconsole",
				User:     "nodeconsole",
				SSLMode:  "disable",
			},
		},
		Web: WebConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Messaging: MessagingConfig{
			Backend:             "mqtt",
			SnapshotTopic:       "nodeconsole/snapshots",
			ActivityTopic:       "nodeconsole/network_activity",
			OutboxDrainInterval: 5 * time.Second,
			PublishTimeout:      10 * time.Second,
			MQTT: MQTTConfig{
				Broker: "localhost",
				Port:   1883,
				QoS:    1,
			},
		},
		Journal: JournalConfig{
			Enabled:    true,
			MaxEntries: 5000,
		},
	}
}

// Environment variables that override the file.
const (
	EnvLocalAPIBaseURL = "LOCAL_API_BASE_URL"
	EnvHubAPIBaseURL   = "HUB_API_BASE_URL"
	EnvDBPath          = "NODECONSOLE_DB_PATH"
	EnvRedisAddress    = "NODECONSOLE_REDIS_ADDR"
	EnvPushBackend     = "NODECONSOLE_PUSH_BACKEND"
)

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides file settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvLocalAPIBaseURL); v != "" {
		c.LocalAgent.URL = v
	}
	if v := os.Getenv(EnvHubAPIBaseURL); v != "" {
		c.Hub.URL = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.SQLite.Path = v
	}
	if v := os.Getenv(EnvRedisAddress); v != "" {
		c.Push.Redis.Address = v
	}
	if v := os.Getenv(EnvPushBackend); v != "" {
		c.Push.Backend = strings.ToLower(v)
	}
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	if c.LocalAgent.URL == "" {
		return fmt.Errorf("local_agent.url is required")
	}
	if c.Hub.URL == "" {
		return fmt.Errorf("hub.url is required")
	}
	switch c.Push.Backend {
	case "sse", "redis":
	default:
		return fmt.Errorf("unsupported push backend: %q", c.Push.Backend)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Messaging.Enabled {
		switch c.Messaging.Backend {
		case "mqtt", "kafka":
		default:
			return fmt.Errorf("unsupported messaging backend: %q", c.Messaging.Backend)
		}
		if c.Messaging.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt qos must be 0, 1 or 2")
		}
	}
	return nil
}

// Endpoints returns the local agent and hub endpoints.
func (c *Config) Endpoints() (agent, hub EndpointConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.LocalAgent, c.Hub
}

// UpdateEndpoints replaces the local agent and hub endpoints. An empty URL or
// a zero timeout keeps the current value.
func (c *Config) UpdateEndpoints(agent, hub EndpointConfig) error {
	if err := checkEndpoint("local_agent", agent); err != nil {
		return err
	}
	if err := checkEndpoint("hub", hub); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LocalAgent.merge(agent)
	c.Hub.merge(hub)
	return nil
}

func (e *EndpointConfig) merge(in EndpointConfig) {
	if in.URL != "" {
		e.URL = strings.TrimRight(in.URL, "/")
	}
	if in.Timeout > 0 {
		e.Timeout = in.Timeout
	}
}

func checkEndpoint(name string, e EndpointConfig) error {
	if e.Timeout < 0 {
		return fmt.Errorf("%s.timeout must not be negative", name)
	}
	if e.URL == "" {
		return nil
	}
	u, err := url.Parse(e.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s.url must be an http or https URL: %q", name, e.URL)
	}
	return nil
}

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
