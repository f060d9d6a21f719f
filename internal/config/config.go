// Package config loads the agent server's settings from the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brixel-ai/brixel-client/pkg/api"
)

type (
	// Config holds the runtime settings for one agent server process
	Config struct {
		// API server
		APIHost  string
		APIPort  int
		LogLevel string

		// Planner connection
		PlannerBaseURL string
		APIKey         string

		// Agent identity and task sources
		AgentID api.AgentID
		TaskDir string

		// Event publishing
		Redis RedisConfig

		ShutdownTimeout time.Duration
	}

	// RedisConfig configures the optional Redis event sink. An empty Addr
	// disables it
	RedisConfig struct {
		Addr     string
		Password string
		Channel  string
		DB       int
	}
)

const (
	DefaultAPIHost         = "0.0.0.0"
	DefaultAPIPort         = 8080
	DefaultPlannerBaseURL  = "https://api.brixel.ai"
	DefaultRedisChannel    = "brixel:events"
	DefaultShutdownTimeout = 10 * time.Second
	MaxTCPPort             = 65535

	// EnvAPIKey names the variable carrying the planner API key. It is read
	// by both the server and the client library
	EnvAPIKey = "BRIXEL_API_KEY"
)

var ErrInvalidAPIPort = errors.New("invalid API port")

// NewDefaultConfig creates a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:         DefaultAPIHost,
		APIPort:         DefaultAPIPort,
		LogLevel:        "info",
		PlannerBaseURL:  DefaultPlannerBaseURL,
		ShutdownTimeout: DefaultShutdownTimeout,
		Redis: RedisConfig{
			Channel: DefaultRedisChannel,
		},
	}
}

// LoadFromEnv populates configuration values from BRIXEL_* environment
// variables. Returns an error if any value cannot be parsed
func (c *Config) LoadFromEnv() error {
	loadEnvString("BRIXEL_API_HOST", &c.APIHost)
	loadEnvString("BRIXEL_LOG_LEVEL", &c.LogLevel)
	loadEnvString("BRIXEL_PLANNER_URL", &c.PlannerBaseURL)
	loadEnvString(EnvAPIKey, &c.APIKey)
	loadEnvString("BRIXEL_TASK_DIR", &c.TaskDir)
	loadEnvString("BRIXEL_REDIS_ADDR", &c.Redis.Addr)
	loadEnvString("BRIXEL_REDIS_PASSWORD", &c.Redis.Password)
	loadEnvString("BRIXEL_REDIS_CHANNEL", &c.Redis.Channel)

	if agent := os.Getenv("BRIXEL_AGENT_ID"); agent != "" {
		c.AgentID = api.AgentID(agent)
	}

	if err := loadEnvInt(
		"BRIXEL_API_PORT", &c.APIPort, 0, MaxTCPPort,
	); err != nil {
		return err
	}
	if err := loadEnvInt("BRIXEL_REDIS_DB", &c.Redis.DB, -1, 15); err != nil {
		return err
	}

	if s := os.Getenv("BRIXEL_SHUTDOWN_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid BRIXEL_SHUTDOWN_TIMEOUT: %q", s)
		}
		c.ShutdownTimeout = d
	}

	return nil
}

// Validate checks that all configuration values are usable
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	return nil
}

// PublishRedis reports whether a Redis event sink is configured
func (c *Config) PublishRedis() bool {
	return c.Redis.Addr != ""
}

func loadEnvString(key string, dst *string) {
	if s := os.Getenv(key); s != "" {
		*dst = s
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max). Returns an error if
// the value cannot be parsed or falls outside the valid range
func loadEnvInt(key string, dst *int, min, max int) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	if v <= min || v > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, v, min+1, max)
	}
	*dst = v
	return nil
}
