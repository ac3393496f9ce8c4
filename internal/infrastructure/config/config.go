package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors config.yaml. Every section has a built-in default and a
// few keys can be overridden from DEWHOME_* environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig identifies this controller in logs and MQTT status messages.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig locates the SQLite file holding devices and actions.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// GPIOConfig selects the pin driver and the devices created on first start.
type GPIOConfig struct {
	// Driver is "sysfs" for real hardware or "sim" for an in-memory simulation.
	Driver string `yaml:"driver"`

	// ActiveLow inverts the electrical level for relay boards that switch on low.
	ActiveLow bool `yaml:"active_low"`

	// ReservedPins are BCM numbers that must never be offered for new devices.
	ReservedPins []int `yaml:"reserved_pins"`

	// RestoreState drives pins to their last persisted state on start
	// instead of forcing every device low.
	RestoreState bool `yaml:"restore_state"`

	// SeedDevices are created when the device table is empty.
	SeedDevices []SeedDevice `yaml:"seed_devices"`
}

// SeedDevice describes a device created on first start.
type SeedDevice struct {
	Name      string `yaml:"name"`
	Icon      string `yaml:"icon"`
	PinNumber int    `yaml:"pin_number"`
}

// SchedulerConfig tunes how timer, countdown and interval actions run.
type SchedulerConfig struct {
	// Timezone is an IANA name used to evaluate cron timers. Empty means local time.
	Timezone string `yaml:"timezone"`

	// ExecutionTimeout bounds a single action run, in seconds.
	ExecutionTimeout int `yaml:"execution_timeout"`
}

// MQTTConfig enables the optional MQTT bridge.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig is the REST and WebSocket listener.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig values are seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists browser origins allowed to call the API. Empty allows none.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig tunes the /ws event stream. Intervals are seconds.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig enables telemetry of state changes and executions.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type SecurityConfig struct {
	Auth AuthConfig `yaml:"auth"`
	JWT  JWTConfig  `yaml:"jwt"`
}

// AuthConfig controls API authentication. When disabled every endpoint is
// open, matching a LAN-only controller.
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// JWTConfig signs access tokens. AccessTokenTTL is in minutes.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load builds the configuration from defaults, then the YAML file at path,
// then DEWHOME_* environment variables, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return finish(cfg)
}

// Default is Load without a file.
func Default() (*Config, error) {
	return finish(defaultConfig())
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig is the configuration of a fresh install on the simulator.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "home-001",
			Name: "DEWHOME",
		},
		Database: DatabaseConfig{
			Path:        "./data/dewhome.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		GPIO: GPIOConfig{
			Driver: "sim",
			SeedDevices: []SeedDevice{
				{Name: "Device 1", PinNumber: 17},
				{Name: "Device 2", PinNumber: 18},
				{Name: "Device 3", PinNumber: 27},
				{Name: "Device 4", PinNumber: 22},
			},
		},
		Scheduler: SchedulerConfig{
			ExecutionTimeout: 3600,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dewhome-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			Auth: AuthConfig{
				Username: "admin",
			},
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// envOverrides maps each supported variable onto its config field.
// Values that fail to parse leave the field unchanged.
var envOverrides = []struct {
	name  string
	apply func(cfg *Config, v string)
}{
	{"DEWHOME_DATABASE_PATH", func(c *Config, v string) { c.Database.Path = v }},
	{"DEWHOME_GPIO_DRIVER", func(c *Config, v string) { c.GPIO.Driver = v }},
	{"DEWHOME_GPIO_RESTORE_STATE", func(c *Config, v string) { c.GPIO.RestoreState = parseBool(v, c.GPIO.RestoreState) }},
	{"DEWHOME_SCHEDULER_TIMEZONE", func(c *Config, v string) { c.Scheduler.Timezone = v }},
	{"DEWHOME_MQTT_ENABLED", func(c *Config, v string) { c.MQTT.Enabled = parseBool(v, c.MQTT.Enabled) }},
	{"DEWHOME_MQTT_HOST", func(c *Config, v string) { c.MQTT.Broker.Host = v }},
	{"DEWHOME_MQTT_USERNAME", func(c *Config, v string) { c.MQTT.Auth.Username = v }},
	{"DEWHOME_MQTT_PASSWORD", func(c *Config, v string) { c.MQTT.Auth.Password = v }},
	{"DEWHOME_API_HOST", func(c *Config, v string) { c.API.Host = v }},
	{"DEWHOME_API_PORT", func(c *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			c.API.Port = port
		}
	}},
	{"DEWHOME_INFLUXDB_TOKEN", func(c *Config, v string) { c.InfluxDB.Token = v }},
	{"DEWHOME_AUTH_PASSWORD_HASH", func(c *Config, v string) { c.Security.Auth.PasswordHash = v }},
	{"DEWHOME_JWT_SECRET", func(c *Config, v string) { c.Security.JWT.Secret = v }},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(cfg, v)
		}
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

const minJWTSecretLength = 32

// Validate reports every problem at once, joined with "; ".
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(c.Site.ID != "", "site.id is required")
	check(c.Database.Path != "", "database.path is required")
	check(c.GPIO.Driver == "sim" || c.GPIO.Driver == "sysfs",
		"gpio.driver must be \"sim\" or \"sysfs\", got %q", c.GPIO.Driver)

	if tz := c.Scheduler.Timezone; tz != "" {
		_, err := time.LoadLocation(tz)
		check(err == nil, "scheduler.timezone %q is not a valid IANA zone", tz)
	}
	check(c.Scheduler.ExecutionTimeout >= 0, "scheduler.execution_timeout must not be negative")

	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	check(c.API.Port >= 1 && c.API.Port <= 65535, "api.port must be between 1 and 65535")
	check(!c.InfluxDB.Enabled || c.InfluxDB.URL != "", "influxdb.url is required when influxdb is enabled")

	// Credentials only matter once the API issues tokens.
	if auth := c.Security.Auth; auth.Enabled {
		secret := c.Security.JWT.Secret
		check(auth.Username != "", "security.auth.username is required when auth is enabled")
		check(auth.PasswordHash != "",
			"security.auth.password_hash is required when auth is enabled (set DEWHOME_AUTH_PASSWORD_HASH)")
		check(secret != "", "security.jwt.secret is required when auth is enabled (set DEWHOME_JWT_SECRET)")
		check(secret == "" || len(secret) >= minJWTSecretLength,
			"security.jwt.secret must be at least %d characters", minJWTSecretLength)
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

// GetReadTimeout returns api.timeouts.read as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return seconds(c.API.Timeouts.Read)
}

// GetWriteTimeout returns api.timeouts.write as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return seconds(c.API.Timeouts.Write)
}

// GetIdleTimeout returns api.timeouts.idle as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return seconds(c.API.Timeouts.Idle)
}

// GetExecutionTimeout returns the maximum duration of a single action run.
// Zero disables the bound.
func (c *Config) GetExecutionTimeout() time.Duration {
	return seconds(c.Scheduler.ExecutionTimeout)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
