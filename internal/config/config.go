package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"github.com/spf13/viper"
)

type Config struct {
	Vendor   VendorConfig   `mapstructure:"vendor"`
	Callback CallbackConfig `mapstructure:"callback"`
	Poll     PollConfig     `mapstructure:"poll"`
	Topology TopologyConfig `mapstructure:"topology"`
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// VendorConfig addresses the Gira IoT REST API.
type VendorConfig struct {
	Host               string        `mapstructure:"host"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	ClientID           string        `mapstructure:"client_id"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// CallbackConfig configures the push callback listener. Host is the address
// the vendor device uses to reach us.
type CallbackConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Hostname string   `mapstructure:"hostname"`
	IPs      []string `mapstructure:"ips"`
	CertFile string   `mapstructure:"cert_file"`
	KeyFile  string   `mapstructure:"key_file"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// TopologyConfig maps trade names to their position in the uiconfig trades array.
type TopologyConfig struct {
	Trades map[string]int `mapstructure:"trades"`
}

type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecretEnv string `mapstructure:"jwt_secret_env"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         byte   `mapstructure:"qos"`
}

type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads the YAML file at path. Every key can be overridden from the
// environment with the GIRA_ prefix, e.g. GIRA_VENDOR_PASSWORD.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("GIRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// credentials have empty defaults so env overrides are picked up
	v.SetDefault("vendor.host", "")
	v.SetDefault("vendor.username", "")
	v.SetDefault("vendor.password", "")
	v.SetDefault("vendor.client_id", "de.madone.x1client")
	v.SetDefault("vendor.timeout", "10s")
	v.SetDefault("vendor.insecure_skip_verify", true)

	v.SetDefault("callback.enabled", true)
	v.SetDefault("callback.host", "")
	v.SetDefault("callback.port", 8124)
	v.SetDefault("callback.hostname", "gira-iot.local")
	v.SetDefault("callback.cert_file", "domain_srv.crt")
	v.SetDefault("callback.key_file", "domain_srv.key")

	v.SetDefault("poll.interval", "60s")

	v.SetDefault("topology.trades", map[string]int{
		string(types.TradeLighting): 0,
		string(types.TradeCover):    2,
		string(types.TradeClimate):  3,
	})

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("auth.jwt_secret_env", "GIRA_JWT_SECRET")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "giraiot")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "giraiot")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "giraiot")
	v.SetDefault("database.user", "giraiot")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_connections", 4)

	v.SetDefault("log.development", false)
}

// Validate checks the values the session relies on without re-checking.
func (c *Config) Validate() error {
	var errs []error

	if c.Vendor.Host == "" {
		errs = append(errs, errors.New("vendor.host is required"))
	}
	if c.Vendor.Username == "" || c.Vendor.Password == "" {
		errs = append(errs, errors.New("vendor.username and vendor.password are required"))
	}
	if c.Vendor.Timeout <= 0 {
		errs = append(errs, errors.New("vendor.timeout must be positive"))
	}
	if c.Callback.Enabled {
		if c.Callback.Host == "" {
			errs = append(errs, errors.New("callback.host is required when the callback listener is enabled"))
		}
		if c.Callback.Port < 1 || c.Callback.Port > 65535 {
			errs = append(errs, fmt.Errorf("callback.port %d out of range", c.Callback.Port))
		}
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("poll.interval must be positive"))
	}
	for name := range c.Topology.Trades {
		switch types.Trade(name) {
		case types.TradeLighting, types.TradeCover, types.TradeClimate:
		default:
			errs = append(errs, fmt.Errorf("topology.trades: unknown trade %q", name))
		}
	}
	if c.MQTT.Enabled && c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d out of range", c.MQTT.QoS))
	}

	return errors.Join(errs...)
}

// TradePositions converts the configured trade table for the indexer.
func (t *TopologyConfig) TradePositions() map[types.Trade]int {
	out := make(map[types.Trade]int, len(t.Trades))
	for name, pos := range t.Trades {
		out[types.Trade(name)] = pos
	}
	return out
}

// URL is the push URL registered with the vendor device.
func (c *CallbackConfig) URL() string {
	return "https://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + "/value"
}

// ListenAddr is the local bind address of the listener.
func (c *CallbackConfig) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// GetJWTSecret reads the control API secret from the configured variable.
// An empty result disables authentication.
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "GIRA_JWT_SECRET"
	}
	return os.Getenv(envVar)
}
