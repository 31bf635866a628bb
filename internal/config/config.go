// Package config loads station settings from a YAML file, BODYFIT_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ayusman/bodyfit/internal/autocapture"
	"github.com/ayusman/bodyfit/internal/garment"
	"github.com/ayusman/bodyfit/internal/session"
	"github.com/ayusman/bodyfit/internal/units"
)

// EnvPrefix prefixes environment overrides, e.g. BODYFIT_SERVER_ADDR.
const EnvPrefix = "BODYFIT"

type Config struct {
	Server     ServerConfig  `mapstructure:"server"`
	StationID  string        `mapstructure:"station_id"`
	DataDir    string        `mapstructure:"data_dir"`
	Log        LogConfig     `mapstructure:"log"`
	Camera     CameraConfig  `mapstructure:"camera"`
	Session    SessionConfig `mapstructure:"session"`
	Kafka      KafkaConfig   `mapstructure:"kafka"`
	MQTT       MQTTConfig    `mapstructure:"mqtt"`
	Redis      RedisConfig   `mapstructure:"redis"`
	Plugins    PluginsConfig `mapstructure:"plugins"`
	RecordPath string        `mapstructure:"record_path"`
	Tray       TrayConfig    `mapstructure:"tray"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	StaticDir      string   `mapstructure:"static_dir"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

type CameraConfig struct {
	// Source is a device index ("0") or a stream URL.
	Source          string        `mapstructure:"source"`
	IdleFPS         int           `mapstructure:"idle_fps"`
	ActiveFPS       int           `mapstructure:"active_fps"`
	MotionThreshold float64       `mapstructure:"motion_threshold"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
}

type SessionConfig struct {
	Garment            string  `mapstructure:"garment"`
	Unit               string  `mapstructure:"unit"`
	HeightCm           float64 `mapstructure:"height_cm"`
	CaptureDelayMs     int64   `mapstructure:"capture_delay_ms"`
	AveragerIntervalMs int64   `mapstructure:"averager_interval_ms"`
}

// KafkaConfig enables the Kafka capture emitter when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MQTTConfig enables the MQTT capture emitter when Broker is set.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	QoS      byte   `mapstructure:"qos"`
}

// RedisConfig enables the live cache when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type PluginsConfig struct {
	Dir     string        `mapstructure:"dir"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TrayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads the config file at path. An empty path or a missing file
// yields the defaults, still subject to environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("station_id", defaultStationID())
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("log.mode", "debug")

	v.SetDefault("camera.source", "0")
	v.SetDefault("camera.idle_fps", 5)
	v.SetDefault("camera.active_fps", 15)
	v.SetDefault("camera.motion_threshold", 1.0)
	v.SetDefault("camera.idle_timeout", 5*time.Second)

	v.SetDefault("session.garment", string(garment.Shirt))
	v.SetDefault("session.unit", string(units.Cm))
	v.SetDefault("session.height_cm", 0)
	v.SetDefault("session.capture_delay_ms", autocapture.DefaultDelayMs)
	v.SetDefault("session.averager_interval_ms", session.DefaultAveragerIntervalMs)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "bodyfit.captures")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "bodyfit/captures")
	v.SetDefault("mqtt.client_id", "bodyfit-station")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Second)

	v.SetDefault("plugins.dir", "")
	v.SetDefault("plugins.timeout", 5*time.Second)

	v.SetDefault("record_path", "")
	v.SetDefault("tray.enabled", false)
}

func defaultStationID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "station"
	}
	return host
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bodyfit"
	}
	return filepath.Join(home, ".bodyfit")
}

// Validate checks values that would otherwise fail deep inside the station.
func (c *Config) Validate() error {
	if _, err := units.Parse(c.Session.Unit); err != nil {
		return fmt.Errorf("session.unit: %w", err)
	}
	if _, err := garment.Parse(c.Session.Garment); err != nil {
		return fmt.Errorf("session.garment: %w", err)
	}
	if c.Session.HeightCm < 0 {
		return fmt.Errorf("session.height_cm must not be negative")
	}
	if c.Camera.IdleFPS <= 0 || c.Camera.ActiveFPS <= 0 {
		return fmt.Errorf("camera fps must be positive")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

// SessionSettings converts the session section into pipeline settings.
func (c *Config) SessionSettings() (session.Config, error) {
	u, err := units.Parse(c.Session.Unit)
	if err != nil {
		return session.Config{}, err
	}
	g, err := garment.Parse(c.Session.Garment)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Garment:            g,
		Unit:               u,
		HeightHintCm:       c.Session.HeightCm,
		CaptureDelayMs:     c.Session.CaptureDelayMs,
		AveragerIntervalMs: c.Session.AveragerIntervalMs,
	}, nil
}

// DatabasePath is the SQLite file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "bodyfit.db")
}

// CaptureDir holds the JPEG stills of captures.
func (c *Config) CaptureDir() string {
	return filepath.Join(c.DataDir, "captures")
}
