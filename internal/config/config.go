package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	HistoryBackendMemory   = "memory"
	HistoryBackendPostgres = "postgres"
	HistoryBackendRedis    = "redis"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	WebRTC   WebRTCConfig   `yaml:"webrtc"`
	Rooms    RoomsConfig    `yaml:"rooms"`
	History  HistoryConfig  `yaml:"history"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
}

type HTTPConfig struct {
	Address         string   `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	AllowedOrigins  []string `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-separator:","`
	ReadBufferSize  int      `yaml:"read_buffer_size" env-default:"0"`
	WriteBufferSize int      `yaml:"write_buffer_size" env-default:"0"`
}

type WebRTCConfig struct {
	STUNServers    []string `yaml:"stun_servers" env:"STUN_SERVERS" env-separator:","`
	TURNServers    []string `yaml:"turn_servers" env:"TURN_SERVERS" env-separator:","`
	TURNUsername   string   `yaml:"turn_username" env:"TURN_USERNAME"`
	TURNCredential string   `yaml:"turn_credential" env:"TURN_PASSWORD"`
}

type RoomsConfig struct {
	GracePeriod   time.Duration `yaml:"grace_period" env:"ROOM_GRACE_PERIOD" env-default:"5m"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"ROOM_SWEEP_INTERVAL" env-default:"1m"`
	ChatBacklog   int           `yaml:"chat_backlog" env:"ROOM_CHAT_BACKLOG" env-default:"100"`
}

type HistoryConfig struct {
	Backend string        `yaml:"backend" env:"HISTORY_BACKEND" env-default:"memory"`
	Timeout time.Duration `yaml:"timeout" env:"HISTORY_TIMEOUT" env-default:"5s"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_DSN"`
}

type RedisConfig struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	cfg, err := LoadPath(configPath)
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

// LoadPath reads the YAML file at configPath, applies environment overrides
// and fills in defaults.
func LoadPath(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, &LoadError{Path: configPath, Err: err}
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, &LoadError{Path: configPath, Err: err}
	}

	cfg.setDefaults()

	return &cfg, nil
}

type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return "cannot read config " + e.Path + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if c.HTTP.ReadBufferSize <= 0 {
		c.HTTP.ReadBufferSize = 1024
	}
	if c.HTTP.WriteBufferSize <= 0 {
		c.HTTP.WriteBufferSize = 1024
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{
			"stun:stun.l.google.com:19302",
			"stun:stun1.l.google.com:19302",
		}
	}
	if c.Rooms.GracePeriod <= 0 {
		c.Rooms.GracePeriod = 5 * time.Minute
	}
	if c.Rooms.SweepInterval <= 0 {
		c.Rooms.SweepInterval = time.Minute
	}
	if c.Rooms.ChatBacklog <= 0 {
		c.Rooms.ChatBacklog = 100
	}
	if c.History.Backend == "" {
		c.History.Backend = HistoryBackendMemory
	}
	if c.History.Timeout <= 0 {
		c.History.Timeout = 5 * time.Second
	}
}
