package config

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const defaultConfigPath = "src/internal/config/cfg.yml"

type Configuration struct {
	Logs     LogsSettings   `mapstructure:"logs"`
	App      Application    `mapstructure:"app"`
	Server   ServerSettings `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database Database       `mapstructure:"database"`
	Redis    Redis          `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Cookie   CookieConfig   `mapstructure:"cookie"`
	SSO      SSOConfig      `mapstructure:"sso"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Portal   PortalConfig   `mapstructure:"portal"`
	Search   SearchConfig   `mapstructure:"search"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

type LogsSettings struct {
	Level            string `mapstructure:"level"`
	Path             string `mapstructure:"log-path"`
	EnableJSONOutput bool   `mapstructure:"enable-json-output"`
}

type Application struct {
	Name    string `mapstructure:"name"`
	Timeout int    `mapstructure:"timeout"`
	Version string `mapstructure:"version"`
}

type ServerSettings struct {
	Port         string `mapstructure:"port"`
	Mode         string `mapstructure:"mode"`
	ReadTimeout  int    `mapstructure:"read-timeout"`
	WriteTimeout int    `mapstructure:"write-timeout"`
	IdleTimeout  int    `mapstructure:"idle-timeout"`
}

// BackendConfig points at the tutoring REST API.
type BackendConfig struct {
	BaseURL string `mapstructure:"base-url"`
	Timeout int    `mapstructure:"timeout"`
}

type StorageConfig struct {
	// Driver is one of memory, redis, mongo, tiered.
	Driver     string `mapstructure:"driver"`
	TTLMinutes int    `mapstructure:"ttl-minutes"`
	KeyPrefix  string `mapstructure:"key-prefix"`
}

type Database struct {
	Url                   string `mapstructure:"url"`
	DbName                string `mapstructure:"dbname"`
	ClientStateCollection string `mapstructure:"client-state-collection"`
	Timeout               int    `mapstructure:"timeout"`
}

type Redis struct {
	Url      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	Db       int    `mapstructure:"db"`
}

type QueueConfig struct {
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type RabbitMQConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Url          string `mapstructure:"url"`
	Exchange     string `mapstructure:"exchange"`
	ExchangeType string `mapstructure:"exchange-type"`
	RoutingKey   string `mapstructure:"routing-key"`
	Durable      bool   `mapstructure:"durable"`
	AutoDelete   bool   `mapstructure:"auto-delete"`
	Internal     bool   `mapstructure:"internal"`
	NoWait       bool   `mapstructure:"no-wait"`
}

type CookieConfig struct {
	Name     string `mapstructure:"name"`
	Secret   string `mapstructure:"secret"`
	MaxAge   int    `mapstructure:"max-age"`
	Secure   bool   `mapstructure:"secure"`
	HttpOnly bool   `mapstructure:"http-only"`
}

// SSOConfig describes the university identity provider.
type SSOConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Provider     string   `mapstructure:"provider"`
	ClientID     string   `mapstructure:"client-id"`
	ClientSecret string   `mapstructure:"client-secret"`
	AuthURL      string   `mapstructure:"auth-url"`
	TokenURL     string   `mapstructure:"token-url"`
	RedirectURL  string   `mapstructure:"redirect-url"`
	Scopes       []string `mapstructure:"scopes"`
}

type ChatConfig struct {
	PollIntervalMs     int `mapstructure:"poll-interval-ms"`
	SearchDebounceMs   int `mapstructure:"search-debounce-ms"`
	StreamHeartbeatSec int `mapstructure:"stream-heartbeat-sec"`

	// Polling pauses once no stream is open and nothing fetched the
	// conversation for this long.
	WatchGraceSec int `mapstructure:"watch-grace-sec"`
}

type PortalConfig struct {
	VerifyWaitMs    int    `mapstructure:"verify-wait-ms"`
	LoginPath       string `mapstructure:"login-path"`
	DashboardPath   string `mapstructure:"dashboard-path"`
	UnauthorizedURL string `mapstructure:"unauthorized-path"`

	// Clients idle longer than this are dropped from memory.
	ClientIdleMinutes int `mapstructure:"client-idle-minutes"`
	SweepIntervalSec  int `mapstructure:"sweep-interval-sec"`
}

type CacheConfig struct {
	UserStatsExpirationMinutes int `mapstructure:"user-stats-expiration-minutes"`
}

type SearchConfig struct {
	MinQueryLimit int `mapstructure:"min-query-limit"`
	MaxQueryLimit int `mapstructure:"max-query-limit"`
}

func (c ChatConfig) PollInterval() time.Duration {
	if c.PollIntervalMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c ChatConfig) SearchDebounce() time.Duration {
	if c.SearchDebounceMs <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(c.SearchDebounceMs) * time.Millisecond
}

func (c ChatConfig) WatchGrace() time.Duration {
	if c.WatchGraceSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.WatchGraceSec) * time.Second
}

func (c PortalConfig) VerifyWait() time.Duration {
	if c.VerifyWaitMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.VerifyWaitMs) * time.Millisecond
}

func (c PortalConfig) ClientIdle() time.Duration {
	if c.ClientIdleMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.ClientIdleMinutes) * time.Minute
}

func (c PortalConfig) SweepInterval() time.Duration {
	if c.SweepIntervalSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.SweepIntervalSec) * time.Second
}

func (c CacheConfig) UserStatsTTL() time.Duration {
	return time.Duration(c.UserStatsExpirationMinutes) * time.Minute
}

func Load() *Configuration {
	cfg := read()
	logrus.Info("Configuration loaded")

	// Override with environment variables
	backendUrl := os.Getenv("BACKEND_URL")
	if backendUrl != "" {
		cfg.Backend.BaseURL = backendUrl
	}

	mongoUri := os.Getenv("MONGODB_URL")
	if mongoUri != "" {
		cfg.Database.Url = mongoUri
	}

	dbName := os.Getenv("DB_NAME")
	if dbName != "" {
		cfg.Database.DbName = dbName
	}

	redisUrl := os.Getenv("REDIS_URL")
	if redisUrl != "" {
		cfg.Redis.Url = redisUrl
	}

	redisDB := os.Getenv("REDIS_DB")
	if redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			cfg.Redis.Db = db
		}
	}

	rabbitmqUrl := os.Getenv("RABBITMQ_URL")
	if rabbitmqUrl != "" {
		cfg.Queue.RabbitMQ.Url = rabbitmqUrl
	}

	cookieSecret := os.Getenv("COOKIE_SECRET")
	if cookieSecret != "" {
		cfg.Cookie.Secret = cookieSecret
	}

	ssoClientID := os.Getenv("SSO_CLIENT_ID")
	if ssoClientID != "" {
		cfg.SSO.ClientID = ssoClientID
	}

	ssoClientSecret := os.Getenv("SSO_CLIENT_SECRET")
	if ssoClientSecret != "" {
		cfg.SSO.ClientSecret = ssoClientSecret
	}

	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Configuration) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "portal"
	}
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = "tutorhub_portal"
	}
	if cfg.Portal.LoginPath == "" {
		cfg.Portal.LoginPath = "/login"
	}
	if cfg.Portal.DashboardPath == "" {
		cfg.Portal.DashboardPath = "/dashboard"
	}
	if cfg.Portal.UnauthorizedURL == "" {
		cfg.Portal.UnauthorizedURL = "/unauthorized"
	}
	if cfg.Search.MinQueryLimit <= 0 {
		cfg.Search.MinQueryLimit = 20
	}
	if cfg.Search.MaxQueryLimit <= 0 {
		cfg.Search.MaxQueryLimit = 100
	}
	if cfg.App.Timeout <= 0 {
		cfg.App.Timeout = 15
	}
}

func read() *Configuration {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetConfigType("yml")

	var config Configuration

	err := viper.ReadInConfig()
	if err != nil {
		logrus.Panicf("Error reading config file, %s", err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		logrus.Panicf("Error unmarshalling config file, %s", err)
	}

	return &config
}
