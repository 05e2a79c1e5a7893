package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"OTEL"`
	Metrics struct {
		Enable bool `mapstructure:"ENABLE"`
	} `mapstructure:"METRICS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		DSN            string `mapstructure:"DSN"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
		CacheTTL    time.Duration `mapstructure:"CACHE_TTL"`
	} `mapstructure:"REDIS"`
	Snowflake struct {
		Node int64 `mapstructure:"NODE"`
	} `mapstructure:"SNOWFLAKE"`
}

// Supported values of DATABASE.TYPE.
const (
	DatabaseSqlite   = "sqlite"
	DatabasePostgres = "postgres"
	DatabaseMysql    = "mysql"
)

// Path is the config file given on the command line. Empty means ./config.yaml when present.
type Path string

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Path Path `optional:"true"`
}

func LoadConfig(p Params) (*Config, error) {
	return Load(string(p.Path))
}

// Load reads configuration from the optional yaml file and the environment.
// Every key has a default so the service starts without any file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.TLS.Enable && (c.TLS.CertPath == "" || c.TLS.KeyPath == "") {
		return fmt.Errorf("tls enabled but TLS.CERT_PATH or TLS.KEY_PATH not provided")
	}

	switch c.Database.Type {
	case DatabaseSqlite, DatabasePostgres, DatabaseMysql:
	default:
		return fmt.Errorf("unsupported DATABASE.TYPE %q", c.Database.Type)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "tasktracker")
	v.SetDefault("APP_VERSION", "dev")

	v.SetDefault("TLS.ENABLE", false)
	v.SetDefault("TLS.CERT_PATH", "")
	v.SetDefault("TLS.KEY_PATH", "")

	v.SetDefault("OTEL.ADDR", "")
	v.SetDefault("METRICS.ENABLE", false)

	v.SetDefault("HTTP_SERVER.ADDR", ":8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)

	v.SetDefault("DATABASE.TYPE", DatabaseSqlite)
	v.SetDefault("DATABASE.DSN", "tasks.db")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", "")
	v.SetDefault("DATABASE.DBNAME", "tasks")
	v.SetDefault("DATABASE.USER", "")
	v.SetDefault("DATABASE.PASSWORD", "")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_IDLE_CONN", 2)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_IDLE_TIME", 10*time.Minute)

	v.SetDefault("REDIS.ADDR", "")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 4*time.Second)
	v.SetDefault("REDIS.CACHE_TTL", 5*time.Minute)

	v.SetDefault("SNOWFLAKE.NODE", 1)
}
