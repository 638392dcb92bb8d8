package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is stamped at build time with -ldflags "-X github.com/edgeflare/dbapi/pkg/config.Version=...".
var Version = "dev"

// EnvPrefix prefixes every environment variable read by Load, e.g. DBAPI_DATABASE_DSN.
const EnvPrefix = "DBAPI"

// Config holds application-wide configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	CORS     CORSConfig     `mapstructure:"cors" yaml:"cors"`
	Insert   InsertConfig   `mapstructure:"insert" yaml:"insert"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" yaml:"-"`
}

type ServerConfig struct {
	ListenAddr        string        `mapstructure:"listenAddr" yaml:"listenAddr" validate:"required"`
	BaseURL           string        `mapstructure:"baseURL" yaml:"baseURL" validate:"omitempty,startswith=/,endsnotwith=/"`
	MaxBodyBytes      int64         `mapstructure:"maxBodyBytes" yaml:"maxBodyBytes" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `mapstructure:"readHeaderTimeout" yaml:"readHeaderTimeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdownTimeout" yaml:"shutdownTimeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver" validate:"required,oneof=sqlite3 sqlite postgres pgx mysql sqlserver mssql"`
	DSN             string        `mapstructure:"dsn" yaml:"dsn" validate:"required"`
	MaxConns        int           `mapstructure:"maxConns" yaml:"maxConns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime" yaml:"connMaxLifetime" validate:"gte=0"`
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowedOrigins" yaml:"allowedOrigins" validate:"required_if=Enabled true,dive,required"`
	AllowCredentials bool     `mapstructure:"allowCredentials" yaml:"allowCredentials"`
}

type InsertConfig struct {
	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// RetryConfig bounds the retries of inserts the database aborts for serialization reasons.
type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initialInterval" yaml:"initialInterval" validate:"gt=0"`
	MaxInterval     time.Duration `mapstructure:"maxInterval" yaml:"maxInterval" validate:"gtefield=InitialInterval"`
	MaxElapsed      time.Duration `mapstructure:"maxElapsed" yaml:"maxElapsed" validate:"gt=0"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr" validate:"required_if=Enabled true"`
	Path    string `mapstructure:"path" yaml:"path" validate:"omitempty,startswith=/"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json console"`
}

// Default returns the configuration used for keys that are set nowhere else.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:        ":8080",
			MaxBodyBytes:      1 << 20,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   "sqlite3",
			DSN:      "dbapi.db",
			MaxConns: 10,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Insert: InsertConfig{Retry: RetryConfig{
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     500 * time.Millisecond,
			MaxElapsed:      10 * time.Second,
		}},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9100",
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config from file, environment and flags, in increasing order of precedence.
// Without cfgFile, dbapi.yaml is looked up in $HOME/.config and the working directory and its
// absence is not an error. Flags are bound by name, e.g. --server.listenAddr. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("dbapi")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so that environment variables are honored for all of them.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.listenAddr", d.Server.ListenAddr)
	v.SetDefault("server.baseURL", d.Server.BaseURL)
	v.SetDefault("server.maxBodyBytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.readHeaderTimeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("server.shutdownTimeout", d.Server.ShutdownTimeout)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.maxConns", d.Database.MaxConns)
	v.SetDefault("database.connMaxLifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("cors.enabled", d.CORS.Enabled)
	v.SetDefault("cors.allowedOrigins", d.CORS.AllowedOrigins)
	v.SetDefault("cors.allowCredentials", d.CORS.AllowCredentials)
	v.SetDefault("insert.retry.initialInterval", d.Insert.Retry.InitialInterval)
	v.SetDefault("insert.retry.maxInterval", d.Insert.Retry.MaxInterval)
	v.SetDefault("insert.retry.maxElapsed", d.Insert.Retry.MaxElapsed)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Redacted returns a copy of c that is safe to print.
func (c Config) Redacted() Config {
	c.Database.DSN = RedactDSN(c.Database.DSN)
	return c
}

var (
	kvPassword  = regexp.MustCompile(`(?i)(password|pwd)\s*=\s*('[^']*'|[^\s;]*)`)
	userinfoDSN = regexp.MustCompile(`^([^:@/]+):([^@]*)@`)
)

const redacted = "xxxxx"

// RedactDSN masks the password in URL (postgres://, sqlserver://), key=value and
// MySQL user:password@ connection strings.
func RedactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.Host != "" {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redacted)
		}
		if q := u.Query(); q.Has("password") {
			q.Set("password", redacted)
			u.RawQuery = q.Encode()
		}
		return u.String()
	}
	if kvPassword.MatchString(dsn) {
		return kvPassword.ReplaceAllString(dsn, "${1}="+redacted)
	}
	return userinfoDSN.ReplaceAllString(dsn, "${1}:"+redacted+"@")
}
