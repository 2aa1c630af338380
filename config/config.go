package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	MinTokenTTL = time.Hour
	MaxTokenTTL = 24 * time.Hour

	insecureDefaultSecret = "default-very-insecure-secret-key"
)

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // mysql, postgres or sqlite
	URL      string `mapstructure:"url"`
	LogLevel string `mapstructure:"log_level"`
}

type ConsulConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

type Config struct {
	HTTPPort    int    `mapstructure:"http_port"`
	GRPCPort    int    `mapstructure:"grpc_port"`
	LogLevel    string `mapstructure:"log_level"`
	ServiceName string `mapstructure:"service_name"`
	ServiceHost string `mapstructure:"service_host"`

	JwtSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	// AllowInsecureSecret permits the built-in jwt_secret outside sqlite development setups.
	AllowInsecureSecret bool `mapstructure:"allow_insecure_secret"`

	// AdminUsername is the reserved identifier that receives the admin role at registration.
	AdminUsername string `mapstructure:"admin_username"`
	// AdminPassword seeds the administrator account on startup when set.
	AdminPassword string `mapstructure:"admin_password"`

	Database DatabaseConfig `mapstructure:"database"`
	Consul   ConsulConfig   `mapstructure:"consul"`
}

var AppConfig Config

// Flags returns the command-line flags understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("board", pflag.ContinueOnError)
	fs.String("config", "", "path to a config file (default: ./config.yaml or ./config/config.yaml)")
	fs.Int("http_port", 0, "HTTP listen port")
	fs.Int("grpc_port", 0, "gRPC listen port")
	fs.String("log_level", "", "log level (debug, info)")
	fs.Bool("allow_insecure_secret", false, "start with the built-in development jwt_secret")
	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 5000)
	v.SetDefault("grpc_port", 50051)
	v.SetDefault("log_level", "info")
	v.SetDefault("service_name", "board")
	v.SetDefault("service_host", "localhost")
	v.SetDefault("jwt_secret", insecureDefaultSecret) // CHANGE THIS IN PRODUCTION
	v.SetDefault("token_ttl", "1h")
	v.SetDefault("allow_insecure_secret", false)
	v.SetDefault("admin_username", "admin_master")
	v.SetDefault("admin_password", "")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.url", "")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("consul.enabled", false)
	v.SetDefault("consul.address", "127.0.0.1:8500")
}

// Load builds the configuration from defaults, an optional config file,
// BOARD_* environment variables and the given flags, in increasing precedence.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile := ""
	if flags != nil {
		configFile, _ = flags.GetString("config")
		for _, name := range []string{"http_port", "grpc_port", "log_level", "allow_insecure_secret"} {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(name, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("fatal error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InitConfig loads the configuration into AppConfig and panics on failure.
func InitConfig(flags *pflag.FlagSet) {
	cfg, err := Load(flags)
	if err != nil {
		panic(err)
	}
	AppConfig = *cfg
}

func (c *Config) Validate() error {
	if c.JwtSecret == "" {
		return errors.New("jwt_secret must not be empty")
	}
	if c.TokenTTL < MinTokenTTL || c.TokenTTL > MaxTokenTTL {
		return fmt.Errorf("token_ttl must be between %s and %s, got %s", MinTokenTTL, MaxTokenTTL, c.TokenTTL)
	}
	if c.AdminUsername == "" {
		return errors.New("admin_username must not be empty")
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.UsesInsecureSecret() && c.Database.Driver != "sqlite" && !c.AllowInsecureSecret {
		return errors.New("jwt_secret is the built-in development value; set jwt_secret or allow_insecure_secret")
	}
	return nil
}

// UsesInsecureSecret reports whether the built-in development secret is in use.
func (c *Config) UsesInsecureSecret() bool {
	return c.JwtSecret == insecureDefaultSecret
}
