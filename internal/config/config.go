package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the server configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Bootstrap   BootstrapConfig
	Log         LogConfig
	Storage     StorageConfig
	Attachments AttachmentsConfig
	Wizard      WizardConfig
	HTTP        HTTPConfig
}

type ServerConfig struct {
	Addr       string
	RPCSocket  string
	SessionTTL time.Duration
}

type DatabaseConfig struct {
	Path string
}

// BootstrapConfig holds the admin created when the user table is empty.
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
	SQL    string // silent, error, warn, info
}

type StorageConfig struct {
	Driver string // local, s3
	Local  LocalStorageConfig
	S3     S3StorageConfig
}

type LocalStorageConfig struct {
	Path string
}

type S3StorageConfig struct {
	Bucket         string
	Endpoint       string
	Region         string
	AccessKeyID    string
	SecretKey      string
	UsePathStyle   bool
	Prefix         string
	RequestTimeout time.Duration
}

type AttachmentsConfig struct {
	MaxSize int64
}

type WizardConfig struct {
	SessionTTL time.Duration
}

type HTTPConfig struct {
	LoginRateLimit float64 // attempts per second per client
	LoginBurst     int
}

// Load reads configuration. Priority, highest first:
// 1. INVENTORY_ environment variables (INVENTORY_DATABASE_PATH)
// 2. the config file (explicit path, or config.yaml in . or $HOME/.inventory)
// 3. built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".inventory"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("INVENTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Addr:       v.GetString("server.addr"),
			RPCSocket:  v.GetString("server.rpc_socket"),
			SessionTTL: v.GetDuration("server.session_ttl"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    v.GetString("bootstrap.admin_email"),
			AdminPassword: v.GetString("bootstrap.admin_password"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
			SQL:    v.GetString("log.sql"),
		},
		Storage: StorageConfig{
			Driver: v.GetString("storage.driver"),
			Local: LocalStorageConfig{
				Path: v.GetString("storage.local.path"),
			},
			S3: S3StorageConfig{
				Bucket:         v.GetString("storage.s3.bucket"),
				Endpoint:       v.GetString("storage.s3.endpoint"),
				Region:         v.GetString("storage.s3.region"),
				AccessKeyID:    v.GetString("storage.s3.access_key_id"),
				SecretKey:      v.GetString("storage.s3.secret_key"),
				UsePathStyle:   v.GetBool("storage.s3.use_path_style"),
				Prefix:         v.GetString("storage.s3.prefix"),
				RequestTimeout: v.GetDuration("storage.s3.request_timeout"),
			},
		},
		Attachments: AttachmentsConfig{
			MaxSize: v.GetInt64("attachments.max_size"),
		},
		Wizard: WizardConfig{
			SessionTTL: v.GetDuration("wizard.session_ttl"),
		},
		HTTP: HTTPConfig{
			LoginRateLimit: v.GetFloat64("http.login_rate_limit"),
			LoginBurst:     v.GetInt("http.login_burst"),
		},
	}

	applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RPCSocket == "" {
		cfg.Server.RPCSocket = "/tmp/inventory.sock"
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = 24 * time.Hour
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "inventory.db"
	}
	if cfg.Bootstrap.AdminEmail == "" {
		cfg.Bootstrap.AdminEmail = "admin@inventory.local"
	}
	if cfg.Bootstrap.AdminPassword == "" {
		cfg.Bootstrap.AdminPassword = "admin"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Log.SQL == "" {
		cfg.Log.SQL = "warn"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "local"
	}
	if cfg.Storage.Local.Path == "" {
		cfg.Storage.Local.Path = "attachments"
	}
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = "us-east-1"
	}
	if cfg.Storage.S3.RequestTimeout == 0 {
		cfg.Storage.S3.RequestTimeout = 30 * time.Second
	}
	if cfg.Attachments.MaxSize == 0 {
		cfg.Attachments.MaxSize = 10 << 20
	}
	if cfg.Wizard.SessionTTL == 0 {
		cfg.Wizard.SessionTTL = 30 * time.Minute
	}
	if cfg.HTTP.LoginRateLimit == 0 {
		cfg.HTTP.LoginRateLimit = 1
	}
	if cfg.HTTP.LoginBurst == 0 {
		cfg.HTTP.LoginBurst = 5
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required when storage.driver is s3")
		}
		if (c.Storage.S3.AccessKeyID == "") != (c.Storage.S3.SecretKey == "") {
			return errors.New("storage.s3.access_key_id and storage.s3.secret_key must be set together")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Attachments.MaxSize < 0 {
		return errors.New("attachments.max_size must not be negative")
	}
	if c.HTTP.LoginRateLimit < 0 || c.HTTP.LoginBurst < 0 {
		return errors.New("http login rate limits must not be negative")
	}
	if c.Server.SessionTTL < time.Minute {
		return errors.New("server.session_ttl must be at least one minute")
	}
	return nil
}
