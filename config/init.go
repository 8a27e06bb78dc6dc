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

// Конечная структура конфигурации приложения.
type Config struct {
	Server struct {
		Address      string        `mapstructure:"address"`   // 0.0.0.0
		HTTPPort     string        `mapstructure:"http_port"` // 4000
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"` // должен покрывать converter.timeout
		MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
		CORSOrigins  []string      `mapstructure:"cors_origins"`
	} `mapstructure:"server"`

	Logging struct {
		Level  string `mapstructure:"level"`  // trace|debug|info|warning|error|fatal
		Format string `mapstructure:"format"` // text|json
		File   string `mapstructure:"file"`   // путь/префикс файла, пусто: только stdout
	} `mapstructure:"logs"`

	Database struct {
		Driver string `mapstructure:"driver"` // "postgres" | "mysql" | "sqlite"
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Auth struct {
		JWTSecret          string        `mapstructure:"jwt_secret"`
		TokenTTL           time.Duration `mapstructure:"token_ttl"`
		LoginRatePerMinute int           `mapstructure:"login_rate_per_minute"`
	} `mapstructure:"auth"`

	Converter struct {
		PandocPath string        `mapstructure:"pandoc_path"`
		Timeout    time.Duration `mapstructure:"timeout"`
		WorkDir    string        `mapstructure:"work_dir"` // пусто: os.TempDir()
	} `mapstructure:"converter"`

	Templates struct {
		Dir      string `mapstructure:"dir"`
		Default  string `mapstructure:"default"`  // blank_default.pptx
		Fallback string `mapstructure:"fallback"` // template.pptx
	} `mapstructure:"templates"`

	Thumbnails struct {
		Dir             string        `mapstructure:"dir"`
		Enabled         bool          `mapstructure:"enabled"`
		LibreOfficePath string        `mapstructure:"libreoffice_path"`
		PdftoppmPath    string        `mapstructure:"pdftoppm_path"`
		Timeout         time.Duration `mapstructure:"timeout"`
	} `mapstructure:"thumbnails"`

	Storage struct {
		Provider  string `mapstructure:"provider"` // local|s3
		LocalRoot string `mapstructure:"local_root"`
		S3        struct {
			Bucket          string `mapstructure:"bucket"`
			Region          string `mapstructure:"region"`
			Endpoint        string `mapstructure:"endpoint"`
			AccessKeyID     string `mapstructure:"access_key_id"`
			SecretAccessKey string `mapstructure:"secret_access_key"`
		} `mapstructure:"s3"`
	} `mapstructure:"storage"`

	Ollama struct {
		BaseURL      string        `mapstructure:"base_url"`
		DefaultModel string        `mapstructure:"default_model"`
		Timeout      time.Duration `mapstructure:"timeout"`
	} `mapstructure:"ollama"`
}

// Load читает конфиг и проверяет обязательные параметры сервера.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read читает конфиг из env/файла с дефолтами, без проверки.
// Нужен утилитам, которым не требуются секреты сервера.
func Read() (*Config, error) {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// короткие имена, которые обычно выставляет окружение (docker, PaaS)
	_ = viper.BindEnv("server.http_port", "SERVER_HTTP_PORT", "PORT")
	_ = viper.BindEnv("database.dsn", "DATABASE_DSN", "DATABASE_URL")
	_ = viper.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET")

	viper.SetDefault("server.address", "0.0.0.0")
	viper.SetDefault("server.http_port", "4000")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 150*time.Second)
	viper.SetDefault("server.max_body_bytes", 10<<20)
	viper.SetDefault("server.cors_origins", []string{"*"})

	viper.SetDefault("logs.level", "info")
	viper.SetDefault("logs.format", "text")
	viper.SetDefault("logs.file", "")

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "")

	viper.SetDefault("auth.jwt_secret", "")
	viper.SetDefault("auth.token_ttl", 24*time.Hour)
	viper.SetDefault("auth.login_rate_per_minute", 10)

	viper.SetDefault("converter.pandoc_path", "pandoc")
	viper.SetDefault("converter.timeout", 120*time.Second)
	viper.SetDefault("converter.work_dir", "")

	viper.SetDefault("templates.dir", "./templates")
	viper.SetDefault("templates.default", "blank_default.pptx")
	viper.SetDefault("templates.fallback", "template.pptx")

	viper.SetDefault("thumbnails.dir", "./public/thumbnails")
	viper.SetDefault("thumbnails.enabled", true)
	viper.SetDefault("thumbnails.libreoffice_path", "libreoffice")
	viper.SetDefault("thumbnails.pdftoppm_path", "pdftoppm")
	viper.SetDefault("thumbnails.timeout", 120*time.Second)

	viper.SetDefault("storage.provider", "local")
	viper.SetDefault("storage.local_root", "./uploads")
	viper.SetDefault("storage.s3.bucket", "")
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.s3.endpoint", "")
	viper.SetDefault("storage.s3.access_key_id", "")
	viper.SetDefault("storage.s3.secret_access_key", "")

	viper.SetDefault("ollama.base_url", "http://localhost:11434")
	viper.SetDefault("ollama.default_model", "llama3.1:latest")
	viper.SetDefault("ollama.timeout", 300*time.Second)

	// Источник файла
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			viper.AddConfigPath(filepath.Join(xdg, "slidecraft"))
		}
		viper.AddConfigPath("/etc/slidecraft")
	}

	// Чтение файла (опционально)
	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func validate(c *Config) error {
	if s := strings.TrimSpace(c.Auth.JWTSecret); s == "" || s == "CHANGE_ME" {
		return errors.New("auth.jwt_secret must be set (not empty and not CHANGE_ME)")
	}
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Server.Address) == "" {
		return errors.New("server.address must not be empty")
	}
	if strings.TrimSpace(c.Server.HTTPPort) == "" {
		return errors.New("server.http_port must not be empty")
	}
	if c.Converter.Timeout <= 0 {
		return errors.New("converter.timeout must be positive")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	switch c.Storage.Provider {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket must be set when storage.provider=s3")
		}
	default:
		return fmt.Errorf("storage.provider %q is not supported", c.Storage.Provider)
	}
	return nil
}

// ValidateDatabase: только параметры БД (для cmd/createadmin).
func (c *Config) ValidateDatabase() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn must be set")
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
		return nil
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
}
