// Package config loads server and client configuration.
//
// Values come from (lowest to highest precedence): built-in defaults, a YAML file,
// FIELDSYNC_* environment variables (nested keys joined with "_", e.g. FIELDSYNC_JWT_SECRET).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/iudanet/fieldsync/internal/models"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "FIELDSYNC"

// Media backends
const (
	MediaBackendFile = "file"
	MediaBackendS3   = "s3"
)

// LogConfig настройки логирования
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug|info|warn|error
	Format string `mapstructure:"format" yaml:"format"` // text|json
}

// JWTConfig настройки токенов доступа
type JWTConfig struct {
	Secret         string        `mapstructure:"secret" yaml:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl" yaml:"access_token_ttl"`
}

// EnrollmentConfig ключи регистрации устройств по ролям.
// Пустой ключ запрещает регистрацию с этой ролью.
type EnrollmentConfig struct {
	DeviceKey   string `mapstructure:"device_key" yaml:"device_key"`
	OperatorKey string `mapstructure:"operator_key" yaml:"operator_key"`
}

// Key возвращает ключ регистрации для роли
func (e EnrollmentConfig) Key(role models.Role) string {
	switch role {
	case models.RoleDevice:
		return e.DeviceKey
	case models.RoleOperator:
		return e.OperatorKey
	default:
		return ""
	}
}

// SyncConfig ограничения протокола синхронизации
type SyncConfig struct {
	MaxBatchSize    int `mapstructure:"max_batch_size" yaml:"max_batch_size"`
	PullPageSize    int `mapstructure:"pull_page_size" yaml:"pull_page_size"`
	MaxPullPageSize int `mapstructure:"max_pull_page_size" yaml:"max_pull_page_size"`
}

// RateLimitConfig ограничение запросов к auth эндпоинтам
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests" yaml:"requests"`
	Window   time.Duration `mapstructure:"window" yaml:"window"`
}

// S3Config настройки S3-совместимого хранилища медиа
type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
}

// MediaConfig настройки загрузки медиа
type MediaConfig struct {
	Backend   string   `mapstructure:"backend" yaml:"backend"`
	Dir       string   `mapstructure:"dir" yaml:"dir"`
	S3        S3Config `mapstructure:"s3" yaml:"s3"`
	ChunkSize int64    `mapstructure:"chunk_size" yaml:"chunk_size"`
	MaxSize   int64    `mapstructure:"max_size" yaml:"max_size"`
}

// ServerConfig конфигурация сервера синхронизации
type ServerConfig struct {
	Address         string           `mapstructure:"address" yaml:"address"`
	DatabasePath    string           `mapstructure:"database_path" yaml:"database_path"`
	JWT             JWTConfig        `mapstructure:"jwt" yaml:"jwt"`
	Enrollment      EnrollmentConfig `mapstructure:"enrollment" yaml:"enrollment"`
	Log             LogConfig        `mapstructure:"log" yaml:"log"`
	Media           MediaConfig      `mapstructure:"media" yaml:"media"`
	RateLimit       RateLimitConfig  `mapstructure:"rate_limit" yaml:"rate_limit"`
	Sync            SyncConfig       `mapstructure:"sync" yaml:"sync"`
	ShutdownTimeout time.Duration    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ClientConfig конфигурация клиента (агент устройства / CLI оператора)
type ClientConfig struct {
	ServerURL        string        `mapstructure:"server_url" yaml:"server_url"`
	DatabasePath     string        `mapstructure:"database_path" yaml:"database_path"`
	DeviceID         string        `mapstructure:"device_id" yaml:"device_id"`
	Log              LogConfig     `mapstructure:"log" yaml:"log"`
	SyncInterval     time.Duration `mapstructure:"sync_interval" yaml:"sync_interval"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	PhaseTimeout     time.Duration `mapstructure:"phase_timeout" yaml:"phase_timeout"` // дедлайн одной фазы цикла, 0 - без дедлайна
	BatchSize        int           `mapstructure:"batch_size" yaml:"batch_size"`
	PullPageSize     int           `mapstructure:"pull_page_size" yaml:"pull_page_size"`
	MediaConcurrency int           `mapstructure:"media_concurrency" yaml:"media_concurrency"`
	Compress         bool          `mapstructure:"compress" yaml:"compress"`
	Listen           bool          `mapstructure:"listen" yaml:"listen"`
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("address", "localhost:8080")
	v.SetDefault("database_path", "fieldsync.db")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	v.SetDefault("enrollment.device_key", "")
	v.SetDefault("enrollment.operator_key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("media.backend", MediaBackendFile)
	v.SetDefault("media.dir", "media")
	v.SetDefault("media.chunk_size", 1<<20)
	v.SetDefault("media.max_size", 64<<20)
	v.SetDefault("media.s3.bucket", "")
	v.SetDefault("media.s3.region", "us-east-1")
	v.SetDefault("media.s3.endpoint", "")
	v.SetDefault("media.s3.prefix", "")
	v.SetDefault("media.s3.access_key_id", "")
	v.SetDefault("media.s3.secret_access_key", "")
	v.SetDefault("media.s3.use_path_style", false)
	v.SetDefault("rate_limit.requests", 5)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("sync.max_batch_size", 500)
	v.SetDefault("sync.pull_page_size", 500)
	v.SetDefault("sync.max_pull_page_size", 1000)
	v.SetDefault("shutdown_timeout", 10*time.Second)
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("database_path", "fieldsync-client.db")
	v.SetDefault("device_id", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("sync_interval", 30*time.Second)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("phase_timeout", 5*time.Minute)
	v.SetDefault("batch_size", 100)
	v.SetDefault("pull_page_size", 500)
	v.SetDefault("media_concurrency", 2)
	v.SetDefault("compress", true)
	v.SetDefault("listen", true)
}

func newViper(path string, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return v, nil
}

// LoadServer загружает конфигурацию сервера. path может быть пустым.
func LoadServer(path string) (*ServerConfig, error) {
	v, err := newViper(path, setServerDefaults)
	if err != nil {
		return nil, err
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient загружает конфигурацию клиента. path может быть пустым.
func LoadClient(path string) (*ClientConfig, error) {
	v, err := newViper(path, setClientDefaults)
	if err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode client config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет согласованность конфигурации сервера
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.Address == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("jwt.access_token_ttl must be positive"))
	}
	if c.Sync.MaxBatchSize <= 0 {
		errs = append(errs, errors.New("sync.max_batch_size must be positive"))
	}
	if c.Sync.PullPageSize <= 0 || c.Sync.MaxPullPageSize < c.Sync.PullPageSize {
		errs = append(errs, errors.New("sync.pull_page_size must be positive and not exceed sync.max_pull_page_size"))
	}
	if c.Media.ChunkSize <= 0 || c.Media.MaxSize < c.Media.ChunkSize {
		errs = append(errs, errors.New("media.chunk_size must be positive and not exceed media.max_size"))
	}
	switch c.Media.Backend {
	case MediaBackendFile:
		if c.Media.Dir == "" {
			errs = append(errs, errors.New("media.dir is required for the file backend"))
		}
	case MediaBackendS3:
		if c.Media.S3.Bucket == "" {
			errs = append(errs, errors.New("media.s3.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown media.backend %q", c.Media.Backend))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	return nil
}

// Validate проверяет согласованность конфигурации клиента
func (c *ClientConfig) Validate() error {
	var errs []error
	if c.ServerURL == "" {
		errs = append(errs, errors.New("server_url is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, errors.New("sync_interval must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.PhaseTimeout < 0 {
		errs = append(errs, errors.New("phase_timeout cannot be negative"))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, errors.New("batch_size must be positive"))
	}
	if c.PullPageSize <= 0 {
		errs = append(errs, errors.New("pull_page_size must be positive"))
	}
	if c.MediaConcurrency <= 0 {
		errs = append(errs, errors.New("media_concurrency must be positive"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}
	return nil
}

const redacted = "<redacted>"

// Redacted возвращает копию без секретов, пригодную для вывода
func (c ServerConfig) Redacted() ServerConfig {
	if c.JWT.Secret != "" {
		c.JWT.Secret = redacted
	}
	if c.Enrollment.DeviceKey != "" {
		c.Enrollment.DeviceKey = redacted
	}
	if c.Enrollment.OperatorKey != "" {
		c.Enrollment.OperatorKey = redacted
	}
	if c.Media.S3.SecretAccessKey != "" {
		c.Media.S3.SecretAccessKey = redacted
	}
	return c
}

// Render сериализует конфигурацию в YAML
func Render(cfg any) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}
