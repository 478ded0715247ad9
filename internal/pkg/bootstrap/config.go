// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"tourhub/internal/pkg/nacos"
)

// Config 是进程的全部配置。优先级：环境变量 > Nacos 配置中心 > 配置文件 > 默认值
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	HTTP struct {
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"http"`

	Database struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		LogLevel        string        `yaml:"log_level"`
		AutoMigrate     bool          `yaml:"auto_migrate"`
	} `yaml:"database"`

	Redis struct {
		Addr           string        `yaml:"addr"`
		Password       string        `yaml:"password"`
		DB             int           `yaml:"db"`
		IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret            string        `yaml:"jwt_secret"`
		TokenTTL             time.Duration `yaml:"token_ttl"`
		DefaultAdminEmail    string        `yaml:"default_admin_email"`
		DefaultAdminPassword string        `yaml:"default_admin_password"`
	} `yaml:"auth"`

	Upload struct {
		Dir       string `yaml:"dir"`
		URLPrefix string `yaml:"url_prefix"`
		MaxBytes  int64  `yaml:"max_bytes"`
	} `yaml:"upload"`

	Booking struct {
		// LockBackend 取值 none 或 zookeeper
		LockBackend        string        `yaml:"lock_backend"`
		LockTimeout        time.Duration `yaml:"lock_timeout"`
		ReactivationPolicy string        `yaml:"reactivation_policy"`
		TransitionRule     string        `yaml:"transition_rule"`
	} `yaml:"booking"`

	Infra struct {
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
		} `yaml:"kafka"`
		Zookeeper struct {
			Servers        []string      `yaml:"servers"`
			SessionTimeout time.Duration `yaml:"session_timeout"`
		} `yaml:"zookeeper"`
		Nacos struct {
			ServerAddrs string `yaml:"server_addrs"`
			Namespace   string `yaml:"namespace"`
			Group       string `yaml:"group"`
			DataID      string `yaml:"data_id"`
			Register    bool   `yaml:"register"`
		} `yaml:"nacos"`
	} `yaml:"infra"`
}

// Default 返回可以在本地直接运行的默认配置
func Default() *Config {
	c := &Config{}
	c.App.Name = "tourhub-api"
	c.App.Port = 5000
	c.Log.Level = "info"
	c.HTTP.ReadTimeout = 15 * time.Second
	c.HTTP.WriteTimeout = 30 * time.Second
	c.HTTP.ShutdownTimeout = 10 * time.Second
	c.HTTP.CORSOrigins = []string{"*"}
	c.Database.DSN = "root:root@tcp(localhost:3306)/tourhub"
	c.Database.MaxOpenConns = 20
	c.Database.MaxIdleConns = 10
	c.Database.ConnMaxLifetime = 30 * time.Minute
	c.Database.LogLevel = "warn"
	c.Database.AutoMigrate = true
	c.Redis.IdempotencyTTL = 24 * time.Hour
	c.App.Env = EnvDev
	c.Auth.JWTSecret = DefaultJWTSecret
	c.Auth.TokenTTL = 30 * 24 * time.Hour
	c.Auth.DefaultAdminEmail = "admin@example.com"
	c.Upload.Dir = "public/images"
	c.Upload.URLPrefix = "/images"
	c.Upload.MaxBytes = 5 << 20
	c.Booking.LockBackend = "none"
	c.Booking.LockTimeout = 5 * time.Second
	c.Booking.ReactivationPolicy = "strict"
	c.Infra.Kafka.Topic = "tourhub.orders"
	c.Infra.Zookeeper.SessionTimeout = 10 * time.Second
	c.Infra.Nacos.Group = "DEFAULT_GROUP"
	return c
}

// Load 在 base 之上叠加一个 YAML 文件。文件不存在时返回 base 本身
func Load(base *Config, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return base, nil
}

// applyEnv 用环境变量覆盖配置
func applyEnv(c *Config) error {
	c.App.Name = getEnv("TOURHUB_APP_NAME", c.App.Name)
	c.App.Env = getEnv("TOURHUB_ENV", c.App.Env)
	c.Log.Level = getEnv("TOURHUB_LOG_LEVEL", c.Log.Level)
	c.Database.DSN = getEnv("TOURHUB_DATABASE_DSN", c.Database.DSN)
	c.Redis.Addr = getEnv("TOURHUB_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("TOURHUB_REDIS_PASSWORD", c.Redis.Password)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.DefaultAdminEmail = getEnv("TOURHUB_DEFAULT_ADMIN_EMAIL", c.Auth.DefaultAdminEmail)
	c.Auth.DefaultAdminPassword = getEnv("TOURHUB_DEFAULT_ADMIN_PASSWORD", c.Auth.DefaultAdminPassword)
	c.Upload.Dir = getEnv("TOURHUB_UPLOAD_DIR", c.Upload.Dir)
	c.Booking.LockBackend = getEnv("TOURHUB_LOCK_BACKEND", c.Booking.LockBackend)
	c.Booking.ReactivationPolicy = getEnv("TOURHUB_REACTIVATION_POLICY", c.Booking.ReactivationPolicy)
	c.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", c.Infra.Jaeger.Endpoint)
	c.Infra.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Infra.Kafka.Topic)
	c.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", c.Infra.Nacos.ServerAddrs)
	c.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", c.Infra.Nacos.Namespace)
	c.Infra.Nacos.Group = getEnv("NACOS_GROUP", c.Infra.Nacos.Group)
	c.Infra.Nacos.DataID = getEnv("NACOS_DATA_ID", c.Infra.Nacos.DataID)

	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		c.Infra.Kafka.Brokers = splitList(v)
	}
	if v := getEnv("ZOOKEEPER_SERVERS", ""); v != "" {
		c.Infra.Zookeeper.Servers = splitList(v)
	}
	if v := getEnv("TOURHUB_CORS_ORIGINS", ""); v != "" {
		c.HTTP.CORSOrigins = splitList(v)
	}
	if v := getEnv("PORT", ""); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Errorf("invalid PORT %q", v)
		}
		c.App.Port = port
	}
	return nil
}

// applyNacos 从配置中心读取 YAML 文档叠加到配置上。未配置 data_id 时跳过
func applyNacos(c *Config) error {
	n := c.Infra.Nacos
	if n.ServerAddrs == "" || n.DataID == "" {
		return nil
	}
	serverConfigs, err := nacos.ParseServerAddrs(n.ServerAddrs)
	if err != nil {
		return err
	}
	content, err := nacos.FetchConfig(serverConfigs, nacos.NewClientConfig(n.Namespace), n.DataID, n.Group)
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		log.Warn().Str("data_id", n.DataID).Msg("⚠️ nacos config is empty, keeping local config")
		return nil
	}
	if err := yaml.Unmarshal([]byte(content), c); err != nil {
		return errors.Wrapf(err, "parse nacos config %s", n.DataID)
	}
	log.Info().Str("data_id", n.DataID).Msg("✅ config loaded from nacos")
	return nil
}

// Validate 校验启动所需的配置
func (c *Config) Validate() error {
	switch {
	case c.App.Port <= 0 || c.App.Port > 65535:
		return errors.Errorf("invalid port %d", c.App.Port)
	case c.Database.DSN == "":
		return errors.New("database.dsn is required")
	case c.Auth.JWTSecret == "":
		return errors.New("auth.jwt_secret is required")
	case c.Auth.JWTSecret == DefaultJWTSecret && c.App.Env != EnvDev:
		return errors.Errorf("auth.jwt_secret must be changed when app.env is %q", c.App.Env)
	case c.Booking.LockBackend != "none" && c.Booking.LockBackend != "zookeeper":
		return errors.Errorf("booking.lock_backend must be none or zookeeper, got %q", c.Booking.LockBackend)
	case c.Booking.LockBackend == "zookeeper" && len(c.Infra.Zookeeper.Servers) == 0:
		return errors.New("infra.zookeeper.servers is required when lock_backend is zookeeper")
	}
	return nil
}

const (
	// EnvDev 是本地开发环境
	EnvDev = "dev"
	// DefaultJWTSecret 是占位密钥，只能在 dev 环境使用
	DefaultJWTSecret = "change-me"
)

var current atomic.Pointer[Config]

// Init 按优先级加载配置并设为当前配置。配置文件路径取自 TOURHUB_CONFIG
func Init() (*Config, error) {
	cfg, err := Load(Default(), getEnv("TOURHUB_CONFIG", "config.yaml"))
	if err != nil {
		return nil, err
	}
	// 先叠加一次环境变量，使 Nacos 地址本身可以来自环境变量
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := applyNacos(cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == DefaultJWTSecret {
		log.Warn().Msg("⚠️ auth.jwt_secret is the built-in placeholder, set JWT_SECRET before deploying")
	}
	current.Store(cfg)
	return cfg, nil
}

// GetCurrentConfig 返回当前生效的配置，Init 之前返回默认配置
func GetCurrentConfig() *Config {
	if c := current.Load(); c != nil {
		return c
	}
	return Default()
}

// getEnv 从环境变量中读取配置
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
