package configs

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "GUARD_CONFIG_PATH"
	EnvGuardEnv   = "GUARD_ENV"

	RuleStoreMemory = "memory"
	RuleStoreMySQL  = "mysql"
)

// GuardConfig 网关进程配置
type GuardConfig struct {
	Environment          string                 `yaml:"environment"`
	Server               ServerConfig           `yaml:"server"`
	Upstream             UpstreamConfig         `yaml:"upstream"`
	Cors                 CorsConfig             `yaml:"cors"`
	Headers              HeaderValidationConfig `yaml:"headers"`
	RuleStore            RuleStoreConfig        `yaml:"ruleStore"`
	DatabaseConfig       DatabaseConfig         `yaml:"database"`
	DatabaseOptionConfig DatabaseOptionConfig   `yaml:"databaseConfig"`
	RedisConfig          RedisConfig            `yaml:"redis"`
	RuleRepoConfig       RuleRepoConfig         `yaml:"ruleRepo"`
	Log                  LogConfig              `yaml:"log"`
}

type ServerConfig struct {
	HTTPAddr      string        `yaml:"httpAddr" validate:"required,hostname_port"`
	GRPCAddr      string        `yaml:"grpcAddr" validate:"omitempty,hostname_port"`
	// AdminEnabled starts the go-chassis admin API; its listen address comes from
	// chassis.yaml under CHASSIS_CONF_DIR.
	AdminEnabled  bool          `yaml:"adminEnabled"`
	WatchInterval time.Duration `yaml:"watchInterval" validate:"min=0"`
}

// UpstreamConfig 被保护的支付 API
type UpstreamConfig struct {
	URL               string        `yaml:"url" validate:"omitempty,url"`
	HyperswitchPrefix string        `yaml:"hyperswitchPrefix" validate:"omitempty,startswith=/"`
	Timeout           time.Duration `yaml:"timeout" validate:"min=0"`
}

type RuleStoreConfig struct {
	Driver string `yaml:"driver" validate:"oneof=memory mysql"`
	// SyncInterval > 0 reloads active rules from the store periodically.
	SyncInterval time.Duration `yaml:"syncInterval" validate:"min=0"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Path  string `yaml:"path"`
}

// RuleRepoConfig 封装 ruleRepoImpl 的配置参数
type RuleRepoConfig struct {
	RedisCacheRetryCount  int           `json:"redisCacheRetryCount" yaml:"redisCacheRetryCount"`
	RedisCacheRetryDelay  time.Duration `json:"redisCacheRetryDelay" yaml:"redisCacheRetryDelay"`
	SaveRuleDBRetryCount  int           `json:"saveRuleDBRetryCount" yaml:"saveRuleDBRetryCount"`
	SaveRuleDBRetryDelay  time.Duration `json:"saveRuleDBRetryDelay" yaml:"saveRuleDBRetryDelay"`
	IndexUpdateRetryCount int           `json:"indexUpdateRetryCount" yaml:"indexUpdateRetryCount"`
	IndexUpdateRetryDelay time.Duration `json:"indexUpdateRetryDelay" yaml:"indexUpdateRetryDelay"`
	IndexUpdatePoolSize   int           `json:"indexUpdatePoolSize" yaml:"indexUpdatePoolSize"`
}

// DefaultGuardConfig returns the development baseline with the in-memory rule store.
func DefaultGuardConfig(env string) *GuardConfig {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "" {
		env = EnvDevelopment
	}
	return &GuardConfig{
		Environment: env,
		Server: ServerConfig{
			HTTPAddr:      ":8080",
			WatchInterval: 5 * time.Second,
		},
		Upstream: UpstreamConfig{
			HyperswitchPrefix: "/payments",
			Timeout:           30 * time.Second,
		},
		Cors:      *CorsPreset(env),
		Headers:   *HeaderPreset(env),
		RuleStore: RuleStoreConfig{Driver: RuleStoreMemory},
		DatabaseOptionConfig: DatabaseOptionConfig{
			MaxIdleConns:    10,
			MaxOpenConns:    50,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
			LogLevel:        "warn",
			SlowThreshold:   200 * time.Millisecond,
		},
		RedisConfig: RedisConfig{
			Host:         "127.0.0.1",
			Port:         6379,
			PoolSize:     20,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		RuleRepoConfig: RuleRepoConfig{
			RedisCacheRetryCount:  3,
			RedisCacheRetryDelay:  100 * time.Millisecond,
			SaveRuleDBRetryCount:  3,
			SaveRuleDBRetryDelay:  200 * time.Millisecond,
			IndexUpdateRetryCount: 3,
			IndexUpdateRetryDelay: 100 * time.Millisecond,
			IndexUpdatePoolSize:   10,
		},
	}
}

// LoadGuardConfig 加载配置
func LoadGuardConfig() (*GuardConfig, error) {
	path, explicit := ConfigPath()
	cfg, err := ReadGuardConfig(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		// 默认路径不存在时使用当前环境的预设
		return ParseGuardConfig(nil)
	}
	return cfg, err
}

// ReadGuardConfig reads and parses one config file.
func ReadGuardConfig(path string) (*GuardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseGuardConfig(data)
}

// ParseGuardConfig overlays the document on the presets of its environment and validates it.
func ParseGuardConfig(data []byte) (*GuardConfig, error) {
	var env string
	if len(bytes.TrimSpace(data)) > 0 {
		var err error
		if env, err = peekEnvironment(data); err != nil {
			return nil, err
		}
	}
	if env == "" {
		env = os.Getenv(EnvGuardEnv)
	}

	cfg := DefaultGuardConfig(env)
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ConfigPath 获取配置文件路径, explicit 表示来自环境变量
func ConfigPath() (path string, explicit bool) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, true
	}
	env := os.Getenv(EnvGuardEnv)
	if env == "" {
		env = EnvDevelopment
	}
	return fmt.Sprintf("guard.%s.yaml", env), false
}

func LoadDbOptionConfig(c *GuardConfig) *DatabaseOptionConfig {
	return &c.DatabaseOptionConfig
}

// validate 验证配置
func (c *GuardConfig) validate() error {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if err := Validator().Struct(c.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := Validator().Struct(c.Upstream); err != nil {
		return fmt.Errorf("upstream: %w", err)
	}
	if err := Validator().Struct(c.RuleStore); err != nil {
		return fmt.Errorf("ruleStore: %w", err)
	}
	if err := Validator().Struct(c.Log); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := Validator().Var(c.Environment, "oneof=development production test"); err != nil {
		return fmt.Errorf("environment %q: %w", c.Environment, err)
	}
	if err := c.Cors.Validate(); err != nil {
		return err
	}
	if err := c.Headers.Validate(); err != nil {
		return err
	}
	if c.Environment == EnvProduction && len(c.Cors.AllowedOrigins) == 0 && len(c.Cors.TrustedDomains) == 0 {
		return errors.New("production requires cors.allowedOrigins or cors.trustedDomains")
	}

	if c.RuleStore.Driver != RuleStoreMySQL {
		return nil
	}

	// 验证数据库配置
	db := c.DatabaseConfig
	if db.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if db.Port == 0 {
		return fmt.Errorf("database port is required")
	}
	if db.Username == "" {
		return fmt.Errorf("database username is required")
	}
	if db.Database == "" {
		return fmt.Errorf("database name is required")
	}

	// 验证数据库连接池配置
	dbConfig := c.DatabaseOptionConfig
	if dbConfig.MaxIdleConns <= 0 {
		return fmt.Errorf("maxIdleConns must be positive")
	}
	if dbConfig.MaxOpenConns <= 0 {
		return fmt.Errorf("maxOpenConns must be positive")
	}
	if dbConfig.MaxOpenConns < dbConfig.MaxIdleConns {
		return fmt.Errorf("maxOpenConns must be greater than or equal to maxIdleConns")
	}
	if c.RedisConfig.Host == "" || c.RedisConfig.Port == 0 {
		return fmt.Errorf("redis host and port are required")
	}
	return nil
}
