package configs

import (
	"net"
	"strconv"
	"time"
)

// RedisConfig 规则缓存 Redis 配置
type RedisConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	Password     string        `json:"-" yaml:"password"`
	Database     int           `json:"database" yaml:"db"`
	PoolSize     int           `json:"poolSize" yaml:"poolSize"`
	MinIdleConns int           `json:"minIdleConns" yaml:"minIdleConns"`
	MaxRetries   int           `json:"maxRetries" yaml:"maxRetries"`
	DialTimeout  time.Duration `json:"dialTimeout" yaml:"dialTimeout"`
	ReadTimeout  time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	PoolTimeout  time.Duration `json:"poolTimeout" yaml:"poolTimeout"`
	IdleTimeout  time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
	// RuleTTL bounds how long a cached rule definition lives; 0 keeps it until deleted.
	RuleTTL time.Duration `json:"ruleTTL" yaml:"ruleTTL"`
}

func (c *RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
