package configs

import (
	"fmt"
	"time"
)

// DatabaseConfig 规则库 MySQL 连接配置
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DatabaseOptionConfig 数据库连接池配置
type DatabaseOptionConfig struct {
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `yaml:"connMaxIdleTime"`
	LogLevel        string        `yaml:"logLevel"` // silent | error | warn | info
	SlowThreshold   time.Duration `yaml:"slowThreshold"`
	AutoMigrate     bool          `yaml:"autoMigrate"`
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return c.dsn(c.Password)
}

// SafeDSN is GetDSN with the password masked, for logs.
func (c *DatabaseConfig) SafeDSN() string {
	if c.Password == "" {
		return c.dsn("")
	}
	return c.dsn("***")
}

func (c *DatabaseConfig) dsn(password string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.Username,
		password,
		c.Host,
		c.Port,
		c.Database,
	)
}
