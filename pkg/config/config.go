// Package config holds the environment-driven configuration shared by the
// rolegate commands.
package config

import (
	"fmt"
	"time"
)

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `env:"ROLEGATE_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"ROLEGATE_PG_PORT" env-default:"5432"`
	Database string `env:"ROLEGATE_PG_DATABASE" env-default:"rolegate_db"`
	User     string `env:"ROLEGATE_PG_USER" env-default:"rolegate"`
	Password string `env:"ROLEGATE_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"ROLEGATE_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL.
func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

// JwtConfig holds token signing and lifetime settings. Expiries default to
// one hour for access tokens and 24 hours for refresh tokens.
type JwtConfig struct {
	Secret             string        `env:"ROLEGATE_JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer             string        `env:"ROLEGATE_JWT_ISSUER" env-default:"rolegate"`
	Audience           string        `env:"ROLEGATE_JWT_AUDIENCE" env-default:"rolegate"`
	AccessTokenExpiry  time.Duration `env:"ROLEGATE_ACCESS_TOKEN_EXPIRY" env-default:"1h"`
	RefreshTokenExpiry time.Duration `env:"ROLEGATE_REFRESH_TOKEN_EXPIRY" env-default:"24h"`
}

// RedisConfig points at the refresh-token blacklist store. An empty Addr
// disables Redis; logout then degrades to client-side token discard.
type RedisConfig struct {
	Addr     string `env:"ROLEGATE_REDIS_ADDR" env-default:""`
	Password string `env:"ROLEGATE_REDIS_PASSWORD" env-default:""`
	DB       int    `env:"ROLEGATE_REDIS_DB" env-default:"0"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `env:"ROLEGATE_HOST" env-default:"0.0.0.0"`
	Port uint16 `env:"ROLEGATE_PORT" env-default:"4000"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Config struct {
	Database DatabaseConfig
	Jwt      JwtConfig
	Redis    RedisConfig
	Server   ServerConfig
	// SeedDefaults creates the ADMIN/USER roles and the default permission
	// catalog on startup when missing.
	SeedDefaults bool `env:"ROLEGATE_SEED_DEFAULTS" env-default:"true"`
}
