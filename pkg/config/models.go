package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Identity  IdentityConfig
	Guard     GuardConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Address       string
	Auth          AuthConfig
	InternalToken string `mapstructure:"internalToken"`
}

type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwtSecret"`
	HandshakeTimeout time.Duration `mapstructure:"handshakeTimeout"`
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	SendBuffer  int           `mapstructure:"sendBuffer"`
	// Sustained inbound events per second allowed per connection, with
	// EventBurst of headroom. Events beyond the budget are dropped.
	EventRate  float64 `mapstructure:"eventRate"`
	EventBurst int     `mapstructure:"eventBurst"`
}

type IdentityConfig struct {
	Store       string // "memory" or "postgres"
	DatabaseURL string `mapstructure:"databaseURL"`
}

type GuardConfig struct {
	Store    string // "memory" or "redis"
	RedisURL string `mapstructure:"redisURL"`
}

type LoggingConfig struct {
	Level string
}
