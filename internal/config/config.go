package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Cascade  CascadeConfig  `mapstructure:"cascade" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Digest   DigestConfig   `mapstructure:"digest" validate:"required"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
// Driver "sqlite" is meant for local runs; it serializes all writers.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	URL          string `mapstructure:"url" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// AuthConfig contains the settings for validating and minting access tokens.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0,lte=44640"`
}

// CascadeConfig controls priority cascade behaviour.
type CascadeConfig struct {
	// Mode is until_free or single_step.
	Mode string `mapstructure:"mode" validate:"required,oneof=until_free single_step"`
	// MaxRetries is how many times a write is retried after a lock timeout,
	// deadlock or serialization failure.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	// LockTimeoutMS bounds how long a write waits for row locks (Postgres only). Zero disables it.
	LockTimeoutMS int `mapstructure:"lock_timeout_ms" validate:"gte=0"`
}

// RedisConfig configures the idempotency key store. An empty URL disables it.
type RedisConfig struct {
	URL                   string `mapstructure:"url" validate:"omitempty,url"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds" validate:"gt=0"`
}

// DigestConfig configures the periodic pending-task email.
type DigestConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Schedule    string `mapstructure:"schedule" validate:"required"`
	WorkerCount int    `mapstructure:"worker_count" validate:"gt=0"`
	QueueSize   int    `mapstructure:"queue_size" validate:"gt=0"`
	From        string `mapstructure:"from" validate:"required,email"`
}

// SMTPConfig configures outbound mail. An empty Host selects the log mailer.
type SMTPConfig struct {
	Host     string `mapstructure:"host" validate:"omitempty,hostname|ip"`
	Port     int    `mapstructure:"port" validate:"omitempty,gt=0,lt=65536"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}
