package config

import (
	"os"
	"strconv"
)

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// MQConfig holds RabbitMQ settings.
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig holds the token signing secret.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// SecretsConfig holds the key used to seal mailbox credentials at rest.
// The key is 32 bytes, hex encoded (64 characters).
type SecretsConfig struct {
	CredentialKey string `yaml:"credential_key"`
}

// SyncConfig holds mailbox sync tunables.
type SyncConfig struct {
	// MaxConcurrent caps simultaneous IMAP sessions across a batch run.
	MaxConcurrent int `yaml:"max_concurrent"`
	// ConnectTimeoutSec bounds dial+login, OpTimeoutSec every later command.
	ConnectTimeoutSec int `yaml:"connect_timeout_sec"`
	OpTimeoutSec      int `yaml:"op_timeout_sec"`
	// LeaseTTLSec is the per-account sync lease lifetime.
	LeaseTTLSec int `yaml:"lease_ttl_sec"`
	// ScheduleIntervalSec is the background scheduler tick; each tick syncs
	// accounts whose per-account interval has elapsed.
	ScheduleIntervalSec int `yaml:"schedule_interval_sec"`
}

// OverrideDBFromEnv applies DB_* environment overrides.
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv applies MQ_* environment overrides.
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv applies REDIS_* environment overrides.
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideJWTFromEnv applies the JWT_SECRET environment override.
func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

// OverrideServerFromEnv applies the SERVER_PORT environment override.
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideSecretsFromEnv applies the CREDENTIAL_KEY environment override.
func OverrideSecretsFromEnv(cfg *SecretsConfig) {
	if key := os.Getenv("CREDENTIAL_KEY"); key != "" {
		cfg.CredentialKey = key
	}
}

// OverrideSyncFromEnv applies SYNC_* environment overrides.
func OverrideSyncFromEnv(cfg *SyncConfig) {
	if v := os.Getenv("SYNC_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrent = n
		}
	}
	if v := os.Getenv("SYNC_CONNECT_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ConnectTimeoutSec = n
		}
	}
	if v := os.Getenv("SYNC_OP_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OpTimeoutSec = n
		}
	}
	if v := os.Getenv("SYNC_LEASE_TTL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LeaseTTLSec = n
		}
	}
	if v := os.Getenv("SYNC_SCHEDULE_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ScheduleIntervalSec = n
		}
	}
}
