package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	Auth         AuthConfig
	Verification VerificationConfig
	Email        EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies string // Comma-separated CIDRs whose X-Forwarded-For is honoured
}

type AuthConfig struct {
	JWTSecret               string
	JWTPrivateKeyPath       string // RS256 signing key (PEM)
	JWTPublicKeyPath        string // RS256 verification key or certificate (PEM)
	JWTIssuer               string
	AccessTokenExpiry       time.Duration
	RefreshTokenExpiry      time.Duration
	RememberMeAccessExpiry  time.Duration
	RememberMeRefreshExpiry time.Duration
	MaxLoginAttempts        int
	LockDuration            time.Duration
	BcryptCost              int
	TimingDelayBaseMs       int
	TimingDelayRandomMs     int
}

type VerificationConfig struct {
	DefaultExpiryMinutes int
	MinExpiryMinutes     int
	MaxExpiryMinutes     int
	ResendInterval       time.Duration
	CleanupInterval      time.Duration
}

type EmailConfig struct {
	Provider    string // "ses" or "log"
	AWSRegion   string
	FromAddress string
}

// UsesAsymmetricKeys reports whether RS256 key files are configured
func (c *AuthConfig) UsesAsymmetricKeys() bool {
	return c.JWTPrivateKeyPath != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "sentinel"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies: getEnv("TRUSTED_PROXIES", ""),
		},
		Auth: AuthConfig{
			JWTSecret:               getEnv("JWT_SECRET", ""),
			JWTPrivateKeyPath:       getEnv("JWT_PRIVATE_KEY_PATH", ""),
			JWTPublicKeyPath:        getEnv("JWT_PUBLIC_KEY_PATH", ""),
			JWTIssuer:               getEnv("JWT_ISSUER", "sentinel"),
			AccessTokenExpiry:       getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 24*time.Hour),
			RefreshTokenExpiry:      getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			RememberMeAccessExpiry:  getEnvAsDuration("REMEMBER_ME_ACCESS_TOKEN_EXPIRY", 7*24*time.Hour),
			RememberMeRefreshExpiry: getEnvAsDuration("REMEMBER_ME_REFRESH_TOKEN_EXPIRY", 30*24*time.Hour),
			MaxLoginAttempts:        getEnvAsInt("MAX_LOGIN_ATTEMPTS", 5),
			LockDuration:            getEnvAsDuration("LOCK_DURATION", 15*time.Minute),
			BcryptCost:              getEnvAsInt("BCRYPT_COST", 12),
			TimingDelayBaseMs:       getEnvAsInt("TIMING_DELAY_BASE_MS", 100),
			TimingDelayRandomMs:     getEnvAsInt("TIMING_DELAY_RANDOM_MS", 50),
		},
		Verification: VerificationConfig{
			DefaultExpiryMinutes: getEnvAsInt("VERIFICATION_CODE_EXPIRY_MINUTES", 15),
			MinExpiryMinutes:     getEnvAsInt("VERIFICATION_MIN_EXPIRY_MINUTES", 5),
			MaxExpiryMinutes:     getEnvAsInt("VERIFICATION_MAX_EXPIRY_MINUTES", 60),
			ResendInterval:       getEnvAsDuration("VERIFICATION_RESEND_INTERVAL", 60*time.Second),
			CleanupInterval:      getEnvAsDuration("VERIFICATION_CLEANUP_INTERVAL", 1*time.Hour),
		},
		Email: EmailConfig{
			Provider:    strings.ToLower(getEnv("EMAIL_PROVIDER", "log")),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "no-reply@example.com"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSigningKeys(&cfg.Auth, env); err != nil {
		return nil, err
	}

	if err := validateLockout(&cfg.Auth); err != nil {
		return nil, err
	}

	if err := validateVerification(&cfg.Verification); err != nil {
		return nil, err
	}

	switch cfg.Email.Provider {
	case "ses", "log":
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be one of: ses, log (got %q)", cfg.Email.Provider)
	}

	return cfg, nil
}

// validateSigningKeys requires a secret unless RS256 keys are configured.
// Outside production the secret is still needed as the fallback when key files fail to load.
func validateSigningKeys(cfg *AuthConfig, env string) error {
	if cfg.UsesAsymmetricKeys() {
		if cfg.JWTPublicKeyPath == "" {
			return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required when JWT_PRIVATE_KEY_PATH is set")
		}
		if env == "production" && cfg.JWTSecret == "" {
			return nil
		}
	}

	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	return validateJWTSecret(cfg.JWTSecret, env)
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func validateLockout(cfg *AuthConfig) error {
	if cfg.MaxLoginAttempts < 1 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be at least 1 (got %d)", cfg.MaxLoginAttempts)
	}
	if cfg.LockDuration <= 0 {
		return fmt.Errorf("LOCK_DURATION must be positive (got %s)", cfg.LockDuration)
	}
	if cfg.AccessTokenExpiry <= 0 || cfg.RefreshTokenExpiry <= 0 {
		return fmt.Errorf("token expiries must be positive")
	}
	return nil
}

func validateVerification(cfg *VerificationConfig) error {
	if cfg.MinExpiryMinutes < 1 || cfg.MinExpiryMinutes > cfg.MaxExpiryMinutes {
		return fmt.Errorf("verification expiry bounds are invalid: [%d,%d]", cfg.MinExpiryMinutes, cfg.MaxExpiryMinutes)
	}
	if cfg.DefaultExpiryMinutes < cfg.MinExpiryMinutes || cfg.DefaultExpiryMinutes > cfg.MaxExpiryMinutes {
		return fmt.Errorf("VERIFICATION_CODE_EXPIRY_MINUTES must be within [%d,%d] (got %d)",
			cfg.MinExpiryMinutes, cfg.MaxExpiryMinutes, cfg.DefaultExpiryMinutes)
	}
	if cfg.ResendInterval < 0 {
		return fmt.Errorf("VERIFICATION_RESEND_INTERVAL cannot be negative")
	}
	if cfg.CleanupInterval <= 0 {
		return fmt.Errorf("VERIFICATION_CLEANUP_INTERVAL must be positive")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
