package config

import (
	"os"
	"testing"
	"time"
)

func TestServerConfig_Timeouts_Defaults(t *testing.T) {
	// Set required env vars
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	// Defaults used when the SERVER_*_TIMEOUT variables are unset
	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestServerConfig_Timeouts_CustomValues(t *testing.T) {
	// Set required env vars
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("SERVER_READ_TIMEOUT", "30s")
	os.Setenv("SERVER_WRITE_TIMEOUT", "45s")
	os.Setenv("SERVER_IDLE_TIMEOUT", "120s")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	// Verify custom timeout values
	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 30 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 45 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 120 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestServerConfig_Timeouts_InvalidDuration(t *testing.T) {
	// Set required env vars
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	// Invalid duration should fall back to default
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout with invalid value: got %v, want %v", cfg.Server.ReadTimeout, 15*time.Second)
	}
}

func TestServerConfig_Timeouts_PartialCustom(t *testing.T) {
	// Set required env vars and only some timeouts
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("SERVER_READ_TIMEOUT", "25s")
	// WriteTimeout and IdleTimeout not set, should use defaults
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	// Verify mixed custom and default values
	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout (custom)", cfg.Server.ReadTimeout, 25 * time.Second},
		{"WriteTimeout (default)", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout (default)", cfg.Server.IdleTimeout, 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestServerConfig_Timeouts_ZeroValues(t *testing.T) {
	// Set required env vars
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("SERVER_READ_TIMEOUT", "0s")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	// Explicitly setting 0s should be honored (no timeout)
	if cfg.Server.ReadTimeout != 0 {
		t.Errorf("ReadTimeout with 0s: got %v, want 0", cfg.Server.ReadTimeout)
	}
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Clearenv()
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
}

func TestAuthConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.MaxLoginAttempts != 5 {
		t.Errorf("MaxLoginAttempts: got %d, want 5", cfg.Auth.MaxLoginAttempts)
	}
	if cfg.Auth.LockDuration != 15*time.Minute {
		t.Errorf("LockDuration: got %v, want 15m", cfg.Auth.LockDuration)
	}
	if cfg.Auth.AccessTokenExpiry != 24*time.Hour {
		t.Errorf("AccessTokenExpiry: got %v, want 24h", cfg.Auth.AccessTokenExpiry)
	}
	if cfg.Auth.RefreshTokenExpiry != 7*24*time.Hour {
		t.Errorf("RefreshTokenExpiry: got %v, want 168h", cfg.Auth.RefreshTokenExpiry)
	}
	if cfg.Auth.RememberMeAccessExpiry != 7*24*time.Hour {
		t.Errorf("RememberMeAccessExpiry: got %v, want 168h", cfg.Auth.RememberMeAccessExpiry)
	}
	if cfg.Auth.RememberMeRefreshExpiry != 30*24*time.Hour {
		t.Errorf("RememberMeRefreshExpiry: got %v, want 720h", cfg.Auth.RememberMeRefreshExpiry)
	}
	if cfg.Verification.DefaultExpiryMinutes != 15 {
		t.Errorf("DefaultExpiryMinutes: got %d, want 15", cfg.Verification.DefaultExpiryMinutes)
	}
	if cfg.Verification.ResendInterval != 60*time.Second {
		t.Errorf("ResendInterval: got %v, want 60s", cfg.Verification.ResendInterval)
	}
	if cfg.Email.Provider != "log" {
		t.Errorf("Email.Provider: got %q, want log", cfg.Email.Provider)
	}
	if !cfg.Database.AutoMigrate {
		t.Errorf("Database.AutoMigrate: got false, want true")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing db password", map[string]string{"DB_PASSWORD": ""}},
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}},
		{"short jwt secret", map[string]string{"JWT_SECRET": "short"}},
		{"short jwt secret in production", map[string]string{"ENV": "production", "JWT_SECRET": "only-twenty-chars-xx"}},
		{"zero max attempts", map[string]string{"MAX_LOGIN_ATTEMPTS": "0"}},
		{"negative lock duration", map[string]string{"LOCK_DURATION": "-1m"}},
		{"default expiry above max", map[string]string{"VERIFICATION_CODE_EXPIRY_MINUTES": "90"}},
		{"min above max", map[string]string{"VERIFICATION_MIN_EXPIRY_MINUTES": "70"}},
		{"unknown email provider", map[string]string{"EMAIL_PROVIDER": "carrier-pigeon"}},
		{"private key without public key", map[string]string{"JWT_PRIVATE_KEY_PATH": "/keys/private.pem"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			defer os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			if _, err := Load(); err == nil {
				t.Errorf("Load() = nil, want error")
			}
		})
	}
}

func TestLoad_AsymmetricKeysInProductionWithoutSecret(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("ENV", "production")
	os.Setenv("JWT_PRIVATE_KEY_PATH", "/keys/private.pem")
	os.Setenv("JWT_PUBLIC_KEY_PATH", "/keys/public.pem")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if !cfg.Auth.UsesAsymmetricKeys() {
		t.Errorf("UsesAsymmetricKeys() = false, want true")
	}
}

func TestGetEnvAsBool(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	os.Setenv("FLAG_TRUE", "true")
	os.Setenv("FLAG_BAD", "maybe")

	if !getEnvAsBool("FLAG_TRUE", false) {
		t.Errorf("FLAG_TRUE: got false, want true")
	}
	if !getEnvAsBool("FLAG_BAD", true) {
		t.Errorf("FLAG_BAD should fall back to default true")
	}
	if getEnvAsBool("FLAG_MISSING", false) {
		t.Errorf("FLAG_MISSING should fall back to default false")
	}
}
