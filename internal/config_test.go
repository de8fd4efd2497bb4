package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_APIKeyModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "apikey", Keys: []string{"mysecret"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("apikey mode with keys should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("apikey mode should be enabled")
	}
}

func TestAuthConfig_APIKeyModeNoKeys(t *testing.T) {
	cfg := AuthConfig{Mode: "apikey"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("apikey mode without keys should fail")
	}
	if !strings.Contains(err.Error(), "no keys") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Keys: []string{"x"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestRateLimitConfig_NegativeBurst(t *testing.T) {
	cfg := RateLimitConfig{PerHour: 100, BurstPerMin: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative burst should fail validation")
	}
}

func TestRateLimitConfig_DisabledSkipsBurstCheck(t *testing.T) {
	cfg := RateLimitConfig{PerHour: 0, BurstPerMin: -1}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled limiter should pass: %v", err)
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "apikey"
	cfg.Auth.Keys = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
