package config

import (
	"testing"
	"time"
)

// TestLoadDefaults tests the defaults with no environment set
func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Connection.ServerURL != "ws://localhost:5000/ws" {
		t.Errorf("Expected default server URL, got %q", cfg.Connection.ServerURL)
	}
	if cfg.Connection.ReconnectDelay != 500*time.Millisecond {
		t.Errorf("Expected 500ms reconnect delay, got %v", cfg.Connection.ReconnectDelay)
	}
	if cfg.Input.AimPeriod != 200*time.Millisecond {
		t.Errorf("Expected 200ms aim period, got %v", cfg.Input.AimPeriod)
	}
	if cfg.Input.WeaponSlots != 4 {
		t.Errorf("Expected 4 weapon slots, got %d", cfg.Input.WeaponSlots)
	}
	if cfg.Scene.DefaultSizePercent != 6 {
		t.Errorf("Expected 6%% default size, got %v", cfg.Scene.DefaultSizePercent)
	}
	if cfg.Debug.ListenAddr != "127.0.0.1:6060" {
		t.Errorf("Expected localhost debug address, got %q", cfg.Debug.ListenAddr)
	}
}

// TestLoadFromEnv tests environment overrides
func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PILOT_SERVER_URL", "ws://example:9000/ws")
	t.Setenv("PILOT_PLAYER_NAME", "  Ace  ")
	t.Setenv("PILOT_RECONNECT_DELAY_MS", "1500")
	t.Setenv("PILOT_AIM_PERIOD_MS", "100")
	t.Setenv("PILOT_WEAPON_SLOTS", "6")
	t.Setenv("PILOT_RESEND_HELD", "true")
	t.Setenv("PILOT_DEBUG_COLLIDERS", "1")
	t.Setenv("PILOT_DEFAULT_SIZE_PCT", "7.5")
	t.Setenv("DEBUG_ENABLED", "false")
	t.Setenv("DEVSERVER_PORT", "5050")

	cfg := Load()

	if cfg.Connection.ServerURL != "ws://example:9000/ws" {
		t.Errorf("Expected overridden URL, got %q", cfg.Connection.ServerURL)
	}
	if cfg.Connection.PlayerName != "Ace" {
		t.Errorf("Expected trimmed name 'Ace', got %q", cfg.Connection.PlayerName)
	}
	if cfg.Connection.ReconnectDelay != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s reconnect delay, got %v", cfg.Connection.ReconnectDelay)
	}
	if !cfg.Connection.ResendHeld {
		t.Error("Expected ResendHeld to be true")
	}
	if cfg.Input.AimPeriod != 100*time.Millisecond || cfg.Input.WeaponSlots != 6 {
		t.Errorf("Unexpected input config %+v", cfg.Input)
	}
	if !cfg.Scene.DebugColliders || cfg.Scene.DefaultSizePercent != 7.5 {
		t.Errorf("Unexpected scene config %+v", cfg.Scene)
	}
	if cfg.Debug.Enabled {
		t.Error("Expected debug server disabled")
	}
	if cfg.DevServer.Port != 5050 {
		t.Errorf("Expected dev server port 5050, got %d", cfg.DevServer.Port)
	}
}

// TestInvalidEnvIgnored tests that unparsable values keep defaults
func TestInvalidEnvIgnored(t *testing.T) {
	t.Setenv("PILOT_WEAPON_SLOTS", "many")
	t.Setenv("PILOT_RESEND_HELD", "maybe")
	t.Setenv("PILOT_FIELD_WIDTH", "-3")

	cfg := Load()
	if cfg.Input.WeaponSlots != 4 {
		t.Errorf("Expected default slots, got %d", cfg.Input.WeaponSlots)
	}
	if cfg.Connection.ResendHeld {
		t.Error("Expected default ResendHeld false")
	}
	if cfg.Scene.FieldWidth != 800 {
		t.Errorf("Expected default width, got %d", cfg.Scene.FieldWidth)
	}
}
