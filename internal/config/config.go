// Package config provides centralized configuration management.
// Every tunable of the client and the scripted dev server lives here.
//
// Values come from defaults overridden by environment variables; the cmd
// entry points load a .env file first.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CONNECTION CONFIGURATION
// =============================================================================

// ConnectionConfig holds transport settings for the game server link.
type ConnectionConfig struct {
	ServerURL      string        // Websocket endpoint
	PlayerName     string        // Join name, empty picks "Player NNN"
	ReconnectDelay time.Duration // Pause between reconnect attempts
	DialTimeout    time.Duration // Handshake timeout
	WriteTimeout   time.Duration // Per-message write deadline
	ResendHeld     bool          // Re-send held controls after reconnect
}

// DefaultConnection returns the default connection configuration.
func DefaultConnection() ConnectionConfig {
	return ConnectionConfig{
		ServerURL:      "ws://localhost:5000/ws",
		ReconnectDelay: 500 * time.Millisecond,
		DialTimeout:    3 * time.Second,
		WriteTimeout:   250 * time.Millisecond,
	}
}

// ConnectionFromEnv returns connection configuration with environment overrides.
func ConnectionFromEnv() ConnectionConfig {
	cfg := DefaultConnection()

	if v := os.Getenv("PILOT_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	cfg.PlayerName = strings.TrimSpace(os.Getenv("PILOT_PLAYER_NAME"))
	if d := getEnvMillis("PILOT_RECONNECT_DELAY_MS"); d > 0 {
		cfg.ReconnectDelay = d
	}
	if d := getEnvMillis("PILOT_DIAL_TIMEOUT_MS"); d > 0 {
		cfg.DialTimeout = d
	}
	if d := getEnvMillis("PILOT_WRITE_TIMEOUT_MS"); d > 0 {
		cfg.WriteTimeout = d
	}
	cfg.ResendHeld = getEnvBool("PILOT_RESEND_HELD", cfg.ResendHeld)

	return cfg
}

// =============================================================================
// INPUT CONFIGURATION
// =============================================================================

// InputConfig holds input sampling settings.
type InputConfig struct {
	AimPeriod   time.Duration // Fixed aim emission period while firing
	KeyHold     time.Duration // Terminal key-repeat window before a key counts as released
	WeaponSlots int           // Number of weapon slots
}

// DefaultInput returns the default input configuration.
func DefaultInput() InputConfig {
	return InputConfig{
		AimPeriod:   200 * time.Millisecond,
		KeyHold:     180 * time.Millisecond, // above typical terminal auto-repeat delay
		WeaponSlots: 4,
	}
}

// InputFromEnv returns input configuration with environment overrides.
func InputFromEnv() InputConfig {
	cfg := DefaultInput()

	if d := getEnvMillis("PILOT_AIM_PERIOD_MS"); d > 0 {
		cfg.AimPeriod = d
	}
	if d := getEnvMillis("PILOT_KEY_HOLD_MS"); d > 0 {
		cfg.KeyHold = d
	}
	if n := getEnvInt("PILOT_WEAPON_SLOTS", 0); n > 0 {
		cfg.WeaponSlots = n
	}

	return cfg
}

// =============================================================================
// SCENE CONFIGURATION
// =============================================================================

// SceneConfig holds play field and reconciler settings.
type SceneConfig struct {
	FieldWidth         int     // Play field width in pixels
	FieldHeight        int     // Play field height in pixels
	DefaultSizePercent float64 // Sprite size when relative sizing is absent
	DebugColliders     bool    // Draw collider overlays
}

// DefaultScene returns the default scene configuration.
func DefaultScene() SceneConfig {
	return SceneConfig{
		FieldWidth:         800,
		FieldHeight:        600,
		DefaultSizePercent: 6,
	}
}

// SceneFromEnv returns scene configuration with environment overrides.
func SceneFromEnv() SceneConfig {
	cfg := DefaultScene()

	if w := getEnvInt("PILOT_FIELD_WIDTH", 0); w > 0 {
		cfg.FieldWidth = w
	}
	if h := getEnvInt("PILOT_FIELD_HEIGHT", 0); h > 0 {
		cfg.FieldHeight = h
	}
	if p := getEnvFloat("PILOT_DEFAULT_SIZE_PCT", 0); p > 0 {
		cfg.DefaultSizePercent = p
	}
	cfg.DebugColliders = getEnvBool("PILOT_DEBUG_COLLIDERS", cfg.DebugColliders)

	return cfg
}

// =============================================================================
// DEBUG CONFIGURATION
// =============================================================================

// DebugConfig configures the local observability server and journal.
type DebugConfig struct {
	Enabled       bool
	ListenAddr    string // Localhost only unless ALLOW_DEBUG_EXTERNAL=true
	BasicAuthUser string
	BasicAuthPass string
	JournalPath   string // JSONL protocol journal, empty disables the file
}

// DefaultDebug returns safe defaults.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// DebugFromEnv returns debug configuration with environment overrides.
func DebugFromEnv() DebugConfig {
	cfg := DefaultDebug()

	cfg.Enabled = getEnvBool("DEBUG_ENABLED", cfg.Enabled)
	if v := os.Getenv("DEBUG_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	cfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	cfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	cfg.JournalPath = os.Getenv("PILOT_JOURNAL_PATH")

	return cfg
}

// =============================================================================
// DEV SERVER CONFIGURATION
// =============================================================================

// DevServerConfig holds settings of the scripted local game server.
type DevServerConfig struct {
	Port               int
	TickInterval       time.Duration // Snapshot broadcast period
	MaxClients         int
	FlattenedSnapshots bool // ship in top-level snapshot fields instead of gameObjects
	Seed               uint64
}

// DefaultDevServer returns the default dev server configuration.
func DefaultDevServer() DevServerConfig {
	return DevServerConfig{
		Port:         5000,
		TickInterval: 50 * time.Millisecond,
		MaxClients:   16,
		Seed:         1,
	}
}

// DevServerFromEnv returns dev server configuration with environment overrides.
func DevServerFromEnv() DevServerConfig {
	cfg := DefaultDevServer()

	if p := getEnvInt("DEVSERVER_PORT", 0); p > 0 {
		cfg.Port = p
	}
	if d := getEnvMillis("DEVSERVER_TICK_MS"); d > 0 {
		cfg.TickInterval = d
	}
	if n := getEnvInt("DEVSERVER_MAX_CLIENTS", 0); n > 0 {
		cfg.MaxClients = n
	}
	cfg.FlattenedSnapshots = getEnvBool("DEVSERVER_FLAT_SNAPSHOTS", cfg.FlattenedSnapshots)
	if n := getEnvInt("DEVSERVER_SEED", 0); n > 0 {
		cfg.Seed = uint64(n)
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Connection ConnectionConfig
	Input      InputConfig
	Scene      SceneConfig
	Debug      DebugConfig
	DevServer  DevServerConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Connection: ConnectionFromEnv(),
		Input:      InputFromEnv(),
		Scene:      SceneFromEnv(),
		Debug:      DebugFromEnv(),
		DevServer:  DevServerFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvMillis(key string) time.Duration {
	return time.Duration(getEnvInt(key, 0)) * time.Millisecond
}
