// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration. Every recovery and gating
// threshold is a named, env-overridable field; defaults match the
// production policy and are not tightened beyond it.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// ConvoAddr is the gRPC address of the conversation service. Empty
	// disables AI replies; the bot answers with a fallback message.
	ConvoAddr string

	// MediaUploadURL is the document-store endpoint for inbound media.
	// Empty disables uploads; media is still gated and acknowledged.
	MediaUploadURL string

	Bridge    BridgeConfig
	Reconnect ReconnectConfig
	Restore   RestoreConfig
	Probe     ProbeConfig
	Gate      GateConfig
	Delivery  DeliveryConfig
	Shutdown  ShutdownConfig
}

// BridgeConfig controls the per-session protocol-bridge containers.
type BridgeConfig struct {
	Image       string
	Network     string
	Subnet      string
	DialTimeout time.Duration
}

// ReconnectConfig controls the reconnection scheduler.
type ReconnectConfig struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	Cooldown        time.Duration
	DisconnectDelay time.Duration
	FatalErrorDelay time.Duration
	LivenessTimeout time.Duration
}

// RestoreConfig controls startup restoration of persisted sessions.
type RestoreConfig struct {
	BaseTimeout  time.Duration
	TimeoutStep  time.Duration
	PurgeAfter   int
	RebuildAfter int
}

// ProbeConfig controls the stuck-state monitor and keep-alive prober.
type ProbeConfig struct {
	StuckSweepInterval time.Duration
	StuckThreshold     time.Duration
	KeepAliveInterval  time.Duration
	KeepAliveTimeout   time.Duration
	KeepAliveFailures  int
}

// GateConfig controls pairing throttling and the inbound message gate.
type GateConfig struct {
	PairingCodeMinInterval time.Duration
	FirstConnectWindow     time.Duration
	OfflineRecoveryCeiling time.Duration
	CatchupBuffer          time.Duration
	LongOfflineWindow      time.Duration
	MinMessageSpacing      time.Duration
	MinResponseSpacing     time.Duration
	DedupCacheSize         int
	ChatTrackLimit         int
}

// DeliveryConfig controls outbound chunking and pacing.
type DeliveryConfig struct {
	ChunkLimit    int
	MinChunkDelay time.Duration
	MaxChunkDelay time.Duration
}

// ShutdownConfig bounds graceful teardown.
type ShutdownConfig struct {
	DestroyTimeout time.Duration
	GlobalTimeout  time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/legalbot.db"),
		ConvoAddr:      getEnv("CONVO_AGENT_ADDR", ""),
		MediaUploadURL: getEnv("MEDIA_UPLOAD_URL", ""),
		Bridge: BridgeConfig{
			Image:       getEnv("BRIDGE_IMAGE", "legalbot-bridge:latest"),
			Network:     getEnv("BRIDGE_NETWORK", "legalbot-bridge"),
			Subnet:      getEnv("BRIDGE_SUBNET", "172.29.0.0/16"),
			DialTimeout: getEnvDuration("BRIDGE_DIAL_TIMEOUT", 30*time.Second),
		},
		Reconnect: ReconnectConfig{
			MaxAttempts:     getEnvInt("RECONNECT_MAX_ATTEMPTS", 5),
			BaseDelay:       getEnvDuration("RECONNECT_BASE_DELAY", 2*time.Second),
			MaxDelay:        getEnvDuration("RECONNECT_MAX_DELAY", 10*time.Minute),
			Cooldown:        getEnvDuration("RECONNECT_COOLDOWN", 60*time.Second),
			DisconnectDelay: getEnvDuration("RECONNECT_DISCONNECT_DELAY", 5*time.Second),
			FatalErrorDelay: getEnvDuration("RECONNECT_FATAL_ERROR_DELAY", 10*time.Second),
			LivenessTimeout: getEnvDuration("RECONNECT_LIVENESS_TIMEOUT", 5*time.Second),
		},
		Restore: RestoreConfig{
			BaseTimeout:  getEnvDuration("RESTORE_BASE_TIMEOUT", 30*time.Second),
			TimeoutStep:  getEnvDuration("RESTORE_TIMEOUT_STEP", 10*time.Second),
			PurgeAfter:   getEnvInt("RESTORE_PURGE_AFTER", 2),
			RebuildAfter: getEnvInt("RESTORE_REBUILD_AFTER", 3),
		},
		Probe: ProbeConfig{
			StuckSweepInterval: getEnvDuration("STUCK_SWEEP_INTERVAL", 5*time.Minute),
			StuckThreshold:     getEnvDuration("STUCK_THRESHOLD", 5*time.Minute),
			KeepAliveInterval:  getEnvDuration("KEEPALIVE_INTERVAL", 3*time.Minute),
			KeepAliveTimeout:   getEnvDuration("KEEPALIVE_TIMEOUT", 10*time.Second),
			KeepAliveFailures:  getEnvInt("KEEPALIVE_MAX_FAILURES", 3),
		},
		Gate: GateConfig{
			PairingCodeMinInterval: getEnvDuration("PAIRING_CODE_MIN_INTERVAL", 30*time.Second),
			FirstConnectWindow:     getEnvDuration("FIRST_CONNECT_WINDOW", 30*time.Second),
			OfflineRecoveryCeiling: getEnvDuration("OFFLINE_RECOVERY_CEILING", 24*time.Hour),
			CatchupBuffer:          getEnvDuration("CATCHUP_BUFFER", 5*time.Minute),
			LongOfflineWindow:      getEnvDuration("LONG_OFFLINE_WINDOW", 2*time.Hour),
			MinMessageSpacing:      getEnvDuration("MIN_MESSAGE_SPACING", 2*time.Second),
			MinResponseSpacing:     getEnvDuration("MIN_RESPONSE_SPACING", 3*time.Second),
			DedupCacheSize:         getEnvInt("DEDUP_CACHE_SIZE", 100),
			ChatTrackLimit:         getEnvInt("CHAT_TRACK_LIMIT", 50),
		},
		Delivery: DeliveryConfig{
			ChunkLimit:    getEnvInt("CHUNK_LIMIT", 4000),
			MinChunkDelay: getEnvDuration("MIN_CHUNK_DELAY", 1*time.Second),
			MaxChunkDelay: getEnvDuration("MAX_CHUNK_DELAY", 3*time.Second),
		},
		Shutdown: ShutdownConfig{
			DestroyTimeout: getEnvDuration("DESTROY_TIMEOUT", 10*time.Second),
			GlobalTimeout:  getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS must be > 0")
	}
	if c.Reconnect.BaseDelay <= 0 || c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect delays must satisfy 0 < base <= max")
	}
	if c.Gate.DedupCacheSize <= 0 {
		return fmt.Errorf("DEDUP_CACHE_SIZE must be > 0")
	}
	if c.Gate.ChatTrackLimit <= 0 {
		return fmt.Errorf("CHAT_TRACK_LIMIT must be > 0")
	}
	if c.Delivery.ChunkLimit <= 0 {
		return fmt.Errorf("CHUNK_LIMIT must be > 0")
	}
	if c.Delivery.MaxChunkDelay < c.Delivery.MinChunkDelay {
		return fmt.Errorf("MAX_CHUNK_DELAY must be >= MIN_CHUNK_DELAY")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
