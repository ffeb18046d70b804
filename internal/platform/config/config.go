// Package config reads process configuration from CERTCHAIN_* environment
// variables. Command-line flags override individual fields after loading.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"certchain/internal/certificate"
	"certchain/internal/certificate/store"
	"certchain/internal/identity/ethrpc"
	"certchain/internal/ledger"
)

// Mode selects the ledger capability.
type Mode string

const (
	ModeLive    Mode = "live"
	ModeOffline Mode = "offline"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string
}

// Ledger captures how the client reaches the certification contract.
type Ledger struct {
	Mode           Mode
	RPCURL         string
	ArtifactPath   string
	Deployments    string
	PollInterval   time.Duration
	OfflineDelay   time.Duration
	ReceiptTimeout time.Duration
}

// Config is the complete process configuration.
type Config struct {
	Server          Server
	Ledger          Ledger
	Defaults        certificate.Defaults
	RecordCacheSize int
	ExportDir       string
}

// FromEnv loads and validates the environment configuration.
func FromEnv() (Config, error) {
	cfg, err := Load()
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Load reads environment variables without cross-field validation, so
// callers can apply overrides first. Malformed durations and sizes are
// reported rather than silently replaced.
func Load() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:        envOr("CERTCHAIN_ADDR", ":8080"),
			Environment: envOr("CERTCHAIN_ENV", "development"),
			LogLevel:    envOr("CERTCHAIN_LOG_LEVEL", "info"),
		},
		Ledger: Ledger{
			Mode:           Mode(envOr("CERTCHAIN_MODE", string(ModeOffline))),
			RPCURL:         os.Getenv("CERTCHAIN_RPC_URL"),
			ArtifactPath:   os.Getenv("CERTCHAIN_CONTRACT_ARTIFACT"),
			Deployments:    os.Getenv("CERTCHAIN_DEPLOYMENTS"),
			PollInterval:   ethrpc.DefaultPollInterval,
			OfflineDelay:   ledger.DefaultOfflineDelay,
			ReceiptTimeout: ledger.DefaultReceiptTimeout,
		},
		Defaults: certificate.Defaults{
			Institution: os.Getenv("CERTCHAIN_INSTITUTION"),
			Department:  os.Getenv("CERTCHAIN_DEPARTMENT"),
			Signatories: certificate.Signatories{
				CourseDirector: os.Getenv("CERTCHAIN_SIGNATORY_1"),
				Registrar:      os.Getenv("CERTCHAIN_SIGNATORY_2"),
			},
		},
		RecordCacheSize: store.DefaultSize,
		ExportDir:       envOr("CERTCHAIN_EXPORT_DIR", "exports"),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CERTCHAIN_POLL_INTERVAL", &cfg.Ledger.PollInterval},
		{"CERTCHAIN_OFFLINE_DELAY", &cfg.Ledger.OfflineDelay},
		{"CERTCHAIN_RECEIPT_TIMEOUT", &cfg.Ledger.ReceiptTimeout},
	}
	for _, d := range durations {
		raw := os.Getenv(d.key)
		if raw == "" {
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	if raw := os.Getenv("CERTCHAIN_RECORD_CACHE_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("CERTCHAIN_RECORD_CACHE_SIZE: %w", err)
		}
		cfg.RecordCacheSize = n
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Ledger.Mode {
	case ModeOffline:
	case ModeLive:
		if c.Ledger.RPCURL == "" {
			return fmt.Errorf("live mode requires CERTCHAIN_RPC_URL")
		}
		if c.Ledger.ArtifactPath == "" && c.Ledger.Deployments == "" {
			return fmt.Errorf("live mode requires CERTCHAIN_CONTRACT_ARTIFACT or CERTCHAIN_DEPLOYMENTS")
		}
	default:
		return fmt.Errorf("unknown ledger mode %q", c.Ledger.Mode)
	}
	if c.RecordCacheSize <= 0 {
		return fmt.Errorf("record cache size must be positive, got %d", c.RecordCacheSize)
	}
	if c.Ledger.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Ledger.OfflineDelay < 0 {
		return fmt.Errorf("offline delay must not be negative")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
