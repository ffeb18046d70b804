package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ModeOffline, cfg.Ledger.Mode)
	assert.Equal(t, 1500*time.Millisecond, cfg.Ledger.OfflineDelay)
	assert.Equal(t, 256, cfg.RecordCacheSize)
	assert.Equal(t, "exports", cfg.ExportDir)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CERTCHAIN_ADDR", ":9090")
	t.Setenv("CERTCHAIN_MODE", "live")
	t.Setenv("CERTCHAIN_RPC_URL", "http://127.0.0.1:7545")
	t.Setenv("CERTCHAIN_DEPLOYMENTS", "5777=0x00000000000000000000000000000000000000c0")
	t.Setenv("CERTCHAIN_POLL_INTERVAL", "500ms")
	t.Setenv("CERTCHAIN_OFFLINE_DELAY", "0s")
	t.Setenv("CERTCHAIN_RECORD_CACHE_SIZE", "32")
	t.Setenv("CERTCHAIN_INSTITUTION", "Shah and Anchor Kutchhi Engineering College")
	t.Setenv("CERTCHAIN_SIGNATORY_2", "M. Shah")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, ModeLive, cfg.Ledger.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.Ledger.PollInterval)
	assert.Equal(t, time.Duration(0), cfg.Ledger.OfflineDelay)
	assert.Equal(t, 32, cfg.RecordCacheSize)
	assert.Equal(t, "Shah and Anchor Kutchhi Engineering College", cfg.Defaults.Institution)
	assert.Equal(t, "M. Shah", cfg.Defaults.Signatories.Registrar)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"CERTCHAIN_POLL_INTERVAL": "often"}},
		{"bad cache size", map[string]string{"CERTCHAIN_RECORD_CACHE_SIZE": "lots"}},
		{"zero cache size", map[string]string{"CERTCHAIN_RECORD_CACHE_SIZE": "0"}},
		{"unknown mode", map[string]string{"CERTCHAIN_MODE": "hybrid"}},
		{"live without rpc", map[string]string{"CERTCHAIN_MODE": "live", "CERTCHAIN_DEPLOYMENTS": "1=0x01"}},
		{"live without contract", map[string]string{"CERTCHAIN_MODE": "live", "CERTCHAIN_RPC_URL": "http://localhost:8545"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoad_DefersValidation(t *testing.T) {
	t.Setenv("CERTCHAIN_MODE", "live")

	cfg, err := Load()
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	cfg.Ledger.RPCURL = "http://127.0.0.1:7545"
	cfg.Ledger.Deployments = "5777=0x00000000000000000000000000000000000000c0"
	assert.NoError(t, cfg.Validate())
}
