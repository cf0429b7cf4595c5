package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/medicine_sales.csv", cfg.Dataset.Path)
	assert.InDelta(t, 0.3, cfg.Dataset.MarginRate, 1e-9)
	assert.InDelta(t, 5.0, cfg.Dataset.OpportunityThreshold, 1e-9)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "missing dataset path",
			mutate:  func(c *Config) { c.Dataset.Path = "" },
			wantErr: "dataset path",
		},
		{
			name:    "margin rate too high",
			mutate:  func(c *Config) { c.Dataset.MarginRate = 1.5 },
			wantErr: "margin rate",
		},
		{
			name:    "margin rate zero",
			mutate:  func(c *Config) { c.Dataset.MarginRate = 0 },
			wantErr: "margin rate",
		},
		{
			name:    "no allowed origins",
			mutate:  func(c *Config) { c.Security.AllowedOrigins = nil },
			wantErr: "allowed origin",
		},
		{
			name: "websocket ping period too long",
			mutate: func(c *Config) {
				c.WebSocket.PingPeriod = c.WebSocket.PongWait
			},
			wantErr: "ping period",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeConfigs_EnvTakesPrecedence(t *testing.T) {
	fileCfg := *Default()
	fileCfg.Server.Port = 9000
	fileCfg.Dataset.Path = "file.csv"
	fileCfg.Dataset.MarginRate = 0.4

	envCfg := Config{}
	envCfg.Server.Port = 9090

	merged := mergeConfigs(fileCfg, envCfg)
	assert.Equal(t, 9090, merged.Server.Port)
	assert.Equal(t, "file.csv", merged.Dataset.Path)
	assert.InDelta(t, 0.4, merged.Dataset.MarginRate, 1e-9)
}

func TestMergeConfigs_WebSocketSection(t *testing.T) {
	fileCfg := *Default()
	fileCfg.WebSocket.ReadBufferSize = 2048
	fileCfg.WebSocket.PongWait = 90 * time.Second

	envCfg := Config{}
	envCfg.WebSocket.PingPeriod = 10 * time.Second

	merged := mergeConfigs(fileCfg, envCfg)
	assert.Equal(t, 2048, merged.WebSocket.ReadBufferSize)
	assert.Equal(t, 90*time.Second, merged.WebSocket.PongWait)
	assert.Equal(t, 10*time.Second, merged.WebSocket.PingPeriod)
}
