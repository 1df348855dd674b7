package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		URL:       "ws://localhost:8000/rpc",
		Namespace: "docchat",
		Database:  "docchat",
		Username:  "root",
		Password:  "root",
		AuthLevel: AuthRoot,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty auth level means root", func(c *Config) { c.AuthLevel = "" }, ""},
		{"wss", func(c *Config) { c.URL = "wss://db.example.com/rpc" }, ""},
		{"http url", func(c *Config) { c.URL = "http://localhost:8000" }, "ws:// or wss://"},
		{"missing namespace", func(c *Config) { c.Namespace = "" }, "namespace and database"},
		{"unknown auth level", func(c *Config) { c.AuthLevel = "scope" }, "unknown auth level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigBaseURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"ws://localhost:8000/rpc", "ws://localhost:8000"},
		{"ws://localhost:8000/rpc/", "ws://localhost:8000"},
		{"wss://db.example.com", "wss://db.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, Config{URL: tt.url}.baseURL())
		})
	}
}

func TestConfigAuthScope(t *testing.T) {
	root := validConfig().auth()
	assert.Empty(t, root.Namespace)
	assert.Empty(t, root.Database)
	assert.Equal(t, "root", root.Username)

	cfg := validConfig()
	cfg.AuthLevel = AuthDatabase
	scoped := cfg.auth()
	assert.Equal(t, "docchat", scoped.Namespace)
	assert.Equal(t, "docchat", scoped.Database)
}
