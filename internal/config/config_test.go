package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, int64(50<<20), cfg.Upload.MaxFileSize)
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		env      map[string]string
		wantErr  bool
		validate func(*testing.T, *Config)
	}{
		{
			name: "defaults only",
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "console", cfg.Logging.Output)
			},
		},
		{
			name: "file overrides defaults",
			file: `
server:
  port: 9000
  read_timeout: 5s
logging:
  level: DEBUG
rules:
  file: rules.yaml
`,
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "rules.yaml", cfg.Rules.File)
				assert.True(t, cfg.Rules.Watch)
			},
		},
		{
			name: "env wins over file",
			file: "server:\n  port: 9000\n",
			env: map[string]string{
				"TRINITY_SERVER_PORT":              "9100",
				"TRINITY_SECURITY_ALLOWED_ORIGINS": "https://a.example,https://b.example",
				"TRINITY_UPLOAD_MAX_FILE_SIZE":     "1024",
				"TRINITY_RULES_WATCH":              "false",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9100, cfg.Server.Port)
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
				assert.Equal(t, int64(1024), cfg.Upload.MaxFileSize)
				assert.False(t, cfg.Rules.Watch)
			},
		},
		{
			name:    "unknown key in file",
			file:    "server:\n  prot: 9000\n",
			wantErr: true,
		},
		{
			name:    "bad port from env",
			env:     map[string]string{"TRINITY_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "unparsable env",
			env:     map[string]string{"TRINITY_SERVER_READ_TIMEOUT": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, "trinity.yaml", tt.file)
			}

			cfg, err := LoadFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

func TestLoad_UsesConfigEnvVar(t *testing.T) {
	path := writeFile(t, "custom.yaml", "server:\n  port: 7070\n")
	t.Setenv("TRINITY_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log output", func(c *Config) { c.Logging.Output = "syslog" }},
		{"file output without path", func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" }},
		{"cors without origins", func(c *Config) { c.Security.AllowedOrigins = nil }},
		{"rate limit without burst", func(c *Config) { c.Security.RateLimit.Burst = 0 }},
		{"no upload size", func(c *Config) { c.Upload.MaxFileSize = 0 }},
		{"no extensions", func(c *Config) { c.Upload.AllowedExtensions = nil }},
		{"otlp exporter", func(c *Config) { c.Telemetry.TraceExporter = "otlp" }},
		{"sample ratio above one", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Security.EnableCORS = false
	cfg.Security.AllowedOrigins = nil
	assert.NoError(t, cfg.Validate(), "origins are only needed with CORS")
}
