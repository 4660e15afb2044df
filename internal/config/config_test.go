package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testYAML = `
db:
  host: db.internal
  port: 5432
  user: app
  password: file-password
  name: newsletter
email:
  base_url: https://mail.example.com
  sender: hello@example.com
  api_key: file-key
  api_secret: file-secret
  send_timeout: 3s
redis:
  addr: redis.internal:6379
server:
  port: ":8080"
  base_url: https://newsletter.example.com
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "file-password", cfg.DB.Password.Reveal())
	assert.Equal(t, "https://mail.example.com", cfg.Email.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Email.SendTimeout)
	assert.Equal(t, ":8080", cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DB_PASSWORD", "env-password")
	t.Setenv("EMAIL_API_KEY", "env-key")
	t.Setenv("EMAIL_SEND_TIMEOUT", "750ms")
	t.Setenv("SERVER_PORT", ":9090")

	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-password", cfg.DB.Password.Reveal())
	assert.Equal(t, "env-key", cfg.Email.APIKey.Reveal())
	assert.Equal(t, 750*time.Millisecond, cfg.Email.SendTimeout)
	assert.Equal(t, ":9090", cfg.Server.Port)
}

func TestLoadDefaultsSendTimeout(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
email:
  base_url: https://mail.example.com
`))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Email.SendTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestSecretNeverLeaks(t *testing.T) {
	t.Parallel()
	s := NewSecret("super-secret")

	assert.Equal(t, "super-secret", s.Reveal())

	assert.NotContains(t, s.String(), "super-secret")
	assert.NotContains(t, fmt.Sprintf("%v", s), "super-secret")
	assert.NotContains(t, fmt.Sprintf("%+v", s), "super-secret")

	jsonBytes, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(jsonBytes), "super-secret")

	yamlBytes, err := yaml.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(yamlBytes), "super-secret")
}

func TestDSNCarriesCredentials(t *testing.T) {
	t.Parallel()
	cfg := DBConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "app",
		Password: NewSecret("pw"),
		Name:     "newsletter",
	}
	assert.Equal(t, "postgres://app:pw@db.internal:5432/newsletter?sslmode=disable", cfg.DSN())
}
