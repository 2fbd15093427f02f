package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileAndDerived(t *testing.T) {
	path := writeConfig(t, `
app:
  env: production
  port: 9090
  shutdown_seconds: 5
mongodb:
  uri: mongodb://mongo:27017
  database: chat
jwt:
  alg: HS256
  hs_secret: s3cret
  access_ttl_minutes: 15
  refresh_ttl_days: 7
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "9090", cfg.App.PortString())
	assert.False(t, cfg.Development())
	assert.Equal(t, "chat", cfg.Mongo.Database)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, "teamchat", cfg.Kafka.GroupID)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "jwt:\n  hs_secret: from-file\n")
	t.Setenv("TEAMCHAT_APP_PORT", "7070")
	t.Setenv("TEAMCHAT_JWT_HS_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.App.Port)
	assert.Equal(t, "from-env", cfg.JWT.HSSecret)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TEAMCHAT_JWT_HS_SECRET", "x")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, int64(5*1024*1024), cfg.S3.MaxImageBytes)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"hs256 without secret", "jwt:\n  alg: HS256\n"},
		{"rs256 without keys", "jwt:\n  alg: RS256\n"},
		{"unknown alg", "jwt:\n  alg: none\n  hs_secret: x\n"},
		{"kafka without topic", "jwt:\n  hs_secret: x\nkafka:\n  enabled: true\n  topic_events: \"\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestDumpRedactsSecrets(t *testing.T) {
	cfg, err := Load(writeConfig(t, "jwt:\n  hs_secret: topsecret\noauth:\n  github:\n    client_id: gh\n    client_secret: ghsecret\n"))
	require.NoError(t, err)

	out, err := cfg.Dump()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "topsecret")
	assert.NotContains(t, string(out), "ghsecret")

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Contains(t, back, "jwt")
	assert.Equal(t, "topsecret", cfg.JWT.HSSecret, "dump must not mutate the live config")
}
