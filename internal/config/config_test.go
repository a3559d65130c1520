package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
employees:
  - name: Jesus
    email: jesus@example.com
    password: secret
    color: "2"
  - name: Enrique
    color: "9"
credentials_source: env
store:
  backend: mongo
  mongo_uri: mongodb://localhost:27017
calendar:
  enabled: true
  calendar_id: abc@group.calendar.google.com
email:
  enabled: true
  sender: punches@example.com
  recipients: [boss@example.com]
`

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Employees)
	assert.Equal(t, StoreSQLite, cfg.GetStoreBackend())
	assert.Equal(t, "punchsync.db", cfg.GetDBPath())
	assert.Equal(t, "token.json", cfg.GetTokenFile())
	assert.Equal(t, "us-east-1", cfg.GetEmailRegion())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, DefaultTimezone, loc.String())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	in := &Config{
		Employees: []Employee{{Name: "Jesus", Email: "j@example.com", Password: "pw", Color: "2"}},
		Timezone:  "America/New_York",
		Calendar:  CalendarConfig{Enabled: true, CalendarID: "cal"},
	}
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, writeFile(path, sampleYAML))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Jesus", "Enrique"}, cfg.EmployeeNames())
	assert.Equal(t, map[string]string{"Jesus": "2", "Enrique": "9"}, cfg.Colors())
	assert.Equal(t, StoreMongo, cfg.GetStoreBackend())
	assert.Equal(t, "punchsync", cfg.GetMongoDatabase())
	assert.Equal(t, "punches", cfg.GetMongoCollection())
	assert.Equal(t, []string{"boss@example.com"}, cfg.Email.Recipients)
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("PUNCHSYNC_ENRIQUE_EMAIL", "enrique@example.com")
	t.Setenv("PUNCHSYNC_ENRIQUE_PASSWORD", "hunter2")

	cfg := &Config{
		CredentialsSource: CredentialsFromEnv,
		Employees: []Employee{
			{Name: "Jesus", Email: "jesus@example.com", Password: "secret"},
			{Name: "Enrique"},
		},
	}

	creds, err := cfg.Credentials("enrique")
	require.NoError(t, err)
	assert.Equal(t, "Enrique", creds.Employee)
	assert.Equal(t, "enrique@example.com", creds.Email)
	assert.Equal(t, "hunter2", creds.Password)

	// File values remain the fallback
	creds, err = cfg.Credentials("Jesus")
	require.NoError(t, err)
	assert.Equal(t, "secret", creds.Password)
}

func TestCredentialsErrors(t *testing.T) {
	cfg := &Config{Employees: []Employee{{Name: "Enrique"}}}

	_, err := cfg.Credentials("Nobody")
	assert.ErrorContains(t, err, "unknown employee")

	_, err = cfg.Credentials("Enrique")
	assert.ErrorContains(t, err, "missing email or password")

	cfg.CredentialsSource = "vault"
	_, err = cfg.Credentials("Enrique")
	assert.ErrorContains(t, err, "unknown credentials source")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "maria_jose", envKey("Maria Jose"))
	assert.Equal(t, "jesus", envKey("Jesus"))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
