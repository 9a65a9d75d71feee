package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  port: 9090
database:
  driver: sqlite
  path: test.db
jwt:
  secret: from-file
storage:
  driver: memory
`), 0o600))

	t.Setenv("CONFIG_FILE", file)
	t.Setenv("HMS_JWT_SECRET", "from-env")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, "test.db", cfg.Database.DSN())
	assert.Equal(t, "memory", cfg.Storage.Driver)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		JWT:      JWTConfig{Secret: "s"},
		Database: DatabaseConfig{Driver: "postgres"},
		Storage:  StorageConfig{Driver: "s3"},
	}
	assert.EqualError(t, cfg.Validate(), "storage.bucket is required for the s3 driver")

	cfg.Storage.Bucket = "images"
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "hms", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=hms sslmode=disable", c.DSN())
}
