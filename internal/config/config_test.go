package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "absent.json"))

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "vitrina.db", cfg.SQLitePath)
}

func TestLoadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitrina.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"addr": ":9090",
		"storeDriver": "sqlite",
		"serviceUri": "https://demo.example.com",
		"queryIds": ["q-cust", "q-orders"]
	}`), 0644))

	cfg := Load(path)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "https://demo.example.com", cfg.ServiceURI)
	assert.Equal(t, []string{"q-cust", "q-orders"}, cfg.QueryIDs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitrina.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"addr": ":9090", "logLevel": "debug"}`), 0644))

	t.Setenv("VITRINA_ADDR", ":7070")
	t.Setenv("VITRINA_STORE", "postgres")
	t.Setenv("VITRINA_DB_URL", "postgres://localhost/vitrina")
	t.Setenv("VITRINA_QUERY_IDS", " q-1, q-2 ,,q-3 ")

	cfg := Load(path)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "postgres://localhost/vitrina", cfg.DBURL)
	assert.Equal(t, []string{"q-1", "q-2", "q-3"}, cfg.QueryIDs)
}

func TestLoadEmptyEnvKeepsValue(t *testing.T) {
	t.Setenv("VITRINA_ADDR", "   ")
	cfg := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Equal(t, ":8080", cfg.Addr)
}
