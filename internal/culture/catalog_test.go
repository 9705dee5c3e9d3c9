package culture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"ru.yaml": `name: ru
dateFormat:
  shortDatePattern: "02.01.2006"
  shortTimePattern: "15:04"
numberFormat:
  decimalSeparator: ","
  groupSeparator: " "
`,
		// Без name: имя культуры берётся из имени файла.
		"nl-BE.yml": `dateFormat:
  shortDatePattern: "2/01/2006"
`,
		"readme.txt": "not a culture",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	return dir
}

func TestLoadCatalog(t *testing.T) {
	catalog, err := LoadCatalog(writeCatalog(t))
	require.NoError(t, err)
	require.Len(t, catalog, 2)

	ru := catalog["ru"]
	require.NotNil(t, ru)
	assert.Equal(t, "02.01.2006", ru.DateFormat.ShortDatePattern)
	assert.Equal(t, ",", ru.NumberFormat.DecimalSeparator)

	require.NotNil(t, catalog["nl-BE"])
}

func TestLoadCatalogMissingDir(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	catalog, err := LoadCatalog(writeCatalog(t))
	require.NoError(t, err)

	assert.Equal(t, "ru", Resolve(catalog, "ru").Name)

	// Откат к нейтральной культуре.
	assert.Equal(t, "ru", Resolve(catalog, "ru-KZ").Name)

	// Неизвестная локаль — инвариант.
	inv := Resolve(catalog, "ja-JP")
	assert.Empty(t, inv.Name)
	assert.Equal(t, "15:04", inv.DateFormat.ShortTimePattern)
}
