package culture

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadCatalog читает все описания культур из папки cultures/
func LoadCatalog(dir string) (map[string]*Culture, error) {
	result := make(map[string]*Culture)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if !file.IsDir() && (strings.HasSuffix(file.Name(), ".yaml") || strings.HasSuffix(file.Name(), ".yml")) {
			path := filepath.Join(dir, file.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			var c Culture
			if err := yaml.Unmarshal(data, &c); err != nil {
				return nil, err
			}
			// Имя культуры — из c.Name или из имени файла
			name := c.Name
			if name == "" {
				name = strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
			}
			result[name] = &c
		}
	}
	return result, nil
}

// Resolve возвращает культуру по имени с откатом: "ru-RU" -> "ru" -> инвариант.
func Resolve(catalog map[string]*Culture, name string) *Culture {
	if c, ok := catalog[name]; ok {
		return c
	}
	if i := strings.IndexByte(name, '-'); i > 0 {
		if c, ok := catalog[name[:i]]; ok {
			return c
		}
	}
	return Invariant()
}
