package config

import (
	"os"
	"strings"

	json "github.com/goccy/go-json"
)

// Config — настройки бинаря офлайн-зеркала.
type Config struct {
	Addr     string `json:"addr"`
	LogLevel string `json:"logLevel"`

	// Хранилище: "memory" (default) | "sqlite" | "postgres"
	StoreDriver string `json:"storeDriver"`
	SQLitePath  string `json:"sqlitePath"`
	DBURL       string `json:"dbUrl"`

	// Удалённый сервис для прогрева кэша (warm)
	ServiceURI  string   `json:"serviceUri"`
	UserName    string   `json:"userName"`
	Password    string   `json:"password"`
	CulturesDir string   `json:"culturesDir"`
	QueryIDs    []string `json:"queryIds"`
}

func def() Config {
	return Config{
		Addr:        ":8080",
		LogLevel:    "info",
		StoreDriver: "memory",
		SQLitePath:  "vitrina.db",
		DBURL:       "",
		ServiceURI:  "",
		UserName:    "",
		Password:    "",
		CulturesDir: "",
		QueryIDs:    nil,
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

// Load читает JSON по указанному пути (если файл есть), потом применяет
// ENV. Переопределение флагами делает cobra-команда поверх результата.
func Load(jsonPath string) Config {
	cfg := def()

	// JSON (если файл существует)
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Addr = getenv("VITRINA_ADDR", cfg.Addr)
	cfg.LogLevel = getenv("VITRINA_LOG_LEVEL", cfg.LogLevel)
	cfg.StoreDriver = getenv("VITRINA_STORE", cfg.StoreDriver)
	cfg.SQLitePath = getenv("VITRINA_SQLITE_PATH", cfg.SQLitePath)
	cfg.DBURL = getenv("VITRINA_DB_URL", cfg.DBURL)
	cfg.ServiceURI = getenv("VITRINA_SERVICE_URI", cfg.ServiceURI)
	cfg.UserName = getenv("VITRINA_USER", cfg.UserName)
	cfg.Password = getenv("VITRINA_PASSWORD", cfg.Password)
	cfg.CulturesDir = getenv("VITRINA_CULTURES_DIR", cfg.CulturesDir)
	if ids := getenv("VITRINA_QUERY_IDS", ""); ids != "" {
		cfg.QueryIDs = cfg.QueryIDs[:0]
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.QueryIDs = append(cfg.QueryIDs, id)
			}
		}
	}

	return cfg
}
