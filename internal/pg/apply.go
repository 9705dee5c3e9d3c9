package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// ApplyDDL прогоняет схему хранилища: map[объект]sql с идемпотентным
// DDL (create ... if not exists). Уже существующие объекты
// (duplicate_object, 42710) пропускаются.
func ApplyDDL(db *sql.DB, ddl map[string]string) error {
	// порядок стабилен: по имени объекта
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, k := range keys {
		sqlText := strings.TrimSpace(ddl[k])
		if sqlText == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			// pgx/stdlib отдаёт *pgconn.PgError
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42710" {
				log.Debug().Str("object", k).Str("detail", strings.TrimSpace(pgErr.Message)).
					Msg("ddl пропущен: объект уже существует")
				continue
			}
			e := strings.ToLower(err.Error())
			if strings.Contains(e, "already exists") || strings.Contains(e, "duplicate") {
				log.Debug().Str("object", k).Err(err).Msg("ddl пропущен: объект уже существует")
				continue
			}
			return fmt.Errorf("applying ddl for %s: %w", k, err)
		}
	}
	return nil
}
