package offline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"vitrina/internal/pg"
)

// sqlStore — общая часть SQL-хранилищ: одна таблица записей с
// составным ключом (таблица, id). Тексты запросов — у конкретного
// драйвера (разный синтаксис плейсхолдеров).
type sqlStore struct {
	db *sql.DB

	loadStmt   string
	saveStmt   string
	deleteStmt string
}

func (s *sqlStore) Load(ctx context.Context, table Table, id string) (*Record, error) {
	rec := &Record{ID: id}
	err := s.db.QueryRowContext(ctx, s.loadStmt, string(table), id).
		Scan(&rec.QueryID, &rec.Name, &rec.Response)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", table, id, err)
	}
	return rec, nil
}

func (s *sqlStore) Save(ctx context.Context, table Table, rec *Record) error {
	_, err := s.db.ExecContext(ctx, s.saveStmt, string(table), rec.ID, rec.QueryID, rec.Name, rec.Response)
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", table, rec.ID, err)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, table Table, id string) error {
	_, err := s.db.ExecContext(ctx, s.deleteStmt, string(table), id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	return nil
}

func (s *sqlStore) Close() error { return s.db.Close() }

// SQLiteStore — файловое хранилище зеркала на SQLite.
type SQLiteStore struct {
	sqlStore
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		tab      TEXT NOT NULL,
		id       TEXT NOT NULL,
		query_id TEXT NOT NULL DEFAULT '',
		name     TEXT NOT NULL DEFAULT '',
		response BLOB,
		PRIMARY KEY (tab, id)
	)`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{sqlStore{
		db:       db,
		loadStmt: `SELECT query_id, name, response FROM records WHERE tab = ? AND id = ?`,
		saveStmt: `INSERT INTO records (tab, id, query_id, name, response) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (tab, id) DO UPDATE SET query_id = excluded.query_id, name = excluded.name, response = excluded.response`,
		deleteStmt: `DELETE FROM records WHERE tab = ? AND id = ?`,
	}}, nil
}

// PGStore — хранилище зеркала на Postgres.
type PGStore struct {
	sqlStore
}

func OpenPostgres(url string) (*PGStore, error) {
	db, err := pg.Open(url)
	if err != nil {
		return nil, err
	}

	ddl := map[string]string{
		"records": `CREATE TABLE IF NOT EXISTS records (
			tab      TEXT NOT NULL,
			id       TEXT NOT NULL,
			query_id TEXT NOT NULL DEFAULT '',
			name     TEXT NOT NULL DEFAULT '',
			response BYTEA,
			PRIMARY KEY (tab, id)
		)`,
	}
	if err := pg.ApplyDDL(db, ddl); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &PGStore{sqlStore{
		db:       db,
		loadStmt: `SELECT query_id, name, response FROM records WHERE tab = $1 AND id = $2`,
		saveStmt: `INSERT INTO records (tab, id, query_id, name, response) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (tab, id) DO UPDATE SET query_id = excluded.query_id, name = excluded.name, response = excluded.response`,
		deleteStmt: `DELETE FROM records WHERE tab = $1 AND id = $2`,
	}}, nil
}
