package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type sqliteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (Storage, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	// Миграция: колонка environment появилась позже
	if err := migrateAddEnvironment(db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStorage{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS builds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			fingerprint TEXT NOT NULL DEFAULT '',
			filename TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			hit INTEGER NOT NULL DEFAULT 0,
			files TEXT NOT NULL,
			swept INTEGER NOT NULL DEFAULT 0,
			duration_ns INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			timestamp DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_builds_timestamp ON builds(timestamp);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// migrateAddEnvironment добавляет колонку environment к существующей таблице
func migrateAddEnvironment(db *sql.DB) error {
	rows, err := db.Query("PRAGMA table_info(builds)")
	if err != nil {
		return fmt.Errorf("check table info: %w", err)
	}
	defer rows.Close()

	hasEnvironment := false
	for rows.Next() {
		var cid int
		var name, typ string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scan column info: %w", err)
		}
		if name == "environment" {
			hasEnvironment = true
			break
		}
	}
	rows.Close()

	if !hasEnvironment {
		_, err := db.Exec(`ALTER TABLE builds ADD COLUMN environment TEXT NOT NULL DEFAULT ''`)
		if err != nil {
			return fmt.Errorf("add environment column: %w", err)
		}
	}

	return nil
}

func (s *sqliteStorage) Save(rec Record) error {
	filesJSON, err := json.Marshal(rec.Files)
	if err != nil {
		return fmt.Errorf("marshal files: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO builds (kind, environment, fingerprint, filename, state, hit, files, swept, duration_ns, error, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Kind, rec.Environment, rec.Fingerprint, rec.Filename, rec.State, rec.Hit,
		string(filesJSON), rec.Swept, int64(rec.Duration), rec.Error, rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	return nil
}

func (s *sqliteStorage) Latest(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1 // без ограничения
	}

	rows, err := s.db.Query(
		`SELECT id, kind, environment, fingerprint, filename, state, hit, files, swept, duration_ns, error, timestamp
		 FROM builds
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	records := []Record{}
	for rows.Next() {
		var rec Record
		var filesJSON string
		var durationNs int64
		if err := rows.Scan(
			&rec.ID, &rec.Kind, &rec.Environment, &rec.Fingerprint, &rec.Filename, &rec.State,
			&rec.Hit, &filesJSON, &rec.Swept, &durationNs, &rec.Error, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		if err := json.Unmarshal([]byte(filesJSON), &rec.Files); err != nil {
			return nil, fmt.Errorf("unmarshal files: %w", err)
		}
		rec.Duration = time.Duration(durationNs)

		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *sqliteStorage) Cleanup(olderThan time.Time) error {
	_, err := s.db.Exec(`DELETE FROM builds WHERE timestamp < ?`, olderThan.UTC())
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
