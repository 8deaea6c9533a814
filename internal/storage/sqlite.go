package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vlab/internal/session"

	_ "modernc.org/sqlite"
)

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现
// SQLiteStore implements Store using SQLite with WAL mode
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes a SQLite database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		session_id TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
		data       TEXT NOT NULL DEFAULT '{}',
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close 关闭数据库连接 / Close the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(meta session.Meta) error {
	now := nowUTC()
	if strings.TrimSpace(meta.CreatedDate) == "" {
		meta.CreatedDate = now
	}
	if strings.TrimSpace(meta.LastModifiedDate) == "" {
		meta.LastModifiedDate = now
	}
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		meta.ID, meta.Name, meta.CreatedDate, meta.LastModifiedDate,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveSession(meta session.Meta) error {
	meta.LastModifiedDate = nowUTC()
	res, err := s.db.Exec(`
		UPDATE sessions SET name=?, updated_at=? WHERE id=?`,
		meta.Name, meta.LastModifiedDate, meta.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session not found: %s", meta.ID)
	}
	return nil
}

func (s *SQLiteStore) ListSessions() ([]session.Meta, error) {
	rows, err := s.db.Query(`
		SELECT id, name, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var metas []session.Meta
	for rows.Next() {
		var meta session.Meta
		if err := rows.Scan(&meta.ID, &meta.Name, &meta.CreatedDate, &meta.LastModifiedDate); err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

func (s *SQLiteStore) DeleteSession(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("session id is empty")
	}
	// 显式删除记录；连接池下 PRAGMA foreign_keys 未必对每个连接生效
	// Delete the record explicitly; the foreign_keys pragma is
	// per-connection and a pooled connection may not have it set.
	if _, err := s.db.Exec("DELETE FROM records WHERE session_id=?", id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM sessions WHERE id=?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadRecord(id string) (session.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return session.Record{}, fmt.Errorf("session id is empty")
	}
	row := s.db.QueryRow("SELECT data FROM records WHERE session_id=?", id)

	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return session.Record{}, nil
		}
		return session.Record{}, fmt.Errorf("load record: %w", err)
	}
	var rec session.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return session.Record{}, fmt.Errorf("parse record %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) SaveRecord(id string, rec session.Record) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("session id is empty")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := nowUTC()
	if _, err := tx.Exec(`
		INSERT INTO records (session_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		id, string(data), now); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	if _, err := tx.Exec("UPDATE sessions SET updated_at=? WHERE id=?", now, id); err != nil {
		return fmt.Errorf("update session timestamp: %w", err)
	}
	return tx.Commit()
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

var _ Store = (*SQLiteStore)(nil)
