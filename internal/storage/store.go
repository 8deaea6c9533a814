package storage

import "vlab/internal/session"

// Store 持久化接口，支持多后端 (SQLite / JSON files)
// Store is the persistence interface supporting multiple backends
type Store interface {
	// Session 元数据操作 / Session metadata operations
	CreateSession(meta session.Meta) error
	SaveSession(meta session.Meta) error
	ListSessions() ([]session.Meta, error)
	DeleteSession(id string) error

	// Record 操作：整条扁平记录读写 / Whole-record load/save
	LoadRecord(id string) (session.Record, error)
	SaveRecord(id string, rec session.Record) error

	// 生命周期 / Lifecycle
	Close() error
}
