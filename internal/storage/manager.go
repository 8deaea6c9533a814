package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"vlab/internal/session"
)

// Manager JSON 文件后端：sessions 目录下保存 metadata.json 与每会话一个记录文件
// Manager is the JSON file backend: a metadata.json index plus one record
// file per session under the sessions directory.
type Manager struct {
	baseDir     string
	sessionsDir string
}

// NewManager creates the storage directories and returns a file-backed store.
func NewManager(baseDir string) (*Manager, error) {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		return nil, fmt.Errorf("storage base dir is empty")
	}
	m := &Manager{
		baseDir:     baseDir,
		sessionsDir: filepath.Join(baseDir, "sessions"),
	}
	for _, dir := range []string{m.baseDir, m.sessionsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return m, nil
}

// PromptsPath returns the path for the prompt template file.
func (m *Manager) PromptsPath() string {
	return filepath.Join(m.baseDir, "prompts.json")
}

func (m *Manager) metadataPath() string {
	return filepath.Join(m.sessionsDir, "metadata.json")
}

func (m *Manager) recordPath(id string) string {
	return filepath.Join(m.sessionsDir, id+".json")
}

func (m *Manager) loadMetadata() ([]session.Meta, error) {
	var metas []session.Meta
	if err := readJSONFile(m.metadataPath(), &metas); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return metas, nil
}

func (m *Manager) saveMetadata(metas []session.Meta) error {
	return writeJSONFile(m.metadataPath(), metas)
}

func (m *Manager) CreateSession(meta session.Meta) error {
	if strings.TrimSpace(meta.ID) == "" {
		return fmt.Errorf("session id is empty")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if strings.TrimSpace(meta.CreatedDate) == "" {
		meta.CreatedDate = now
	}
	if strings.TrimSpace(meta.LastModifiedDate) == "" {
		meta.LastModifiedDate = now
	}
	metas, err := m.loadMetadata()
	if err != nil {
		return err
	}
	for _, existing := range metas {
		if existing.ID == meta.ID {
			return fmt.Errorf("session already exists: %s", meta.ID)
		}
	}
	metas = append(metas, meta)
	return m.saveMetadata(metas)
}

func (m *Manager) SaveSession(meta session.Meta) error {
	metas, err := m.loadMetadata()
	if err != nil {
		return err
	}
	meta.LastModifiedDate = time.Now().UTC().Format(time.RFC3339)
	found := false
	for i := range metas {
		if metas[i].ID == meta.ID {
			metas[i] = meta
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("session not found: %s", meta.ID)
	}
	return m.saveMetadata(metas)
}

func (m *Manager) ListSessions() ([]session.Meta, error) {
	metas, err := m.loadMetadata()
	if err != nil {
		return nil, err
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].LastModifiedDate > metas[j].LastModifiedDate
	})
	return metas, nil
}

func (m *Manager) DeleteSession(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("session id is empty")
	}
	metas, err := m.loadMetadata()
	if err != nil {
		return err
	}
	kept := metas[:0]
	for _, meta := range metas {
		if meta.ID != id {
			kept = append(kept, meta)
		}
	}
	if err := m.saveMetadata(kept); err != nil {
		return err
	}
	if err := os.Remove(m.recordPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove record %s: %w", id, err)
	}
	return nil
}

// LoadRecord returns the session's record; a session that has never been
// saved yields an empty record, not an error.
func (m *Manager) LoadRecord(id string) (session.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return session.Record{}, fmt.Errorf("session id is empty")
	}
	var rec session.Record
	if err := readJSONFile(m.recordPath(id), &rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return session.Record{}, nil
		}
		return session.Record{}, err
	}
	return rec, nil
}

func (m *Manager) SaveRecord(id string, rec session.Record) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("session id is empty")
	}
	if err := writeJSONFile(m.recordPath(id), rec); err != nil {
		return err
	}
	// 更新元数据时间戳；未登记的会话跳过
	// Touch the metadata timestamp; unregistered sessions are skipped
	metas, err := m.loadMetadata()
	if err != nil {
		return err
	}
	for i := range metas {
		if metas[i].ID == id {
			metas[i].LastModifiedDate = time.Now().UTC().Format(time.RFC3339)
			return m.saveMetadata(metas)
		}
	}
	return nil
}

func (m *Manager) Close() error {
	return nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

var _ Store = (*Manager)(nil)
