package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store 模板存储：按 id 映射模板内容，文件持久化，缺省回退到内置默认
// Store maps template ids to content, persisted as one JSON file.
// Unset ids fall back to the built-in defaults.
type Store struct {
	path      string
	overrides map[string]string
	mu        sync.RWMutex
}

type promptEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type promptsFile struct {
	Prompts []promptEntry `json:"prompts"`
	Version string        `json:"version"`
}

// NewStore loads (or creates) the prompt store backed by the given file.
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("prompts path is empty")
	}
	s := &Store{path: path, overrides: map[string]string{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read prompts %q: %w", s.path, err)
	}
	var pf promptsFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse prompts %q: %w", s.path, err)
	}
	for _, p := range pf.Prompts {
		id := strings.TrimSpace(p.ID)
		if id == "" || p.Content == "" {
			continue
		}
		s.overrides[id] = p.Content
	}
	return nil
}

func (s *Store) persist() error {
	pf := promptsFile{Version: "1.0"}
	for id, content := range s.overrides {
		pf.Prompts = append(pf.Prompts, promptEntry{
			ID:      id,
			Name:    titleCase(id),
			Content: content,
		})
	}
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal prompts: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create prompts dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write prompts %q: %w", s.path, err)
	}
	return nil
}

func titleCase(id string) string {
	words := strings.Split(id, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Get returns the template for id, falling back to the built-in default.
func (s *Store) Get(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if content, ok := s.overrides[id]; ok {
		return content
	}
	return Defaults[id]
}

// Set overrides the template for id and persists the store.
func (s *Store) Set(id, content string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("prompt id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[id] = content
	return s.persist()
}

// ResetAll drops every override, restoring built-in defaults.
func (s *Store) ResetAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = map[string]string{}
	return s.persist()
}

// All returns the effective template set (defaults merged with overrides).
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(Defaults))
	for id, content := range Defaults {
		out[id] = content
	}
	for id, content := range s.overrides {
		out[id] = content
	}
	return out
}

// Apply 逐个占位符做字面替换；替换进去的值不会被再次扫描
// Apply substitutes each placeholder token literally. Substituted values
// are not re-scanned: every token is replaced against the original
// template text, not against previously substituted output.
func Apply(template string, values map[string]string) string {
	if len(values) == 0 {
		return template
	}
	// Build once over the template; each replacement targets a distinct
	// token, so ordering cannot cascade into substituted values unless a
	// value itself contains another token — split replacement avoids that.
	type span struct {
		start, end int
		value      string
	}
	var spans []span
	for token, value := range values {
		idx := 0
		for {
			pos := strings.Index(template[idx:], token)
			if pos < 0 {
				break
			}
			start := idx + pos
			spans = append(spans, span{start: start, end: start + len(token), value: value})
			idx = start + len(token)
		}
	}
	if len(spans) == 0 {
		return template
	}
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j-1].start > spans[j].start; j-- {
			spans[j-1], spans[j] = spans[j], spans[j-1]
		}
	}
	var b strings.Builder
	prev := 0
	for _, sp := range spans {
		b.WriteString(template[prev:sp.start])
		b.WriteString(sp.value)
		prev = sp.end
	}
	b.WriteString(template[prev:])
	return b.String()
}
