package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// NewID 生成新的对象 ID / Generates a new object ID
func NewID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// NewSessionID 生成新的会话 ID / Generates a new session ID
func NewSessionID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("sess_%d_%s", time.Now().UTC().Unix(), hex.EncodeToString(buf))
}

// ValidateRoster checks the persona roster for basic shape: every entry
// needs a title and a description. Malformed upstream data is surfaced to
// the caller, never silently defaulted.
func ValidateRoster(roster []Persona) error {
	for i, p := range roster {
		if strings.TrimSpace(p.Title) == "" {
			return fmt.Errorf("persona %d: title is empty", i)
		}
		if strings.TrimSpace(p.Description) == "" {
			return fmt.Errorf("persona %d (%s): description is empty", i, p.Title)
		}
	}
	return nil
}

// ValidateFindings checks the research finding list for basic shape.
func ValidateFindings(findings []ResearchFinding) error {
	for i, f := range findings {
		if strings.TrimSpace(f.Topic) == "" {
			return fmt.Errorf("finding %d: topic is empty", i)
		}
		if strings.TrimSpace(f.Description) == "" {
			return fmt.Errorf("finding %d (%s): description is empty", i, f.Topic)
		}
	}
	return nil
}
