package stages

import (
	"encoding/json"
	"fmt"
	"regexp"

	"vlab/internal/session"
)

// arrayPattern matches the outermost JSON array span in a model reply,
// tolerating prose or code fences around it.
var arrayPattern = regexp.MustCompile(`\[[\s\S]*\]`)

// ParseError 解析失败时保留原始回复，便于排查模型输出
// ParseError preserves the raw model reply when structured extraction
// fails, so the operator can inspect exactly what came back.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model reply: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// extractArray pulls the JSON array span out of a reply and unmarshals it
// strictly into dst. There is no repair or retry: a reply that does not
// carry a well-formed array is a parse failure with the raw text attached.
func extractArray(reply string, dst any) error {
	span := arrayPattern.FindString(reply)
	if span == "" {
		return &ParseError{Raw: reply, Err: fmt.Errorf("no JSON array in reply")}
	}
	if err := json.Unmarshal([]byte(span), dst); err != nil {
		return &ParseError{Raw: reply, Err: err}
	}
	return nil
}

type personaEntry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type findingEntry struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Citation    string `json:"citation"`
}

// parsePeople converts a model reply into at most limit personas with
// fresh ids. Shape problems surface as errors, never as defaulted fields.
func parsePeople(reply string, limit int) ([]session.Persona, error) {
	var entries []personaEntry
	if err := extractArray(reply, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &ParseError{Raw: reply, Err: fmt.Errorf("empty persona array")}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	people := make([]session.Persona, 0, len(entries))
	for _, e := range entries {
		people = append(people, session.Persona{
			ID:          session.NewID(),
			Title:       e.Title,
			Description: e.Description,
		})
	}
	if err := session.ValidateRoster(people); err != nil {
		return nil, &ParseError{Raw: reply, Err: err}
	}
	return people, nil
}

// parseFindings converts a model reply into at most limit research
// findings with fresh ids.
func parseFindings(reply string, limit int) ([]session.ResearchFinding, error) {
	var entries []findingEntry
	if err := extractArray(reply, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &ParseError{Raw: reply, Err: fmt.Errorf("empty finding array")}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	findings := make([]session.ResearchFinding, 0, len(entries))
	for _, e := range entries {
		findings = append(findings, session.ResearchFinding{
			ID:          session.NewID(),
			Topic:       e.Topic,
			Description: e.Description,
			Citation:    e.Citation,
		})
	}
	if err := session.ValidateFindings(findings); err != nil {
		return nil, &ParseError{Raw: reply, Err: err}
	}
	return findings, nil
}
