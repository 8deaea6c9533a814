package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"vlab/internal/session"
)

// Markdown 使用 Glamour 渲染 markdown 文本
// Markdown renders markdown text using Glamour
func Markdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimRight(rendered, "\n")
}

// Transcript 把会议记录渲染成可读的纯文本
// Transcript renders a meeting transcript as readable plain text: the
// topic header, then one block per entry with the speaker name.
func Transcript(m *session.Meeting) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s%s ===\n%s\n", session.TopicPrefix, m.Topic, m.Description)
	for _, msg := range m.Messages[1:] {
		fmt.Fprintf(&b, "\n[%s]\n%s\n", msg.ParticipantName, msg.Content)
	}
	return b.String()
}

// MeetingLine renders the one-line status entry used by meeting listings.
func MeetingLine(idx int, m *session.Meeting, maxTurns int) string {
	status := "pending"
	switch {
	case m.IsComplete:
		status = "complete"
	case m.TurnCount > 0:
		status = fmt.Sprintf("turn %d/%d", m.TurnCount, maxTurns)
	}
	return fmt.Sprintf("%2d. [%s] %s", idx+1, status, m.Topic)
}
