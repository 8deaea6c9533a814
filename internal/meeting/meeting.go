package meeting

import (
	"errors"
	"fmt"

	"vlab/internal/session"
)

// ErrInvalidState 结构性不变量被破坏：空的专家名单、不存在的会议
// ErrInvalidState marks structural invariant violations: an empty persona
// roster, or a meeting index that does not exist in the set.
var ErrInvalidState = errors.New("invalid meeting state")

// ErrStaleSet 研究发现被重新生成后与已初始化的会议列表不再对应
// ErrStaleSet reports that research findings were regenerated after the
// meeting set was initialized, leaving topics and meetings desynchronized.
// The set is never resized or reconciled automatically.
var ErrStaleSet = errors.New("meeting set out of sync with research findings")

// NewMeeting constructs a meeting seeded with the synthetic topic message.
func NewMeeting(finding session.ResearchFinding) session.Meeting {
	return session.Meeting{
		ID:          session.NewID(),
		Topic:       finding.Topic,
		Description: finding.Description,
		Messages:    []session.MeetingMessage{seedMessage(finding.Topic, finding.Description)},
	}
}

func seedMessage(topic, description string) session.MeetingMessage {
	return session.MeetingMessage{
		ID:              session.NewID(),
		ParticipantName: session.TopicPrefix + topic,
		Content:         description,
	}
}

// Initialize creates one meeting per research finding, order preserved.
// It is a no-op when meetings already exist for the session, so repeated
// calls cannot double-initialize or silently diverge from the finding list.
// The returned bool reports whether meetings were created.
func Initialize(rec *session.Record, findings []session.ResearchFinding) (bool, error) {
	if len(rec.Meetings) > 0 {
		return false, nil
	}
	if err := session.ValidateFindings(findings); err != nil {
		return false, fmt.Errorf("research findings: %w", err)
	}
	meetings := make([]session.Meeting, 0, len(findings))
	for _, finding := range findings {
		meetings = append(meetings, NewMeeting(finding))
	}
	rec.Meetings = meetings
	return true, nil
}

// CheckStale reports ErrStaleSet when an initialized meeting set no longer
// matches the finding list. It never mutates the set: whether to preserve
// meeting progress or re-initialize is the caller's decision.
func CheckStale(rec *session.Record) error {
	if len(rec.Meetings) == 0 {
		return nil
	}
	if len(rec.Meetings) != len(rec.ResearchFindings) {
		return fmt.Errorf("%w: %d meetings, %d findings",
			ErrStaleSet, len(rec.Meetings), len(rec.ResearchFindings))
	}
	return nil
}

// NextActor returns the persona whose turn it is: roster[turn_count % len].
// The cycle is purely a function of the turn counter, so a resumed meeting
// continues exactly where its persisted state left off.
func NextActor(m *session.Meeting, roster []session.Persona) (session.Persona, error) {
	if len(roster) == 0 {
		return session.Persona{}, fmt.Errorf("%w: empty persona roster", ErrInvalidState)
	}
	return roster[m.TurnCount%len(roster)], nil
}

// Reset restores the meeting to its initial state: one topic seed message,
// zero turns, not complete, no summary.
func Reset(m *session.Meeting) {
	m.Messages = []session.MeetingMessage{seedMessage(m.Topic, m.Description)}
	m.TurnCount = 0
	m.IsComplete = false
	m.SummaryReport = ""
}

// InjectUserMessage appends a facilitator message to the transcript under
// the "You" participant. It does not consume a persona turn.
func InjectUserMessage(m *session.Meeting, content string) {
	m.Messages = append(m.Messages, session.MeetingMessage{
		ID:              session.NewID(),
		ParticipantName: session.UserParticipant,
		Content:         content,
	})
}

func meetingAt(rec *session.Record, idx int) (*session.Meeting, error) {
	if idx < 0 || idx >= len(rec.Meetings) {
		return nil, fmt.Errorf("%w: no meeting at index %d (set size %d)",
			ErrInvalidState, idx, len(rec.Meetings))
	}
	return &rec.Meetings[idx], nil
}
