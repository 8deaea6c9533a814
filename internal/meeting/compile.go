package meeting

import (
	"fmt"
	"strings"

	"vlab/internal/chat"
	"vlab/internal/prompts"
	"vlab/internal/session"
)

// readyAck is the synthetic assistant acknowledgment that closes the
// priming pair of every turn prompt.
const readyAck = "Understood. I'm ready to participate in the meeting."

// initialThoughts is the fallback instruction used when the transcript
// holds nothing beyond the topic seed.
const initialThoughts = "Please share your initial thoughts on this topic."

// TurnMessages 把会议记录编译成下一轮发言的请求消息序列
// TurnMessages compiles the meeting transcript into the exact message
// sequence for the acting persona's next turn: an instruction/ack priming
// pair, the folded transcript, and at most one of the initial-thoughts
// fallback or a facilitator question. Transcript folding always runs
// first; the fallback and the question are mutually exclusive.
func TurnMessages(m *session.Meeting, actor session.Persona, summary, question string, tpl *prompts.Store) []chat.Message {
	instruction := prompts.Apply(tpl.Get(prompts.MeetingExpert), map[string]string{
		prompts.PlaceholderPersonDescription:  actor.Description,
		prompts.PlaceholderSummary:            summary,
		prompts.PlaceholderMeetingDescription: m.Description,
	})

	history := []chat.Message{
		chat.User(instruction),
		chat.Assistant(readyAck),
	}

	for _, msg := range m.Messages[1:] {
		if !spokenMessage(msg) {
			continue
		}
		history = append(history, chat.User(fmt.Sprintf(
			"%s said: %s\n\nPlease respond as the %s.",
			msg.ParticipantName, msg.Content, actor.Title)))
	}

	if len(m.Messages) == 1 {
		history = append(history, chat.User(initialThoughts))
	} else if strings.TrimSpace(question) != "" {
		history = append(history, chat.User(fmt.Sprintf(
			"The facilitator asks you directly: %s\n\nPlease respond as the %s.",
			question, actor.Title)))
	}

	return history
}

// SummaryMessages 编译会议总结请求：单条 user 消息，无引导对
// SummaryMessages compiles the end-of-meeting summary request: the full
// chronological transcript substituted into the sub-report template as a
// single user message, with no priming pair.
func SummaryMessages(m *session.Meeting, tpl *prompts.Store) []chat.Message {
	prompt := prompts.Apply(tpl.Get(prompts.MeetingSubReport), map[string]string{
		prompts.PlaceholderMeetingTopic:       m.Topic,
		prompts.PlaceholderMeetingDescription: m.Description,
		prompts.PlaceholderTranscript:         Transcript(m),
	})
	return []chat.Message{chat.User(prompt)}
}

// Transcript renders the spoken transcript after the seed as
// "\n\n[{name}]:\n{content}" entries, in conversation order.
func Transcript(m *session.Meeting) string {
	var b strings.Builder
	for _, msg := range m.Messages[1:] {
		if !spokenMessage(msg) {
			continue
		}
		b.WriteString(fmt.Sprintf("\n\n[%s]:\n%s", msg.ParticipantName, msg.Content))
	}
	return b.String()
}

// spokenMessage reports whether a transcript entry was authored by a
// persona or injected by the user, as opposed to the synthetic seed.
func spokenMessage(msg session.MeetingMessage) bool {
	return msg.ParticipantID != "" || msg.ParticipantName == session.UserParticipant
}
