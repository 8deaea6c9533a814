package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vlab/internal/chat"
	"vlab/internal/prompts"
	"vlab/internal/session"
)

// Limits on generated rosters and finding lists.
const (
	maxPeople   = 5
	maxFindings = 10
)

// ErrMissingSummary 前置阶段未完成 / A stage that needs the executive
// summary was invoked before discovery produced one.
var ErrMissingSummary = errors.New("no executive summary: run the discovery summary first")

// ErrMeetingsIncomplete is returned when the final report is requested
// before every meeting has a summary report.
var ErrMeetingsIncomplete = errors.New("final report needs every meeting completed and summarized")

// Sender issues one blocking chat completion. Failure content comes back
// as usable text with the structured error alongside.
type Sender interface {
	Send(ctx context.Context, messages []chat.Message, systemPrompt string) (string, error)
}

// Stages 串起会议前后的工作流阶段：任务发现、执行摘要、专家名单、
// 先例研究、最终报告与报告问答
// Stages drives the workflow phases around the meetings: task discovery,
// executive summary, persona roster, precedent research, final report and
// report Q&A. Each operation mutates the record in place; persistence is
// the caller's responsibility.
type Stages struct {
	send Sender
	tpl  *prompts.Store
}

// New creates the stage runner.
func New(send Sender, tpl *prompts.Store) *Stages {
	return &Stages{send: send, tpl: tpl}
}

// Discover runs one turn of the discovery interview: the user's input is
// appended, the full history is sent under the interviewer instruction,
// and the reply is appended as the assistant turn. A failed call still
// lands in the conversation as error content.
func (s *Stages) Discover(ctx context.Context, rec *session.Record, input string) (string, error, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil, fmt.Errorf("empty discovery input")
	}
	rec.Messages = append(rec.Messages, chat.User(input))

	reply, callErr := s.send.Send(ctx, rec.Messages, s.tpl.Get(prompts.DiscoveryMessage))
	rec.Messages = append(rec.Messages, chat.Assistant(reply))
	return reply, callErr, nil
}

// Summarize condenses the discovery conversation into the executive
// summary. Failure content is NOT stored: a summary that reads "Error:"
// would poison every downstream prompt, so the record keeps its previous
// summary and the call error is returned.
func (s *Stages) Summarize(ctx context.Context, rec *session.Record) (string, error) {
	if len(rec.Messages) == 0 {
		return "", fmt.Errorf("no discovery conversation to summarize")
	}
	history := make([]chat.Message, 0, len(rec.Messages)+1)
	history = append(history, rec.Messages...)
	history = append(history, chat.User(s.tpl.Get(prompts.DiscoverySummarize)))

	reply, callErr := s.send.Send(ctx, history, "")
	if callErr != nil {
		return "", callErr
	}
	rec.Summary = reply
	return reply, nil
}

// GeneratePeople produces the expert roster from the executive summary.
// The roster is replaced wholesale on success; on any failure the existing
// roster is untouched.
func (s *Stages) GeneratePeople(ctx context.Context, rec *session.Record) ([]session.Persona, error) {
	if strings.TrimSpace(rec.Summary) == "" {
		return nil, ErrMissingSummary
	}
	prompt := prompts.Apply(s.tpl.Get(prompts.PeopleUser), map[string]string{
		prompts.PlaceholderExecutiveSummary: rec.Summary,
	})
	reply, callErr := s.send.Send(ctx, []chat.Message{chat.User(prompt)}, s.tpl.Get(prompts.PeopleSystem))
	if callErr != nil {
		return nil, callErr
	}
	people, err := parsePeople(reply, maxPeople)
	if err != nil {
		return nil, err
	}
	rec.People = people
	return people, nil
}

// GenerateResearch produces the precedent finding list from the executive
// summary. Regenerating findings after meetings were initialized leaves
// the meeting set untouched and out of sync; detecting that is the meeting
// package's stale check, surfaced by the caller.
func (s *Stages) GenerateResearch(ctx context.Context, rec *session.Record) ([]session.ResearchFinding, error) {
	if strings.TrimSpace(rec.Summary) == "" {
		return nil, ErrMissingSummary
	}
	prompt := prompts.Apply(s.tpl.Get(prompts.ResearchUser), map[string]string{
		prompts.PlaceholderExecutiveSummary: rec.Summary,
	})
	reply, callErr := s.send.Send(ctx, []chat.Message{chat.User(prompt)}, s.tpl.Get(prompts.ResearchSystem))
	if callErr != nil {
		return nil, callErr
	}
	findings, err := parseFindings(reply, maxFindings)
	if err != nil {
		return nil, err
	}
	rec.ResearchFindings = findings
	return findings, nil
}

// GenerateFinalReport combines every meeting's summary report into the
// executive final report. Every meeting must be complete and summarized.
func (s *Stages) GenerateFinalReport(ctx context.Context, rec *session.Record) (string, error) {
	if len(rec.Meetings) == 0 {
		return "", fmt.Errorf("%w: no meetings", ErrMeetingsIncomplete)
	}
	var combined strings.Builder
	for i, m := range rec.Meetings {
		if !m.IsComplete || strings.TrimSpace(m.SummaryReport) == "" {
			return "", fmt.Errorf("%w: meeting %d (%s)", ErrMeetingsIncomplete, i+1, m.Topic)
		}
		fmt.Fprintf(&combined, "## Meeting %d: %s\n\n%s\n\n", i+1, m.Topic, m.SummaryReport)
	}

	prompt := prompts.Apply(s.tpl.Get(prompts.ReportUser), map[string]string{
		prompts.PlaceholderDiscoverySummary:   rec.Summary,
		prompts.PlaceholderCombinedSubReports: combined.String(),
	})
	reply, callErr := s.send.Send(ctx, []chat.Message{chat.User(prompt)}, s.tpl.Get(prompts.ReportSystem))
	if callErr != nil {
		return "", callErr
	}
	rec.FinalReport = reply
	return reply, nil
}

// AskReport runs one turn of Q&A grounded on the final report. The report
// itself rides in the system prompt; the Q&A history is kept separate from
// the discovery conversation.
func (s *Stages) AskReport(ctx context.Context, rec *session.Record, question string) (string, error, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil, fmt.Errorf("empty question")
	}
	if strings.TrimSpace(rec.FinalReport) == "" {
		return "", nil, fmt.Errorf("no final report to discuss")
	}
	rec.ReportChatMessages = append(rec.ReportChatMessages, chat.User(question))

	systemPrompt := fmt.Sprintf(
		"You are answering questions about the following final report. Ground every answer in the report's content.\n\n%s",
		rec.FinalReport)
	reply, callErr := s.send.Send(ctx, rec.ReportChatMessages, systemPrompt)
	rec.ReportChatMessages = append(rec.ReportChatMessages, chat.Assistant(reply))
	return reply, callErr, nil
}
