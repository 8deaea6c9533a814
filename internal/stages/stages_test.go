package stages

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"vlab/internal/chat"
	"vlab/internal/gateway"
	"vlab/internal/prompts"
	"vlab/internal/session"
)

type cannedSender struct {
	replies []string
	errs    []error
	calls   int
	system  []string
	history [][]chat.Message
}

func (c *cannedSender) Send(_ context.Context, messages []chat.Message, systemPrompt string) (string, error) {
	idx := c.calls
	c.calls++
	c.system = append(c.system, systemPrompt)
	c.history = append(c.history, messages)
	var err error
	if idx < len(c.errs) {
		err = c.errs[idx]
	}
	reply := "ok"
	if idx < len(c.replies) {
		reply = c.replies[idx]
	}
	if err != nil {
		return gateway.ErrorPrefix + err.Error(), err
	}
	return reply, nil
}

func testStages(t *testing.T, sender Sender) *Stages {
	t.Helper()
	tpl, err := prompts.NewStore(filepath.Join(t.TempDir(), "prompts.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return New(sender, tpl)
}

func TestDiscoverAppendsBothTurns(t *testing.T) {
	sender := &cannedSender{replies: []string{"What is the core goal?"}}
	s := testStages(t, sender)
	rec := &session.Record{}

	reply, callErr, err := s.Discover(context.Background(), rec, "Improve urban water use.")
	if err != nil || callErr != nil {
		t.Fatalf("Discover: %v / %v", err, callErr)
	}
	if reply != "What is the core goal?" {
		t.Fatalf("reply = %q", reply)
	}
	if len(rec.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(rec.Messages))
	}
	if rec.Messages[0].Role != chat.RoleUser || rec.Messages[1].Role != chat.RoleAssistant {
		t.Fatalf("roles = %s, %s", rec.Messages[0].Role, rec.Messages[1].Role)
	}
	if !strings.Contains(sender.system[0], "series of small concise questions") {
		t.Error("discovery system prompt not applied")
	}
}

func TestDiscoverStoresErrorContent(t *testing.T) {
	boom := errors.New("rate limited")
	sender := &cannedSender{errs: []error{boom}}
	s := testStages(t, sender)
	rec := &session.Record{}

	reply, callErr, err := s.Discover(context.Background(), rec, "hello")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if !errors.Is(callErr, boom) {
		t.Fatalf("call error = %v", callErr)
	}
	if reply != "Error: rate limited" {
		t.Fatalf("reply = %q", reply)
	}
	if rec.Messages[1].Content != "Error: rate limited" {
		t.Fatal("error content must land in the conversation")
	}
}

func TestSummarizeRejectsFailureContent(t *testing.T) {
	boom := errors.New("timeout")
	sender := &cannedSender{errs: []error{boom}}
	s := testStages(t, sender)
	rec := &session.Record{
		Messages: []chat.Message{chat.User("hi"), chat.Assistant("hello")},
		Summary:  "previous summary",
	}

	_, err := s.Summarize(context.Background(), rec)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want timeout", err)
	}
	if rec.Summary != "previous summary" {
		t.Fatal("failed summarize must not overwrite the summary")
	}
}

func TestSummarizeSetsSummary(t *testing.T) {
	sender := &cannedSender{replies: []string{"**Executive Summary**\n\nDo the thing."}}
	s := testStages(t, sender)
	rec := &session.Record{Messages: []chat.Message{chat.User("hi"), chat.Assistant("hello")}}

	got, err := s.Summarize(context.Background(), rec)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if rec.Summary != got || !strings.Contains(got, "Do the thing.") {
		t.Fatalf("summary = %q", rec.Summary)
	}
	last := sender.history[0][len(sender.history[0])-1]
	if !strings.Contains(last.Content, "concise summary of the task") {
		t.Error("summarize instruction not appended to history")
	}
}

func TestGeneratePeopleParsesRoster(t *testing.T) {
	reply := `Here is the team:
[{"title": "Economist", "description": "Prices externalities."},
 {"title": "Engineer", "description": "Builds systems."}]`
	sender := &cannedSender{replies: []string{reply}}
	s := testStages(t, sender)
	rec := &session.Record{Summary: "Fix the grid."}

	people, err := s.GeneratePeople(context.Background(), rec)
	if err != nil {
		t.Fatalf("GeneratePeople: %v", err)
	}
	if len(people) != 2 {
		t.Fatalf("people = %d, want 2", len(people))
	}
	if people[0].Title != "Economist" || people[0].ID == "" {
		t.Fatalf("first persona = %+v", people[0])
	}
	if len(rec.People) != 2 {
		t.Fatal("roster not stored on record")
	}
	if !strings.Contains(sender.history[0][0].Content, "Fix the grid.") {
		t.Error("executive summary not substituted into the prompt")
	}
}

func TestGeneratePeopleRequiresSummary(t *testing.T) {
	s := testStages(t, &cannedSender{})
	_, err := s.GeneratePeople(context.Background(), &session.Record{})
	if !errors.Is(err, ErrMissingSummary) {
		t.Fatalf("got %v, want ErrMissingSummary", err)
	}
}

func TestGeneratePeopleKeepsRosterOnParseFailure(t *testing.T) {
	sender := &cannedSender{replies: []string{"I cannot produce JSON today."}}
	s := testStages(t, sender)
	rec := &session.Record{
		Summary: "Fix the grid.",
		People:  []session.Persona{{ID: "p1", Title: "Keeper", Description: "stays"}},
	}

	_, err := s.GeneratePeople(context.Background(), rec)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("got %v, want ParseError", err)
	}
	if parseErr.Raw != "I cannot produce JSON today." {
		t.Fatalf("raw reply not preserved: %q", parseErr.Raw)
	}
	if len(rec.People) != 1 || rec.People[0].ID != "p1" {
		t.Fatal("existing roster must survive a parse failure")
	}
}

func TestGeneratePeopleTruncatesToLimit(t *testing.T) {
	var entries []string
	for i := 0; i < 8; i++ {
		entries = append(entries, `{"title": "T", "description": "D"}`)
	}
	sender := &cannedSender{replies: []string{"[" + strings.Join(entries, ",") + "]"}}
	s := testStages(t, sender)
	rec := &session.Record{Summary: "x"}

	people, err := s.GeneratePeople(context.Background(), rec)
	if err != nil {
		t.Fatalf("GeneratePeople: %v", err)
	}
	if len(people) != 5 {
		t.Fatalf("people = %d, want 5", len(people))
	}
}

func TestGenerateResearchParsesFindings(t *testing.T) {
	reply := "```json\n" + `[{"topic": "Water Policy", "description": "Singapore pricing.", "citation": "PUB 2020"}]` + "\n```"
	sender := &cannedSender{replies: []string{reply}}
	s := testStages(t, sender)
	rec := &session.Record{Summary: "Fix water."}

	findings, err := s.GenerateResearch(context.Background(), rec)
	if err != nil {
		t.Fatalf("GenerateResearch: %v", err)
	}
	if len(findings) != 1 || findings[0].Topic != "Water Policy" || findings[0].Citation != "PUB 2020" {
		t.Fatalf("findings = %+v", findings)
	}
	if findings[0].ID == "" {
		t.Fatal("finding id not assigned")
	}
}

func TestGenerateResearchRejectsBlankTopic(t *testing.T) {
	sender := &cannedSender{replies: []string{`[{"topic": "", "description": "d", "citation": "c"}]`}}
	s := testStages(t, sender)
	rec := &session.Record{Summary: "x"}

	_, err := s.GenerateResearch(context.Background(), rec)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("got %v, want ParseError for blank topic", err)
	}
}

func TestGenerateFinalReportCombinesSubReports(t *testing.T) {
	sender := &cannedSender{replies: []string{"# Final Report\n\nEverything."}}
	s := testStages(t, sender)
	rec := &session.Record{
		Summary: "The task.",
		Meetings: []session.Meeting{
			{ID: "m1", Topic: "Alpha", IsComplete: true, SummaryReport: "Alpha summary."},
			{ID: "m2", Topic: "Beta", IsComplete: true, SummaryReport: "Beta summary."},
		},
	}

	report, err := s.GenerateFinalReport(context.Background(), rec)
	if err != nil {
		t.Fatalf("GenerateFinalReport: %v", err)
	}
	if rec.FinalReport != report {
		t.Fatal("report not stored")
	}
	prompt := sender.history[0][0].Content
	if !strings.Contains(prompt, "## Meeting 1: Alpha") || !strings.Contains(prompt, "Beta summary.") {
		t.Fatalf("sub reports not combined: %q", prompt)
	}
	if !strings.Contains(prompt, "The task.") {
		t.Error("discovery summary not substituted")
	}
}

func TestGenerateFinalReportRequiresCompleteMeetings(t *testing.T) {
	s := testStages(t, &cannedSender{})
	rec := &session.Record{
		Summary: "x",
		Meetings: []session.Meeting{
			{ID: "m1", Topic: "Alpha", IsComplete: true, SummaryReport: "done"},
			{ID: "m2", Topic: "Beta", IsComplete: false},
		},
	}
	_, err := s.GenerateFinalReport(context.Background(), rec)
	if !errors.Is(err, ErrMeetingsIncomplete) {
		t.Fatalf("got %v, want ErrMeetingsIncomplete", err)
	}
	if rec.FinalReport != "" {
		t.Fatal("partial set must not produce a report")
	}
}

func TestAskReportKeepsSeparateHistory(t *testing.T) {
	sender := &cannedSender{replies: []string{"It recommends pricing."}}
	s := testStages(t, sender)
	rec := &session.Record{
		Messages:    []chat.Message{chat.User("discovery turn")},
		FinalReport: "# Report\n\nPricing is key.",
	}

	reply, callErr, err := s.AskReport(context.Background(), rec, "What does it recommend?")
	if err != nil || callErr != nil {
		t.Fatalf("AskReport: %v / %v", err, callErr)
	}
	if reply != "It recommends pricing." {
		t.Fatalf("reply = %q", reply)
	}
	if len(rec.ReportChatMessages) != 2 {
		t.Fatalf("report chat = %d messages, want 2", len(rec.ReportChatMessages))
	}
	if len(rec.Messages) != 1 {
		t.Fatal("discovery history must not grow")
	}
	if !strings.Contains(sender.system[0], "Pricing is key.") {
		t.Error("report content not carried in the system prompt")
	}

	if _, _, err := s.AskReport(context.Background(), &session.Record{}, "q"); err == nil {
		t.Fatal("expected error without a final report")
	}
}
