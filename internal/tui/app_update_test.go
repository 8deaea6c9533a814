package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"vlab/internal/meeting"
	"vlab/internal/session"
)

type stubRunner struct {
	ran   []int
	reset []int
}

func (s *stubRunner) RunMeeting(_ context.Context, rec *session.Record, idx int) (meeting.Report, error) {
	s.ran = append(s.ran, idx)
	rec.Meetings[idx].IsComplete = true
	rec.Meetings[idx].SummaryReport = "summary"
	return meeting.Report{MeetingID: rec.Meetings[idx].ID, Turns: 2}, nil
}

func (s *stubRunner) RunAll(ctx context.Context, rec *session.Record) ([]meeting.Report, error) {
	var reports []meeting.Report
	for i := range rec.Meetings {
		r, err := s.RunMeeting(ctx, rec, i)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (s *stubRunner) ResetMeeting(rec *session.Record, idx int) error {
	s.reset = append(s.reset, idx)
	meeting.Reset(&rec.Meetings[idx])
	return nil
}

func (s *stubRunner) MaxTurns() int { return 10 }

func testApp(t *testing.T) (App, *session.Record, *stubRunner) {
	t.Helper()
	rec := &session.Record{
		People: []session.Persona{{ID: "p1", Title: "Economist", Description: "d"}},
		ResearchFindings: []session.ResearchFinding{
			{ID: "f1", Topic: "Alpha", Description: "first"},
			{ID: "f2", Topic: "Beta", Description: "second"},
		},
	}
	if _, err := meeting.Initialize(rec, rec.ResearchFindings); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	runner := &stubRunner{}
	app := NewApp(rec, runner, Info{SessionID: "s1", SessionName: "demo", Model: "gpt-4o"})
	app.width, app.height = 100, 30
	app.relayout()
	return app, rec, runner
}

func TestAppUpdate_PanelAndCursor(t *testing.T) {
	app, _, _ := testApp(t)

	m, _ := app.Update(tea.KeyMsg{Type: tea.KeyTab})
	updated := m.(App)
	if updated.activePanel != PanelTranscript {
		t.Fatalf("expected transcript panel, got %v", updated.activePanel)
	}

	m, _ = updated.Update(tea.KeyMsg{Type: tea.KeyTab})
	m, _ = m.(App).Update(tea.KeyMsg{Type: tea.KeyTab})
	updated = m.(App)
	if updated.activePanel != PanelMeetings {
		t.Fatalf("expected wrap to meetings panel, got %v", updated.activePanel)
	}

	m, _ = updated.Update(tea.KeyMsg{Type: tea.KeyDown})
	updated = m.(App)
	if updated.cursor != 1 {
		t.Fatalf("cursor = %d, want 1", updated.cursor)
	}
	m, _ = updated.Update(tea.KeyMsg{Type: tea.KeyDown})
	updated = m.(App)
	if updated.cursor != 1 {
		t.Fatal("cursor must not run past the last meeting")
	}
}

func TestAppUpdate_TurnMsgAppendsTranscript(t *testing.T) {
	app, _, _ := testApp(t)

	m, _ := app.Update(TurnMsg{
		MeetingIdx: 0,
		Message:    session.MeetingMessage{ParticipantName: "Economist", Content: "First point.", ParticipantID: "p1"},
		Tokens:     120,
	})
	updated := m.(App)
	if updated.items[0].turnCount != 1 {
		t.Fatalf("turn count = %d, want 1", updated.items[0].turnCount)
	}
	if !strings.Contains(updated.items[0].transcript.String(), "First point.") {
		t.Fatalf("transcript missing turn: %q", updated.items[0].transcript.String())
	}
	if updated.tokensUsed != 120 {
		t.Fatalf("tokens used = %d, want 120", updated.tokensUsed)
	}
}

func TestAppUpdate_RunMeetingFlow(t *testing.T) {
	app, rec, runner := testApp(t)

	m, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	updated := m.(App)
	if !updated.running || !updated.items[0].running {
		t.Fatal("run state not set")
	}
	if cmd == nil {
		t.Fatal("expected run command")
	}

	msg := cmd()
	done, ok := msg.(MeetingDoneMsg)
	if !ok {
		t.Fatalf("got %T, want MeetingDoneMsg", msg)
	}
	if len(runner.ran) != 1 || runner.ran[0] != 0 {
		t.Fatalf("runner invocations = %v", runner.ran)
	}

	m, _ = updated.Update(done)
	updated = m.(App)
	if updated.running || updated.items[0].running {
		t.Fatal("run state not cleared")
	}
	if !updated.items[0].isComplete || updated.items[0].summary != "summary" {
		t.Fatalf("item state = %+v", updated.items[0])
	}

	// Enter on a completed meeting is a no-op.
	_, cmd = updated.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("completed meeting must not re-run")
	}
	_ = rec
}

func TestAppUpdate_ResetRestoresItem(t *testing.T) {
	app, rec, runner := testApp(t)
	rec.Meetings[0].IsComplete = true
	rec.Meetings[0].TurnCount = 3
	app.items[0].isComplete = true
	app.items[0].turnCount = 3
	app.items[0].summary = "old"

	m, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	updated := m.(App)
	if len(runner.reset) != 1 || runner.reset[0] != 0 {
		t.Fatalf("reset invocations = %v", runner.reset)
	}
	item := &updated.items[0]
	if item.isComplete || item.turnCount != 0 || item.summary != "" {
		t.Fatalf("item not reset: %+v", item)
	}
}

func TestAppUpdate_RunAllRefreshes(t *testing.T) {
	app, rec, _ := testApp(t)

	m, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	updated := m.(App)
	if cmd == nil {
		t.Fatal("expected run-all command")
	}
	msg := cmd()
	if _, ok := msg.(RunAllDoneMsg); !ok {
		t.Fatalf("got %T, want RunAllDoneMsg", msg)
	}

	m, _ = updated.Update(msg)
	updated = m.(App)
	for i := range updated.items {
		if !updated.items[i].isComplete {
			t.Fatalf("meeting %d not marked complete after run-all", i)
		}
	}
	if !rec.Meetings[1].IsComplete {
		t.Fatal("record not driven to completion")
	}
}
