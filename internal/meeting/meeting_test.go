package meeting

import (
	"errors"
	"testing"

	"vlab/internal/session"
)

func testFindings() []session.ResearchFinding {
	return []session.ResearchFinding{
		{ID: "f1", Topic: "Water Policy", Description: "Pricing reform options", Citation: "ADB 2023"},
		{ID: "f2", Topic: "Grid Storage", Description: "Battery deployment at scale", Citation: "IEA 2024"},
		{ID: "f3", Topic: "Urban Heat", Description: "Cooling corridors for dense districts", Citation: "WRI 2022"},
	}
}

func testRoster() []session.Persona {
	return []session.Persona{
		{ID: "p1", Title: "Economist", Description: "A policy economist focused on incentives."},
		{ID: "p2", Title: "Engineer", Description: "An infrastructure engineer."},
		{ID: "p3", Title: "Ecologist", Description: "A field ecologist."},
	}
}

func TestInitializeCreatesOneMeetingPerFinding(t *testing.T) {
	rec := &session.Record{}
	findings := testFindings()

	created, err := Initialize(rec, findings)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !created {
		t.Fatal("expected meetings to be created")
	}
	if len(rec.Meetings) != len(findings) {
		t.Fatalf("got %d meetings, want %d", len(rec.Meetings), len(findings))
	}
	for i, m := range rec.Meetings {
		if m.Topic != findings[i].Topic {
			t.Errorf("meeting %d topic = %q, want %q", i, m.Topic, findings[i].Topic)
		}
		if m.Description != findings[i].Description {
			t.Errorf("meeting %d description = %q, want %q", i, m.Description, findings[i].Description)
		}
		if len(m.Messages) != 1 {
			t.Fatalf("meeting %d seeded with %d messages, want 1", i, len(m.Messages))
		}
		seed := m.Messages[0]
		if seed.ParticipantName != session.TopicPrefix+findings[i].Topic {
			t.Errorf("seed participant = %q", seed.ParticipantName)
		}
		if seed.Content != findings[i].Description {
			t.Errorf("seed content = %q", seed.Content)
		}
		if seed.ParticipantID != "" {
			t.Errorf("seed must not carry a participant id, got %q", seed.ParticipantID)
		}
		if m.TurnCount != 0 || m.IsComplete || m.SummaryReport != "" {
			t.Errorf("meeting %d not in initial state: %+v", i, m)
		}
	}
}

func TestInitializeIsNoOpWhenMeetingsExist(t *testing.T) {
	rec := &session.Record{}
	if _, err := Initialize(rec, testFindings()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	rec.Meetings[0].TurnCount = 4

	created, err := Initialize(rec, testFindings()[:1])
	if err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if created {
		t.Fatal("second Initialize must not recreate meetings")
	}
	if len(rec.Meetings) != 3 || rec.Meetings[0].TurnCount != 4 {
		t.Fatal("existing meetings were modified")
	}
}

func TestInitializeRejectsMalformedFindings(t *testing.T) {
	rec := &session.Record{}
	findings := testFindings()
	findings[1].Topic = "  "

	if _, err := Initialize(rec, findings); err == nil {
		t.Fatal("expected error for finding with blank topic")
	}
	if len(rec.Meetings) != 0 {
		t.Fatal("no meetings should be created on validation failure")
	}
}

func TestCheckStale(t *testing.T) {
	rec := &session.Record{ResearchFindings: testFindings()}
	if err := CheckStale(rec); err != nil {
		t.Fatalf("uninitialized set reported stale: %v", err)
	}

	if _, err := Initialize(rec, rec.ResearchFindings); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := CheckStale(rec); err != nil {
		t.Fatalf("matching set reported stale: %v", err)
	}

	rec.ResearchFindings = rec.ResearchFindings[:2]
	err := CheckStale(rec)
	if !errors.Is(err, ErrStaleSet) {
		t.Fatalf("got %v, want ErrStaleSet", err)
	}
	if len(rec.Meetings) != 3 {
		t.Fatal("CheckStale must never resize the meeting set")
	}
}

func TestNextActorCyclesRoster(t *testing.T) {
	roster := testRoster()
	m := &session.Meeting{}

	want := []string{"p1", "p2", "p3", "p1", "p2"}
	for turn, id := range want {
		m.TurnCount = turn
		actor, err := NextActor(m, roster)
		if err != nil {
			t.Fatalf("turn %d: %v", turn, err)
		}
		if actor.ID != id {
			t.Fatalf("turn %d actor = %s, want %s", turn, actor.ID, id)
		}
	}
}

func TestNextActorEmptyRoster(t *testing.T) {
	m := &session.Meeting{TurnCount: 2}
	_, err := NextActor(m, nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	finding := testFindings()[0]
	m := NewMeeting(finding)
	m.Messages = append(m.Messages, session.MeetingMessage{
		ID: "x", ParticipantName: "Economist", Content: "hello", ParticipantID: "p1",
	})
	m.TurnCount = 1
	m.IsComplete = true
	m.SummaryReport = "done"

	Reset(&m)

	if m.TurnCount != 0 || m.IsComplete || m.SummaryReport != "" {
		t.Fatalf("reset left state: %+v", m)
	}
	if len(m.Messages) != 1 {
		t.Fatalf("reset left %d messages, want 1", len(m.Messages))
	}
	seed := m.Messages[0]
	if seed.ParticipantName != session.TopicPrefix+finding.Topic || seed.Content != finding.Description {
		t.Fatalf("reset seed = %+v", seed)
	}
}

func TestInjectUserMessageDoesNotConsumeTurn(t *testing.T) {
	m := NewMeeting(testFindings()[0])
	InjectUserMessage(&m, "Consider desalination costs.")

	if m.TurnCount != 0 {
		t.Fatalf("turn count = %d, want 0", m.TurnCount)
	}
	last := m.Messages[len(m.Messages)-1]
	if last.ParticipantName != session.UserParticipant {
		t.Fatalf("participant = %q, want %q", last.ParticipantName, session.UserParticipant)
	}
	if last.ParticipantID != "" {
		t.Fatal("user message must not carry a participant id")
	}
	if !spokenMessage(last) {
		t.Fatal("user message must fold into turn prompts")
	}
}
