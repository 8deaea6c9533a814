package session

import "vlab/internal/chat"

// Persona 专家角色，由前置阶段生成，会议期间只读
// Persona is an AI-simulated expert; produced upstream, read-only during meetings
type Persona struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ResearchFinding 一条先例研究，对应一个会议
// ResearchFinding is one precedent entry; it seeds exactly one meeting
type ResearchFinding struct {
	ID          string `json:"id"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Citation    string `json:"citation"`
}

// MeetingMessage 会议消息；ParticipantID 为空表示议题种子消息或用户插话
// MeetingMessage is one transcript entry. An empty ParticipantID marks the
// synthetic topic seed or a user-injected message (ParticipantName == "You").
type MeetingMessage struct {
	ID              string `json:"id"`
	ParticipantName string `json:"participant_name"`
	Content         string `json:"content"`
	ParticipantID   string `json:"participant_id,omitempty"`
}

// Meeting 单个会议的全部状态
// Meeting holds one meeting's transcript, turn counter, completion flag and summary
type Meeting struct {
	ID            string           `json:"id"`
	Topic         string           `json:"topic"`
	Description   string           `json:"description"`
	Messages      []MeetingMessage `json:"messages"`
	TurnCount     int              `json:"turn_count"`
	IsComplete    bool             `json:"is_complete"`
	SummaryReport string           `json:"summary_report,omitempty"`
}

// Record 一个会话的全部阶段数据，持久化为单条扁平记录
// Record is the full per-session workflow state, persisted as one flat keyed record
type Record struct {
	Messages           []chat.Message    `json:"messages"`
	Summary            string            `json:"summary"`
	People             []Persona         `json:"people"`
	ResearchFindings   []ResearchFinding `json:"research_findings"`
	Meetings           []Meeting         `json:"meetings"`
	FinalReport        string            `json:"final_report"`
	ReportChatMessages []chat.Message    `json:"report_chat_messages"`
}

// Meta 会话元数据
// Meta is session metadata
type Meta struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	CreatedDate      string `json:"created_date"`
	LastModifiedDate string `json:"last_modified_date"`
}

// UserParticipant is the participant name used for facilitator-injected messages.
const UserParticipant = "You"

// TopicPrefix marks the synthetic seed message of every meeting.
const TopicPrefix = "Meeting Topic: "
