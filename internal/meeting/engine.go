package meeting

import (
	"context"
	"fmt"
	"strings"

	"vlab/internal/chat"
	"vlab/internal/prompts"
	"vlab/internal/session"
)

// Executor 执行一次阻塞的 LLM 调用；返回的文本总是可用的会话内容，
// 失败时 err 非空且文本是错误的渲染
// Executor performs one blocking LLM call. The returned string is always
// usable transcript content; err is non-nil when that content renders a
// failure (the gateway's error-as-content contract).
type Executor interface {
	Send(ctx context.Context, messages []chat.Message, systemPrompt string) (string, error)
}

// Saver persists the whole session record after each mutation.
type Saver interface {
	SaveRecord(id string, rec session.Record) error
}

// Report 单个会议一次推进的结构化结果：轮数与每轮的底层错误。
// 借此调用方可以区分“会议完成”与“会议完成但每一轮都失败”。
// Report is the structured outcome of driving one meeting: turns executed
// and the underlying error of every failed call. Transcript content never
// reflects this distinction, so the report is the only way a caller can
// tell a healthy completion from an all-failures one.
type Report struct {
	MeetingID  string
	Turns      int
	TurnErrors []error
	SummaryErr error
}

// Failed reports whether every executed turn failed.
func (r Report) Failed() bool {
	return r.Turns > 0 && len(r.TurnErrors) == r.Turns
}

// Options configures an Engine.
type Options struct {
	// MaxTurns 每个会议的人格发言上限，<=0 时取 10
	// MaxTurns caps persona turns per meeting; defaults to 10
	MaxTurns int

	// OnTurn 每完成一轮后回调 / Called after each completed turn
	OnTurn func(meetingIdx int, msg session.MeetingMessage)
	// OnComplete 会议完成（含总结）后回调 / Called once a meeting completes
	OnComplete func(meetingIdx int)
}

// Engine 驱动会议轮转循环：单线程、同步，每轮之后落盘
// Engine drives the round-robin turn loop: single-threaded, synchronous,
// persisting the session record after every turn.
type Engine struct {
	exec       Executor
	store      Saver
	tpl        *prompts.Store
	sessionID  string
	maxTurns   int
	onTurn     func(int, session.MeetingMessage)
	onComplete func(int)
}

// NewEngine creates an engine bound to one session.
func NewEngine(exec Executor, store Saver, tpl *prompts.Store, sessionID string, opts Options) *Engine {
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &Engine{
		exec:       exec,
		store:      store,
		tpl:        tpl,
		sessionID:  sessionID,
		maxTurns:   maxTurns,
		onTurn:     opts.OnTurn,
		onComplete: opts.OnComplete,
	}
}

// MaxTurns returns the configured per-meeting turn cap.
func (e *Engine) MaxTurns() int {
	return e.maxTurns
}

// Advance executes exactly one persona turn in the meeting at idx:
// select the actor by round-robin, compile the turn prompt, invoke the
// executor, append the result tagged with the actor, increment the turn
// counter, and persist. A gateway failure is appended as ordinary content;
// the structural error return is reserved for invariant violations. A
// completed or cap-reached meeting is rejected with ErrInvalidState so the
// transcript can never grow past 1 + maxTurns messages.
func (e *Engine) Advance(ctx context.Context, rec *session.Record, idx int, question string) (session.MeetingMessage, error, error) {
	m, err := meetingAt(rec, idx)
	if err != nil {
		return session.MeetingMessage{}, nil, err
	}
	if m.IsComplete || m.TurnCount >= e.maxTurns {
		return session.MeetingMessage{}, nil, fmt.Errorf("%w: meeting at turn cap (%d/%d)", ErrInvalidState, m.TurnCount, e.maxTurns)
	}
	if err := session.ValidateRoster(rec.People); err != nil {
		return session.MeetingMessage{}, nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	actor, err := NextActor(m, rec.People)
	if err != nil {
		return session.MeetingMessage{}, nil, err
	}

	history := TurnMessages(m, actor, rec.Summary, question, e.tpl)
	content, callErr := e.exec.Send(ctx, history, "")

	msg := session.MeetingMessage{
		ID:              session.NewID(),
		ParticipantName: actor.Title,
		Content:         content,
		ParticipantID:   actor.ID,
	}
	m.Messages = append(m.Messages, msg)
	m.TurnCount++

	if err := e.persist(rec); err != nil {
		return msg, callErr, err
	}
	if e.onTurn != nil {
		e.onTurn(idx, msg)
	}
	return msg, callErr, nil
}

// RunMeeting drives the meeting at idx to its turn cap, then marks it
// complete and generates the summary. Resuming a partially advanced
// meeting continues from its persisted turn count. Already-complete
// meetings only regenerate a missing summary.
func (e *Engine) RunMeeting(ctx context.Context, rec *session.Record, idx int) (Report, error) {
	m, err := meetingAt(rec, idx)
	if err != nil {
		return Report{}, err
	}
	report := Report{MeetingID: m.ID}

	for !m.IsComplete && m.TurnCount < e.maxTurns {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		_, callErr, err := e.Advance(ctx, rec, idx, "")
		if err != nil {
			return report, err
		}
		report.Turns++
		if callErr != nil {
			report.TurnErrors = append(report.TurnErrors, callErr)
		}
	}

	if !m.IsComplete {
		m.IsComplete = true
		if err := e.persist(rec); err != nil {
			return report, err
		}
	}
	if strings.TrimSpace(m.SummaryReport) == "" {
		report.SummaryErr, err = e.Summarize(ctx, rec, idx)
		if err != nil {
			return report, err
		}
	}
	if e.onComplete != nil {
		e.onComplete(idx)
	}
	return report, nil
}

// Summarize generates and stores the meeting's summary report. It never
// appends transcript turns, so regenerating a summary is idempotent with
// respect to the conversation. The first return value carries the
// underlying call failure when the stored summary is an error rendering.
func (e *Engine) Summarize(ctx context.Context, rec *session.Record, idx int) (error, error) {
	m, err := meetingAt(rec, idx)
	if err != nil {
		return nil, err
	}
	content, callErr := e.exec.Send(ctx, SummaryMessages(m, e.tpl), "")
	m.SummaryReport = content
	if err := e.persist(rec); err != nil {
		return callErr, err
	}
	return callErr, nil
}

// Ask runs one facilitator-directed turn: the question is appended to the
// compiled prompt as a final directed instruction to the acting persona,
// whose answer lands in the transcript as a normal turn. A completed or
// cap-reached meeting rejects the question with ErrInvalidState; reset
// the meeting first to discuss further.
func (e *Engine) Ask(ctx context.Context, rec *session.Record, idx int, question string) (session.MeetingMessage, error, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return session.MeetingMessage{}, nil, fmt.Errorf("%w: empty facilitator question", ErrInvalidState)
	}
	return e.Advance(ctx, rec, idx, question)
}

// ResetMeeting restores the meeting at idx to its initial state and persists.
func (e *Engine) ResetMeeting(rec *session.Record, idx int) error {
	m, err := meetingAt(rec, idx)
	if err != nil {
		return err
	}
	Reset(m)
	return e.persist(rec)
}

// RunAll drives every incomplete meeting to completion, in list order,
// sequentially. Gateway failures in one meeting never halt the set. The
// call is re-entrant and idempotent at meeting granularity: completed
// meetings are skipped, and a second invocation with no external state
// change performs zero additional turns.
func (e *Engine) RunAll(ctx context.Context, rec *session.Record) ([]Report, error) {
	reports := make([]Report, 0, len(rec.Meetings))
	for idx := range rec.Meetings {
		m := &rec.Meetings[idx]
		if m.IsComplete && strings.TrimSpace(m.SummaryReport) != "" {
			continue
		}
		report, err := e.RunMeeting(ctx, rec, idx)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (e *Engine) persist(rec *session.Record) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SaveRecord(e.sessionID, *rec); err != nil {
		return fmt.Errorf("persist session %s: %w", e.sessionID, err)
	}
	return nil
}
