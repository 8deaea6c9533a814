package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"vlab/internal/config"
	"vlab/internal/gateway"
	"vlab/internal/meeting"
	"vlab/internal/prompts"
	"vlab/internal/render"
	"vlab/internal/session"
	"vlab/internal/stages"
	"vlab/internal/storage"
)

var replCommands = []string{
	"/help                 show this list",
	"/summary              condense the discovery chat into the executive summary",
	"/people               generate the expert roster",
	"/research             generate the precedent research findings",
	"/meetings             initialize and list meetings",
	"/run <n>|all          run meeting n (or every incomplete meeting)",
	"/ask <n> <question>   put a facilitator question to meeting n",
	"/say <n> <message>    inject a facilitator message into meeting n",
	"/reset <n>            reset meeting n to its initial state",
	"/transcript <n>       print meeting n's transcript",
	"/report               generate the final report",
	"/qa <question>        ask a question about the final report",
	"/prompts [reset]      list prompt templates (or reset overrides)",
	"/new [name]           start a new session",
	"/sessions             list sessions",
	"/use <session_id>     switch to a session",
	"/delete <session_id>  delete a session",
	"/exit                 save and quit",
	"",
	"anything else is a discovery chat turn",
}

// REPL 工作流命令行：默认输入进入任务发现对话，斜杠命令驱动各阶段
// REPL is the workflow command line. Plain input is a discovery chat turn;
// slash commands drive the summary, roster, research, meeting and report
// stages.
type REPL struct {
	cfg    config.Config
	store  storage.Store
	gw     *gateway.Gateway
	tpl    *prompts.Store
	stages *stages.Stages
	input  *console
	out    io.Writer
	errOut io.Writer

	meta   session.Meta
	rec    session.Record
	engine *meeting.Engine
}

// New creates a REPL bound to a fresh session.
func New(cfg config.Config, store storage.Store, gw *gateway.Gateway, tpl *prompts.Store) (*REPL, error) {
	input, inputErr := newConsole(filepath.Join(cfg.Storage.BaseDir, "repl.history"))
	if inputErr != nil {
		fmt.Fprintf(os.Stderr, "line editor unavailable, fallback to basic input: %v\n", inputErr)
	}

	r := &REPL{
		cfg:    cfg,
		store:  store,
		gw:     gw,
		tpl:    tpl,
		stages: stages.New(gw, tpl),
		input:  input,
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	if err := r.newSession(""); err != nil {
		input.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the line editor.
func (r *REPL) Close() error {
	return r.input.Close()
}

// Run drives the input loop until /exit or EOF.
func (r *REPL) Run() error {
	fmt.Fprintf(r.out, "vlab started, session: %s model=%s\n", r.meta.ID, r.gw.Model())
	r.printCommands()

	for {
		line, err := r.input.ReadLine("> ")
		if err != nil {
			switch {
			case errors.Is(err, readline.ErrInterrupt):
				fmt.Fprintln(r.out)
				continue
			case errors.Is(err, io.EOF):
				fmt.Fprintln(r.errOut, "\nexit")
				r.save()
				return nil
			default:
				return fmt.Errorf("read input failed: %w", err)
			}
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			exit := r.handleCommand(input)
			r.save()
			if exit {
				return nil
			}
			continue
		}

		reply, callErr, err := r.stages.Discover(context.Background(), &r.rec, input)
		if err != nil {
			fmt.Fprintf(r.errOut, "discovery turn failed: %v\n", err)
			continue
		}
		if callErr != nil {
			fmt.Fprintf(r.errOut, "call failed: %v\n", callErr)
		}
		fmt.Fprintln(r.out, reply)
		if usage := r.gw.LastUsage(); usage.TotalTokens > 0 {
			fmt.Fprintf(r.out, "[tokens: %d prompt, %d completion]\n", usage.PromptTokens, usage.CompletionTokens)
		}
		r.save()
	}
}

func (r *REPL) handleCommand(input string) (exit bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "/exit", "/quit":
		return true
	case "/help":
		r.printCommands()
	case "/summary":
		r.cmdSummary()
	case "/people":
		r.cmdPeople()
	case "/research":
		r.cmdResearch()
	case "/meetings":
		r.cmdMeetings()
	case "/run":
		r.cmdRun(args)
	case "/ask":
		r.cmdAsk(args)
	case "/say":
		r.cmdSay(args)
	case "/reset":
		r.cmdReset(args)
	case "/transcript":
		r.cmdTranscript(args)
	case "/report":
		r.cmdReport()
	case "/qa":
		r.cmdQA(args)
	case "/prompts":
		r.cmdPrompts(args)
	case "/new":
		name := strings.TrimSpace(strings.Join(args, " "))
		if err := r.newSession(name); err != nil {
			fmt.Fprintf(r.errOut, "create session failed: %v\n", err)
			return false
		}
		fmt.Fprintf(r.out, "new session: %s\n", r.meta.ID)
	case "/sessions":
		r.cmdSessions()
	case "/use":
		if len(args) < 1 {
			fmt.Fprintln(r.out, "usage: /use <session_id>")
			return false
		}
		if err := r.useSession(args[0]); err != nil {
			fmt.Fprintf(r.errOut, "load session failed: %v\n", err)
			return false
		}
		fmt.Fprintf(r.out, "using session: %s\n", r.meta.ID)
	case "/delete":
		if len(args) < 1 {
			fmt.Fprintln(r.out, "usage: /delete <session_id>")
			return false
		}
		if args[0] == r.meta.ID {
			fmt.Fprintln(r.out, "cannot delete the active session")
			return false
		}
		if err := r.store.DeleteSession(args[0]); err != nil {
			fmt.Fprintf(r.errOut, "delete session failed: %v\n", err)
			return false
		}
		fmt.Fprintf(r.out, "deleted session: %s\n", args[0])
	default:
		fmt.Fprintf(r.out, "unknown command: %s (try /help)\n", cmd)
	}
	return false
}

func (r *REPL) cmdSummary() {
	summary, err := r.stages.Summarize(context.Background(), &r.rec)
	if err != nil {
		fmt.Fprintf(r.errOut, "summarize failed: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, render.Markdown(summary, 100))
}

func (r *REPL) cmdPeople() {
	people, err := r.stages.GeneratePeople(context.Background(), &r.rec)
	if err != nil {
		r.printStageError("generate people", err)
		return
	}
	for i, p := range people {
		fmt.Fprintf(r.out, "%d. %s\n   %s\n", i+1, p.Title, p.Description)
	}
}

func (r *REPL) cmdResearch() {
	findings, err := r.stages.GenerateResearch(context.Background(), &r.rec)
	if err != nil {
		r.printStageError("generate research", err)
		return
	}
	for i, f := range findings {
		fmt.Fprintf(r.out, "%d. %s\n   %s\n   source: %s\n", i+1, f.Topic, f.Description, f.Citation)
	}
	r.warnStale()
}

func (r *REPL) cmdMeetings() {
	if len(r.rec.Meetings) == 0 {
		created, err := meeting.Initialize(&r.rec, r.rec.ResearchFindings)
		if err != nil {
			fmt.Fprintf(r.errOut, "initialize meetings failed: %v\n", err)
			return
		}
		if created {
			fmt.Fprintf(r.out, "initialized %d meetings\n", len(r.rec.Meetings))
		}
	}
	if len(r.rec.Meetings) == 0 {
		fmt.Fprintln(r.out, "no meetings: run /research first")
		return
	}
	r.warnStale()
	for i := range r.rec.Meetings {
		fmt.Fprintln(r.out, render.MeetingLine(i, &r.rec.Meetings[i], r.engine.MaxTurns()))
	}
}

func (r *REPL) cmdRun(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(r.out, "usage: /run <n>|all")
		return
	}
	r.warnStale()
	if args[0] == "all" {
		reports, err := r.engine.RunAll(context.Background(), &r.rec)
		if err != nil {
			fmt.Fprintf(r.errOut, "run all failed: %v\n", err)
			return
		}
		if len(reports) == 0 {
			fmt.Fprintln(r.out, "all meetings already complete")
			return
		}
		for _, report := range reports {
			r.printReport(report)
		}
		return
	}
	idx, ok := r.meetingIndex(args[0])
	if !ok {
		return
	}
	report, err := r.engine.RunMeeting(context.Background(), &r.rec, idx)
	if err != nil {
		fmt.Fprintf(r.errOut, "run meeting failed: %v\n", err)
		return
	}
	r.printReport(report)
	fmt.Fprintln(r.out, render.Markdown(r.rec.Meetings[idx].SummaryReport, 100))
}

func (r *REPL) cmdAsk(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(r.out, "usage: /ask <n> <question>")
		return
	}
	idx, ok := r.meetingIndex(args[0])
	if !ok {
		return
	}
	question := strings.Join(args[1:], " ")
	msg, callErr, err := r.engine.Ask(context.Background(), &r.rec, idx, question)
	if err != nil {
		fmt.Fprintf(r.errOut, "ask failed: %v\n", err)
		return
	}
	if callErr != nil {
		fmt.Fprintf(r.errOut, "call failed: %v\n", callErr)
	}
	fmt.Fprintf(r.out, "\n[%s]\n%s\n", msg.ParticipantName, msg.Content)
}

func (r *REPL) cmdSay(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(r.out, "usage: /say <n> <message>")
		return
	}
	idx, ok := r.meetingIndex(args[0])
	if !ok {
		return
	}
	meeting.InjectUserMessage(&r.rec.Meetings[idx], strings.Join(args[1:], " "))
	fmt.Fprintln(r.out, "message added to the transcript")
}

func (r *REPL) cmdReset(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(r.out, "usage: /reset <n>")
		return
	}
	idx, ok := r.meetingIndex(args[0])
	if !ok {
		return
	}
	if err := r.engine.ResetMeeting(&r.rec, idx); err != nil {
		fmt.Fprintf(r.errOut, "reset failed: %v\n", err)
		return
	}
	fmt.Fprintf(r.out, "meeting %s reset\n", args[0])
}

func (r *REPL) cmdTranscript(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(r.out, "usage: /transcript <n>")
		return
	}
	idx, ok := r.meetingIndex(args[0])
	if !ok {
		return
	}
	fmt.Fprintln(r.out, render.Transcript(&r.rec.Meetings[idx]))
}

func (r *REPL) cmdReport() {
	report, err := r.stages.GenerateFinalReport(context.Background(), &r.rec)
	if err != nil {
		r.printStageError("generate report", err)
		return
	}
	fmt.Fprintln(r.out, render.Markdown(report, 100))
}

func (r *REPL) cmdQA(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(r.out, "usage: /qa <question>")
		return
	}
	reply, callErr, err := r.stages.AskReport(context.Background(), &r.rec, strings.Join(args, " "))
	if err != nil {
		fmt.Fprintf(r.errOut, "report qa failed: %v\n", err)
		return
	}
	if callErr != nil {
		fmt.Fprintf(r.errOut, "call failed: %v\n", callErr)
	}
	fmt.Fprintln(r.out, render.Markdown(reply, 100))
}

func (r *REPL) cmdPrompts(args []string) {
	if len(args) > 0 && args[0] == "reset" {
		if err := r.tpl.ResetAll(); err != nil {
			fmt.Fprintf(r.errOut, "reset prompts failed: %v\n", err)
			return
		}
		fmt.Fprintln(r.out, "prompt overrides cleared")
		return
	}
	for id := range prompts.Defaults {
		fmt.Fprintf(r.out, "  %s\n", id)
	}
}

func (r *REPL) cmdSessions() {
	metas, err := r.store.ListSessions()
	if err != nil {
		fmt.Fprintf(r.errOut, "list sessions failed: %v\n", err)
		return
	}
	if len(metas) == 0 {
		fmt.Fprintln(r.out, "no sessions")
		return
	}
	for _, meta := range metas {
		fmt.Fprintf(r.out, "%s  name=%s  updated=%s\n", meta.ID, meta.Name, meta.LastModifiedDate)
	}
}

func (r *REPL) newSession(name string) error {
	if strings.TrimSpace(name) == "" {
		name = "Session " + time.Now().Format("2006-01-02 15:04")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	meta := session.Meta{
		ID:               session.NewSessionID(),
		Name:             name,
		CreatedDate:      now,
		LastModifiedDate: now,
	}
	if err := r.store.CreateSession(meta); err != nil {
		return err
	}
	r.meta = meta
	r.rec = session.Record{}
	r.bindEngine()
	return nil
}

func (r *REPL) useSession(id string) error {
	metas, err := r.store.ListSessions()
	if err != nil {
		return err
	}
	var found *session.Meta
	for i := range metas {
		if metas[i].ID == id {
			found = &metas[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("session %s not found", id)
	}
	rec, err := r.store.LoadRecord(id)
	if err != nil {
		return err
	}
	r.meta = *found
	r.rec = rec
	r.bindEngine()
	return nil
}

func (r *REPL) bindEngine() {
	r.engine = meeting.NewEngine(r.gw, r.store, r.tpl, r.meta.ID, meeting.Options{
		MaxTurns: r.cfg.Meeting.MaxTurns,
		OnTurn: func(_ int, msg session.MeetingMessage) {
			fmt.Fprintf(r.out, "\n[%s]\n%s\n", msg.ParticipantName, msg.Content)
		},
	})
}

func (r *REPL) save() {
	if err := r.store.SaveRecord(r.meta.ID, r.rec); err != nil {
		fmt.Fprintf(r.errOut, "save session failed: %v\n", err)
	}
}

func (r *REPL) warnStale() {
	if err := meeting.CheckStale(&r.rec); err != nil {
		fmt.Fprintf(r.out, "warning: %v\n", err)
		fmt.Fprintln(r.out, "  reset with /new, or keep running the existing meetings")
	}
}

func (r *REPL) meetingIndex(arg string) (int, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(r.rec.Meetings) {
		fmt.Fprintf(r.out, "invalid meeting number %q (have %d meetings)\n", arg, len(r.rec.Meetings))
		return 0, false
	}
	return n - 1, true
}

func (r *REPL) printReport(report meeting.Report) {
	line := fmt.Sprintf("meeting %s: %d turns", report.MeetingID, report.Turns)
	if len(report.TurnErrors) > 0 {
		line += fmt.Sprintf(", %d failed", len(report.TurnErrors))
	}
	if report.Failed() {
		line += " (every turn failed; check provider config)"
	}
	fmt.Fprintln(r.out, line)
}

func (r *REPL) printStageError(op string, err error) {
	var parseErr *stages.ParseError
	if errors.As(err, &parseErr) {
		fmt.Fprintf(r.errOut, "%s failed: %v\nraw reply:\n%s\n", op, err, parseErr.Raw)
		return
	}
	fmt.Fprintf(r.errOut, "%s failed: %v\n", op, err)
}

func (r *REPL) printCommands() {
	fmt.Fprintln(r.out, "commands:")
	for _, cmd := range replCommands {
		fmt.Fprintf(r.out, "  %s\n", cmd)
	}
}
