package tui

import (
	"context"
	"fmt"
	"strings"

	"vlab/internal/meeting"
	"vlab/internal/render"
	"vlab/internal/session"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PanelID 面板标识
// PanelID identifies a panel
type PanelID int

const (
	PanelMeetings PanelID = iota
	PanelTranscript
	PanelSummary
)

// Runner drives meetings; satisfied by the meeting engine.
type Runner interface {
	RunMeeting(ctx context.Context, rec *session.Record, idx int) (meeting.Report, error)
	RunAll(ctx context.Context, rec *session.Record) ([]meeting.Report, error)
	ResetMeeting(rec *session.Record, idx int) error
	MaxTurns() int
}

// Info 侧边栏会话信息
// Info carries the sidebar session details
type Info struct {
	SessionID   string
	SessionName string
	Model       string
}

// --- Tea Messages ---

// TurnMsg 一轮发言完成
// TurnMsg reports one completed persona turn
type TurnMsg struct {
	MeetingIdx int
	Message    session.MeetingMessage
	Tokens     int
}

// MeetingDoneMsg 单个会议完成（或失败）
// MeetingDoneMsg reports one finished meeting run
type MeetingDoneMsg struct {
	MeetingIdx int
	Report     meeting.Report
	Summary    string
	Err        error
}

// RunAllDoneMsg 批量运行结束
// RunAllDoneMsg reports a completed run-all sweep
type RunAllDoneMsg struct {
	Reports []meeting.Report
	Err     error
}

// meetingItem is the dashboard's own copy of meeting display state. The
// engine mutates the record in a worker goroutine; the model only reads
// the snapshots carried by messages.
type meetingItem struct {
	topic      string
	turnCount  int
	isComplete bool
	transcript strings.Builder
	summary    string
	running    bool
	turnErrs   int
}

// App Bubble Tea 主 Model：会议仪表盘
// App is the main Bubble Tea model: the meetings dashboard
type App struct {
	// 布局 / Layout
	width  int
	height int

	// 面板 / Panels
	activePanel    PanelID
	transcriptView viewport.Model
	summaryView    viewport.Model

	// 会议数据 / Meeting data
	items  []meetingItem
	cursor int

	// 运行状态 / Run state
	rec     *session.Record
	runner  Runner
	running bool

	info       Info
	tokensUsed int
	lastError  string
	theme      Theme
	keys       KeyMap
}

// NewApp 创建会议仪表盘
// NewApp creates the meetings dashboard
func NewApp(rec *session.Record, runner Runner, info Info) App {
	items := make([]meetingItem, len(rec.Meetings))
	for i := range rec.Meetings {
		m := &rec.Meetings[i]
		items[i] = meetingItem{
			topic:      m.Topic,
			turnCount:  m.TurnCount,
			isComplete: m.IsComplete,
			summary:    m.SummaryReport,
		}
		items[i].transcript.WriteString(render.Transcript(m))
	}
	return App{
		activePanel: PanelMeetings,
		items:       items,
		rec:         rec,
		runner:      runner,
		info:        info,
		theme:       DarkTheme(),
		keys:        DefaultKeyMap(),
	}
}

func (a App) Init() tea.Cmd {
	return nil
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case TurnMsg:
		a.tokensUsed += msg.Tokens
		if msg.MeetingIdx < len(a.items) {
			item := &a.items[msg.MeetingIdx]
			item.turnCount++
			fmt.Fprintf(&item.transcript, "\n[%s]\n%s\n", msg.Message.ParticipantName, msg.Message.Content)
			if a.cursor == msg.MeetingIdx {
				a.syncTranscript()
			}
		}
		return a, nil

	case MeetingDoneMsg:
		if msg.Err != nil {
			a.lastError = msg.Err.Error()
		}
		if msg.MeetingIdx < len(a.items) {
			item := &a.items[msg.MeetingIdx]
			item.running = false
			item.turnErrs = len(msg.Report.TurnErrors)
			if msg.Err == nil {
				item.isComplete = true
				item.summary = msg.Summary
			}
			if a.cursor == msg.MeetingIdx {
				a.syncSummary()
			}
		}
		a.running = false
		return a, nil

	case RunAllDoneMsg:
		if msg.Err != nil {
			a.lastError = msg.Err.Error()
		}
		a.running = false
		a.refreshFromRecord()
		return a, nil
	}

	var cmd tea.Cmd
	switch a.activePanel {
	case PanelTranscript:
		a.transcriptView, cmd = a.transcriptView.Update(msg)
	case PanelSummary:
		a.summaryView, cmd = a.summaryView.Update(msg)
	}
	return a, cmd
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.SwitchPanel):
		a.activePanel = (a.activePanel + 1) % 3
		return a, nil

	case key.Matches(msg, a.keys.Up):
		if a.activePanel == PanelMeetings && a.cursor > 0 {
			a.cursor--
			a.syncTranscript()
			a.syncSummary()
		}
		return a, nil

	case key.Matches(msg, a.keys.Down):
		if a.activePanel == PanelMeetings && a.cursor < len(a.items)-1 {
			a.cursor++
			a.syncTranscript()
			a.syncSummary()
		}
		return a, nil

	case key.Matches(msg, a.keys.RunMeeting):
		if a.running || len(a.items) == 0 || a.items[a.cursor].isComplete {
			return a, nil
		}
		a.running = true
		a.items[a.cursor].running = true
		idx := a.cursor
		return a, a.runMeetingCmd(idx)

	case key.Matches(msg, a.keys.RunAll):
		if a.running || len(a.items) == 0 {
			return a, nil
		}
		a.running = true
		return a, a.runAllCmd()

	case key.Matches(msg, a.keys.Reset):
		if a.running || len(a.items) == 0 {
			return a, nil
		}
		idx := a.cursor
		if err := a.runner.ResetMeeting(a.rec, idx); err != nil {
			a.lastError = err.Error()
			return a, nil
		}
		item := &a.items[idx]
		item.turnCount = 0
		item.isComplete = false
		item.summary = ""
		item.turnErrs = 0
		item.transcript.Reset()
		item.transcript.WriteString(render.Transcript(&a.rec.Meetings[idx]))
		a.syncTranscript()
		a.syncSummary()
		return a, nil
	}
	return a, nil
}

func (a App) runMeetingCmd(idx int) tea.Cmd {
	return func() tea.Msg {
		report, err := a.runner.RunMeeting(context.Background(), a.rec, idx)
		summary := ""
		if err == nil {
			summary = a.rec.Meetings[idx].SummaryReport
		}
		return MeetingDoneMsg{MeetingIdx: idx, Report: report, Summary: summary, Err: err}
	}
}

func (a App) runAllCmd() tea.Cmd {
	return func() tea.Msg {
		reports, err := a.runner.RunAll(context.Background(), a.rec)
		return RunAllDoneMsg{Reports: reports, Err: err}
	}
}

// refreshFromRecord re-snapshots display state after a bulk run, once the
// worker goroutine has finished mutating the record.
func (a *App) refreshFromRecord() {
	for i := range a.rec.Meetings {
		if i >= len(a.items) {
			break
		}
		m := &a.rec.Meetings[i]
		item := &a.items[i]
		item.turnCount = m.TurnCount
		item.isComplete = m.IsComplete
		item.summary = m.SummaryReport
		item.running = false
		item.transcript.Reset()
		item.transcript.WriteString(render.Transcript(m))
	}
	a.syncTranscript()
	a.syncSummary()
}

func (a *App) relayout() {
	mainWidth := a.mainWidth()
	panelHeight := a.height - 3
	if panelHeight < 3 {
		panelHeight = 3
	}
	a.transcriptView = viewport.New(mainWidth, panelHeight)
	a.summaryView = viewport.New(mainWidth, panelHeight)
	a.syncTranscript()
	a.syncSummary()
}

func (a *App) syncTranscript() {
	if len(a.items) == 0 {
		return
	}
	a.transcriptView.SetContent(a.items[a.cursor].transcript.String())
	a.transcriptView.GotoBottom()
}

func (a *App) syncSummary() {
	if len(a.items) == 0 {
		return
	}
	a.summaryView.SetContent(render.Markdown(a.items[a.cursor].summary, a.mainWidth()))
}

func (a App) mainWidth() int {
	sidebarWidth := a.sidebarWidth()
	w := a.width - sidebarWidth
	if sidebarWidth > 0 {
		w--
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (a App) sidebarWidth() int {
	if a.width < 80 {
		return 0
	}
	w := a.width * 25 / 100
	if w < 20 {
		w = 20
	}
	if w > 40 {
		w = 40
	}
	return w
}

func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	mainWidth := a.mainWidth()
	panelHeight := a.height - 3
	if panelHeight < 3 {
		panelHeight = 3
	}

	tabs := a.renderTabs()
	panel := lipgloss.NewStyle().Width(mainWidth).Height(panelHeight).Render(a.renderActivePanel(panelHeight))
	statusBar := a.renderStatusBar(a.width)

	main := lipgloss.JoinVertical(lipgloss.Left, tabs, panel)
	if w := a.sidebarWidth(); w > 0 {
		sidebar := a.renderSidebar(w, a.height-1)
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, sidebar)
	}
	return lipgloss.JoinVertical(lipgloss.Left, main, statusBar)
}

func (a App) renderTabs() string {
	tabs := []struct {
		id   PanelID
		name string
	}{
		{PanelMeetings, "Meetings"},
		{PanelTranscript, "Transcript"},
		{PanelSummary, "Summary"},
	}
	var parts []string
	for _, tab := range tabs {
		style := a.theme.InactiveTabStyle
		if tab.id == a.activePanel {
			style = a.theme.ActiveTabStyle
		}
		parts = append(parts, style.Render(tab.name))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (a App) renderActivePanel(height int) string {
	switch a.activePanel {
	case PanelMeetings:
		return a.renderMeetingList()
	case PanelTranscript:
		if len(a.items) == 0 {
			return a.theme.MutedStyle.Render("  No meetings initialized")
		}
		return a.transcriptView.View()
	case PanelSummary:
		if len(a.items) == 0 || strings.TrimSpace(a.items[a.cursor].summary) == "" {
			return a.theme.MutedStyle.Render("  No summary yet")
		}
		return a.summaryView.View()
	}
	return ""
}

func (a App) renderMeetingList() string {
	if len(a.items) == 0 {
		return a.theme.MutedStyle.Render("  No meetings initialized")
	}
	var lines []string
	for i := range a.items {
		item := &a.items[i]
		status := a.theme.PendingStyle.Render("pending ")
		switch {
		case item.running:
			status = a.theme.PendingStyle.Render("running ")
		case item.isComplete:
			status = a.theme.CompleteStyle.Render("complete")
		case item.turnCount > 0:
			status = a.theme.PendingStyle.Render(fmt.Sprintf("turn %d/%d", item.turnCount, a.runner.MaxTurns()))
		}
		line := fmt.Sprintf(" %s  %s", status, item.topic)
		if item.turnErrs > 0 {
			line += a.theme.ErrorStyle.Render(fmt.Sprintf("  (%d failed turns)", item.turnErrs))
		}
		if i == a.cursor {
			line = a.theme.SelectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (a App) renderSidebar(width, height int) string {
	var parts []string
	parts = append(parts, a.theme.TitleStyle.Render(" Virtual Lab"))
	parts = append(parts, "")
	parts = append(parts, a.theme.TitleStyle.Render(" Session"))
	parts = append(parts, "  "+a.info.SessionName)
	parts = append(parts, "  "+a.theme.MutedStyle.Render(a.info.SessionID))
	parts = append(parts, "")
	parts = append(parts, a.theme.TitleStyle.Render(" Model"))
	parts = append(parts, "  "+a.info.Model)
	parts = append(parts, "")

	done := 0
	for i := range a.items {
		if a.items[i].isComplete {
			done++
		}
	}
	parts = append(parts, a.theme.TitleStyle.Render(" Progress"))
	parts = append(parts, fmt.Sprintf("  %d / %d meetings", done, len(a.items)))
	if len(a.items) > 0 {
		pct := float64(done) / float64(len(a.items)) * 100
		parts = append(parts, "  "+renderProgressBar(pct, width-6))
	}

	if a.tokensUsed > 0 {
		parts = append(parts, "")
		parts = append(parts, a.theme.TitleStyle.Render(" Tokens"))
		parts = append(parts, fmt.Sprintf("  %d this run", a.tokensUsed))
	}

	return a.theme.SidebarStyle.Width(width).Height(height).Render(strings.Join(parts, "\n"))
}

func (a App) renderStatusBar(width int) string {
	status := "ready"
	if a.running {
		status = "running"
	}
	left := fmt.Sprintf(" %s · %s", a.info.Model, status)
	right := "tab: panels · enter: run · a: run all · r: reset · q: quit  "
	if a.lastError != "" {
		right = a.theme.ErrorStyle.Render(a.lastError) + "  "
	}
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return a.theme.StatusBarStyle.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

func renderProgressBar(percent float64, width int) string {
	if width < 4 {
		width = 4
	}
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Run 启动会议仪表盘；bind 把投递函数交给引擎回调
// Run starts the dashboard. bind hands the program's message sink to the
// caller so engine callbacks can stream TurnMsg updates into the UI.
func Run(rec *session.Record, runner Runner, info Info, bind func(send func(tea.Msg))) error {
	app := NewApp(rec, runner, info)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if bind != nil {
		bind(p.Send)
	}
	_, err := p.Run()
	return err
}
