package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vlab/internal/config"
	"vlab/internal/gateway"
	"vlab/internal/meeting"
	"vlab/internal/prompts"
	"vlab/internal/provider"
	"vlab/internal/repl"
	"vlab/internal/session"
	"vlab/internal/storage"
	"vlab/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	var (
		configPath string
		dataDir    string
		useTUI     bool
		sessionID  string
	)
	flag.StringVar(&configPath, "config", "", "Path to config JSON")
	flag.StringVar(&dataDir, "data", "", "Data directory override")
	flag.BoolVar(&useTUI, "tui", false, "Open the meetings dashboard instead of the REPL")
	flag.StringVar(&sessionID, "session", "", "Session to open in the dashboard (default: most recent)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if strings.TrimSpace(dataDir) != "" {
		cfg.Storage.BaseDir = dataDir
	}

	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init storage failed: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	tpl, err := prompts.NewStore(filepath.Join(cfg.Storage.BaseDir, "prompts.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init prompts failed: %v\n", err)
		os.Exit(1)
	}

	p := provider.NewOpenAIProvider(provider.OpenAIConfig{
		BaseURL:    cfg.Provider.BaseURL,
		APIKey:     cfg.Provider.APIKey,
		Model:      cfg.Provider.Model,
		TimeoutMS:  cfg.Provider.TimeoutMS,
		MaxRetries: cfg.Provider.MaxRetries,
		MaxTokens:  cfg.Provider.MaxTokens,
	})
	if !p.Configured() {
		fmt.Fprintln(os.Stderr, "no API key: set VLAB_API_KEY or OPENAI_API_KEY, or provider.api_key in the config")
		os.Exit(1)
	}
	gw := gateway.New(p)

	if useTUI {
		if err := runDashboard(cfg, store, gw, tpl, sessionID); err != nil {
			fmt.Fprintf(os.Stderr, "dashboard failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	r, err := repl.New(cfg, store, gw, tpl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start failed: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()
	if err := r.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func openStore(cfg config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "json":
		return storage.NewManager(cfg.Storage.BaseDir)
	default:
		if err := os.MkdirAll(cfg.Storage.BaseDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewSQLiteStore(filepath.Join(cfg.Storage.BaseDir, "vlab.db"))
	}
}

// runDashboard opens the bubbletea meetings dashboard on an existing
// session, streaming per-turn updates from the engine into the UI.
func runDashboard(cfg config.Config, store storage.Store, gw *gateway.Gateway, tpl *prompts.Store, sessionID string) error {
	meta, err := pickSession(store, sessionID)
	if err != nil {
		return err
	}
	rec, err := store.LoadRecord(meta.ID)
	if err != nil {
		return err
	}
	if len(rec.Meetings) == 0 {
		if _, err := meeting.Initialize(&rec, rec.ResearchFindings); err != nil {
			return fmt.Errorf("no meetings and cannot initialize: %w", err)
		}
	}
	if err := meeting.CheckStale(&rec); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	var send func(tea.Msg)
	engine := meeting.NewEngine(gw, store, tpl, meta.ID, meeting.Options{
		MaxTurns: cfg.Meeting.MaxTurns,
		OnTurn: func(idx int, msg session.MeetingMessage) {
			if send != nil {
				send(tui.TurnMsg{MeetingIdx: idx, Message: msg, Tokens: gw.LastUsage().TotalTokens})
			}
		},
	})

	info := tui.Info{SessionID: meta.ID, SessionName: meta.Name, Model: gw.Model()}
	return tui.Run(&rec, engine, info, func(s func(tea.Msg)) { send = s })
}

func pickSession(store storage.Store, id string) (session.Meta, error) {
	if strings.TrimSpace(id) != "" {
		metas, err := store.ListSessions()
		if err != nil {
			return session.Meta{}, err
		}
		for _, meta := range metas {
			if meta.ID == id {
				return meta, nil
			}
		}
		return session.Meta{}, fmt.Errorf("session %s not found", id)
	}

	metas, err := store.ListSessions()
	if err != nil {
		return session.Meta{}, err
	}
	if len(metas) > 0 {
		return metas[0], nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	meta := session.Meta{
		ID:               session.NewSessionID(),
		Name:             "Session " + time.Now().Format("2006-01-02 15:04"),
		CreatedDate:      now,
		LastModifiedDate: now,
	}
	if err := store.CreateSession(meta); err != nil {
		return session.Meta{}, err
	}
	return meta, nil
}
