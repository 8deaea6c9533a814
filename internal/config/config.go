package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type ProviderConfig struct {
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	APIKey     string `json:"api_key"`
	TimeoutMS  int    `json:"timeout_ms"`
	MaxRetries int    `json:"max_retries"`
	MaxTokens  int    `json:"max_tokens"`
}

type StorageConfig struct {
	BaseDir string `json:"base_dir"`
	Backend string `json:"backend"` // sqlite | json
}

type MeetingConfig struct {
	// MaxTurns 每个会议的人格发言轮数上限
	// MaxTurns caps persona-authored turns per meeting
	MaxTurns int `json:"max_turns"`
}

type Config struct {
	Provider ProviderConfig `json:"provider"`
	Storage  StorageConfig  `json:"storage"`
	Meeting  MeetingConfig  `json:"meeting"`
}

type fileConfig struct {
	Provider *ProviderConfig `json:"provider"`
	Storage  *StorageConfig  `json:"storage"`
	Meeting  *MeetingConfig  `json:"meeting"`
}

func Default() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o",
			TimeoutMS:  120000,
			MaxRetries: 3,
			MaxTokens:  4096,
		},
		Storage: StorageConfig{
			BaseDir: "~/.vlab",
			Backend: "sqlite",
		},
		Meeting: MeetingConfig{
			MaxTurns: 10,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	for _, globalPath := range globalConfigPaths() {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return Config{}, err
		}
	}

	resolvedPath := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("VLAB_CONFIG_PATH")); envPath != "" {
		resolvedPath = envPath
	}
	if resolvedPath == "" {
		resolvedPath = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg)
}

func globalConfigPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".vlab", "config.json")}
}

func findProjectConfigPath() string {
	candidates := []string{
		"vlab.config.json",
		".vlab/config.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	var fileCfg fileConfig
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parse config %q: %w", resolved, err)
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Provider != nil {
		cfg.Provider = mergeProvider(cfg.Provider, *fc.Provider)
	}
	if fc.Storage != nil {
		cfg.Storage = mergeStorage(cfg.Storage, *fc.Storage)
	}
	if fc.Meeting != nil {
		if fc.Meeting.MaxTurns > 0 {
			cfg.Meeting.MaxTurns = fc.Meeting.MaxTurns
		}
	}
}

func mergeProvider(base ProviderConfig, override ProviderConfig) ProviderConfig {
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.Model) != "" {
		base.Model = override.Model
	}
	if strings.TrimSpace(override.APIKey) != "" {
		base.APIKey = override.APIKey
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	if override.MaxRetries > 0 {
		base.MaxRetries = override.MaxRetries
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	return base
}

func mergeStorage(base StorageConfig, override StorageConfig) StorageConfig {
	if strings.TrimSpace(override.BaseDir) != "" {
		base.BaseDir = override.BaseDir
	}
	if strings.TrimSpace(override.Backend) != "" {
		base.Backend = override.Backend
	}
	return base
}

func normalize(cfg *Config) error {
	def := Default()
	if strings.TrimSpace(cfg.Provider.BaseURL) == "" {
		cfg.Provider.BaseURL = def.Provider.BaseURL
	}
	if strings.TrimSpace(cfg.Provider.Model) == "" {
		cfg.Provider.Model = def.Provider.Model
	}
	if cfg.Provider.TimeoutMS <= 0 {
		cfg.Provider.TimeoutMS = def.Provider.TimeoutMS
	}
	if cfg.Provider.MaxRetries <= 0 {
		cfg.Provider.MaxRetries = def.Provider.MaxRetries
	}
	if cfg.Provider.MaxTokens <= 0 {
		cfg.Provider.MaxTokens = def.Provider.MaxTokens
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	switch backend {
	case "sqlite", "json":
	case "":
		backend = def.Storage.Backend
	default:
		return fmt.Errorf("unknown storage backend %q (want sqlite or json)", cfg.Storage.Backend)
	}
	cfg.Storage.Backend = backend

	baseDir, err := expandPath(cfg.Storage.BaseDir)
	if err != nil {
		return err
	}
	if baseDir == "" {
		baseDir, err = expandPath(def.Storage.BaseDir)
		if err != nil {
			return err
		}
	}
	cfg.Storage.BaseDir = baseDir

	if cfg.Meeting.MaxTurns <= 0 {
		cfg.Meeting.MaxTurns = def.Meeting.MaxTurns
	}
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("VLAB_BASE_URL")); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("VLAB_MODEL")); v != "" {
		cfg.Provider.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("VLAB_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" && strings.TrimSpace(cfg.Provider.APIKey) == "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("VLAB_DATA_DIR")); v != "" {
		cfg.Storage.BaseDir = v
	}
	if v := strings.TrimSpace(os.Getenv("VLAB_MAX_TURNS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid VLAB_MAX_TURNS: %q", v)
		}
		cfg.Meeting.MaxTurns = n
	}
	return cfg, normalize(&cfg)
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}
