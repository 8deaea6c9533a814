package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider 使用 go-openai SDK 的 Provider 实现
// OpenAIProvider implements Provider using the go-openai SDK
type OpenAIProvider struct {
	client *openai.Client
	model  string
	cfg    OpenAIConfig
	mu     sync.RWMutex
}

// OpenAIConfig SDK provider 配置
// OpenAIConfig is the SDK provider configuration
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	TimeoutMS  int
	MaxRetries int
	MaxTokens  int
}

// NewOpenAIProvider 创建基于 SDK 的 provider
// NewOpenAIProvider creates an SDK-based provider
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	config.HTTPClient = httpClient

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		cfg:    cfg,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) CurrentModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

func (p *OpenAIProvider) SetModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model is empty")
	}
	p.mu.Lock()
	p.model = model
	p.mu.Unlock()
	return nil
}

// Configured 报告是否已设置 API key / Reports whether an API key is set
func (p *OpenAIProvider) Configured() bool {
	return strings.TrimSpace(p.cfg.APIKey) != ""
}

func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if !p.Configured() {
		return ChatResponse{}, fmt.Errorf("API key not configured")
	}
	model := req.Model
	if model == "" {
		model = p.CurrentModel()
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(150*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return ChatResponse{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := p.client.CreateChatCompletion(ctx, buildSDKRequest(model, req, p.cfg.MaxTokens))
		if err == nil {
			return convertResponse(resp), nil
		}
		lastErr = err

		// 不可重试的错误 / Non-retryable errors
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ChatResponse{}, err
		}
		if attempt >= p.cfg.MaxRetries {
			break
		}
	}
	return ChatResponse{}, fmt.Errorf("provider chat failed after %d retries: %w", p.cfg.MaxRetries, lastErr)
}

func buildSDKRequest(model string, req ChatRequest, defaultMaxTokens int) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
}

func convertResponse(resp openai.ChatCompletionResponse) ChatResponse {
	out := ChatResponse{
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = string(resp.Choices[0].FinishReason)
	}
	return out
}

var _ Provider = (*OpenAIProvider)(nil)
