package provider

import (
	"context"

	"vlab/internal/chat"
)

// ChatRequest 封装一次模型请求
// ChatRequest wraps a single model call
type ChatRequest struct {
	Model        string
	Messages     []chat.Message
	SystemPrompt string
	MaxTokens    int
}

// Usage token 用量统计
// Usage reports token consumption
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse 完整响应
// ChatResponse is the complete response
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Provider 模型提供方接口
// Provider is the model backend interface
type Provider interface {
	// Chat 发送聊天请求并阻塞到完整响应返回
	// Chat sends a request and blocks until the full response is available
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// Name 返回 provider 名称
	// Name returns the provider name
	Name() string

	// CurrentModel 返回当前活跃模型
	// CurrentModel returns the current active model
	CurrentModel() string

	// SetModel 切换活跃模型
	// SetModel switches the active model
	SetModel(model string) error
}
