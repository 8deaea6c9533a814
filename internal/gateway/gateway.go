package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"vlab/internal/chat"
	"vlab/internal/provider"
	"vlab/internal/tokens"
)

// ErrorPrefix marks failure content returned by Send. Downstream consumers
// treat the returned string as opaque message content and never branch on it;
// the prefix exists for operators reading transcripts.
const ErrorPrefix = "Error: "

// Gateway 把 provider 包装成“永不抛错”的发送接口：任何失败都以
// "Error: " 前缀的文本返回，同时通过第二个返回值暴露结构化错误，
// 让调用方能区分“会议完成”与“会议完成但每一轮都失败”。
// Gateway wraps a provider into a send interface that always yields usable
// content. Failures come back as "Error: "-prefixed text, with the
// structured error returned alongside so callers can still tell a healthy
// completion from an all-failures one.
type Gateway struct {
	provider  provider.Provider
	tokenizer *tokens.Tokenizer

	mu        sync.Mutex
	lastUsage provider.Usage
	calls     int
}

// New creates a gateway over the given provider.
func New(p provider.Provider) *Gateway {
	return &Gateway{
		provider:  p,
		tokenizer: tokens.ForModel(p.CurrentModel()),
	}
}

// Send issues one blocking chat completion. The returned content is always
// non-empty and safe to store as transcript text; err is non-nil only when
// the content is an error rendering.
func (g *Gateway) Send(ctx context.Context, messages []chat.Message, systemPrompt string) (string, error) {
	resp, err := g.provider.Chat(ctx, provider.ChatRequest{
		Messages:     messages,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return ErrorPrefix + err.Error(), err
	}

	g.mu.Lock()
	g.calls++
	g.lastUsage = resp.Usage
	if g.lastUsage.PromptTokens == 0 {
		// 部分兼容服务端不返回用量，用 tiktoken 估算
		// Some compatible servers omit usage; estimate with tiktoken
		g.lastUsage.PromptTokens = g.tokenizer.Count(messages)
		g.lastUsage.CompletionTokens = g.tokenizer.CountText(resp.Content)
		g.lastUsage.TotalTokens = g.lastUsage.PromptTokens + g.lastUsage.CompletionTokens
	}
	g.mu.Unlock()

	content := resp.Content
	if strings.TrimSpace(content) == "" {
		empty := fmt.Errorf("empty completion (finish_reason=%s)", resp.FinishReason)
		return ErrorPrefix + empty.Error(), empty
	}
	return content, nil
}

// LastUsage returns token usage of the most recent successful call.
func (g *Gateway) LastUsage() provider.Usage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastUsage
}

// Calls returns the number of successful completions so far.
func (g *Gateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Model returns the active model name.
func (g *Gateway) Model() string {
	return g.provider.CurrentModel()
}
