package provider

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"vlab/internal/chat"
)

func TestBuildSDKRequestSystemPromptFirst(t *testing.T) {
	req := ChatRequest{
		Messages:     []chat.Message{chat.User("hi"), chat.Assistant("hello")},
		SystemPrompt: "be brief",
	}
	out := buildSDKRequest("gpt-4o", req, 4096)
	if out.Model != "gpt-4o" {
		t.Fatalf("model = %q", out.Model)
	}
	if len(out.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(out.Messages))
	}
	if out.Messages[0].Role != openai.ChatMessageRoleSystem || out.Messages[0].Content != "be brief" {
		t.Fatalf("system message = %+v", out.Messages[0])
	}
	if out.Messages[1].Role != "user" || out.Messages[2].Role != "assistant" {
		t.Fatalf("roles = %s, %s", out.Messages[1].Role, out.Messages[2].Role)
	}
	if out.MaxTokens != 4096 {
		t.Fatalf("max tokens = %d", out.MaxTokens)
	}
}

func TestBuildSDKRequestNoSystemPrompt(t *testing.T) {
	req := ChatRequest{Messages: []chat.Message{chat.User("hi")}, MaxTokens: 512}
	out := buildSDKRequest("gpt-4o", req, 4096)
	if len(out.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(out.Messages))
	}
	if out.MaxTokens != 512 {
		t.Fatalf("request max tokens not honored: %d", out.MaxTokens)
	}
}

func TestConvertResponse(t *testing.T) {
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{
				Message:      openai.ChatCompletionMessage{Content: "answer"},
				FinishReason: openai.FinishReasonStop,
			},
		},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
	out := convertResponse(resp)
	if out.Content != "answer" || out.FinishReason != "stop" {
		t.Fatalf("converted = %+v", out)
	}
	if out.Usage.TotalTokens != 15 {
		t.Fatalf("usage = %+v", out.Usage)
	}
}

func TestConvertResponseNoChoices(t *testing.T) {
	out := convertResponse(openai.ChatCompletionResponse{})
	if out.Content != "" || out.FinishReason != "" {
		t.Fatalf("converted = %+v", out)
	}
}

func TestSetModelAndConfigured(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{Model: "gpt-4o"})
	if p.Configured() {
		t.Fatal("no key should report unconfigured")
	}
	if err := p.SetModel(""); err == nil {
		t.Fatal("empty model must fail")
	}
	if err := p.SetModel("gpt-4o-mini"); err != nil {
		t.Fatalf("SetModel: %v", err)
	}
	if p.CurrentModel() != "gpt-4o-mini" {
		t.Fatalf("model = %q", p.CurrentModel())
	}

	withKey := NewOpenAIProvider(OpenAIConfig{Model: "gpt-4o", APIKey: "k"})
	if !withKey.Configured() {
		t.Fatal("key should report configured")
	}
}
