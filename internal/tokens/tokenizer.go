package tokens

import (
	"strings"
	"sync"

	"vlab/internal/chat"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer token 计数器，tiktoken 不可用时回退到启发式估算
// Tokenizer counts tokens with tiktoken, falling back to a heuristic when
// the BPE data is unavailable (offline environments).
type Tokenizer struct {
	encoder      *tiktoken.Tiktoken
	encodingName string
	fallback     bool
	mu           sync.RWMutex
}

var (
	defaultTokenizer     *Tokenizer
	defaultTokenizerOnce sync.Once
)

// Default returns the shared tokenizer instance.
func Default() *Tokenizer {
	defaultTokenizerOnce.Do(func() {
		defaultTokenizer = New("o200k_base")
	})
	return defaultTokenizer
}

// New creates a tokenizer for the given encoding.
func New(encodingName string) *Tokenizer {
	t := &Tokenizer{encodingName: encodingName}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		t.fallback = true
		return t
	}
	t.encoder = enc
	return t
}

// ForModel creates a tokenizer using the encoding that matches a model name.
func ForModel(model string) *Tokenizer {
	return New(modelToEncoding(model))
}

// Count returns the total token count for a message list, including the
// per-message overhead of the chat completion format.
func (t *Tokenizer) Count(messages []chat.Message) int {
	total := 0
	for _, msg := range messages {
		// ~4 tokens of per-message framing overhead
		total += 4 + t.CountText(msg.Role) + t.CountText(msg.Content)
	}
	return total
}

// CountText counts tokens for a single string.
func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	if t.fallback {
		return heuristicTokenCount(text)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.encoder.Encode(text, nil, nil))
}

// IsPrecise reports whether tiktoken counting is active.
func (t *Tokenizer) IsPrecise() bool {
	return !t.fallback
}

// heuristicTokenCount 启发式估算：英文约 4 字符/token
// heuristicTokenCount estimates ~4 chars per token for ASCII text and
// ~1.5 tokens per CJK character.
func heuristicTokenCount(text string) int {
	asciiCount := 0
	cjkCount := 0
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			cjkCount++
		} else {
			asciiCount++
		}
	}
	estimate := int(float64(cjkCount)*1.5 + float64(asciiCount)*0.25)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

func modelToEncoding(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case m == "":
		return "o200k_base"
	case strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"),
		strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "chatgpt-4o"):
		return "o200k_base"
	case strings.HasPrefix(m, "gpt-4"), strings.HasPrefix(m, "gpt-3.5"):
		return "cl100k_base"
	default:
		return "cl100k_base"
	}
}
