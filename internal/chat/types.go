package chat

// Role 常量，OpenAI 兼容
// Role constants, OpenAI-compatible
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is an OpenAI-compatible chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// User returns a user-role message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant returns an assistant-role message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
