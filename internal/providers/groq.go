package providers

import (
	"os"
	"strings"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// NewGroqProvider returns a chat-only provider for Groq's OpenAI-compatible
// API.
func NewGroqProvider(keyName string) *OpenAIProvider {
	model := os.Getenv("CRAGFLOW_GROQ_MODEL")
	if strings.TrimSpace(model) == "" {
		model = "llama-3.1-8b-instant"
	}
	return newOpenAICompatible("groq", keyName, resolveGroqKey(keyName), groqBaseURL, model, "")
}

func resolveGroqKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("CRAGFLOW_GROQ_KEY_" + sanitizeEnvToken(alias)); v != "" {
			return v
		}
	}
	return os.Getenv("GROQ_API_KEY")
}
