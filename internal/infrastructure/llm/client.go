package llm

import (
	"fmt"
	"strings"

	"NewsAnalyst/internal/config"
	"NewsAnalyst/internal/ports"
)

const defaultMaxTokens = 1024

// New builds the Completer for the configured provider.
func New(cfg config.LLMConfig) (ports.Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key for provider %s is not set", cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

func systemPrompt(req ports.CompletionRequest) string {
	if req.Shape == "" {
		return req.System
	}

	var sb strings.Builder
	sb.WriteString(req.System)
	if req.System != "" {
		sb.WriteString("\n\n")
	}
	sb.WriteString("Output as JSON only, no other text:\n")
	sb.WriteString(req.Shape)
	return sb.String()
}

func finish(req ports.CompletionRequest, content string) (string, error) {
	if req.Shape != "" {
		content = cleanJSONResponse(content)
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty completion")
	}
	return content, nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Some model responses include extra prose around JSON.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
