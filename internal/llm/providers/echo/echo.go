// internal/llm/providers/echo/echo.go
package echo

import (
	"context"

	"github.com/Corphon/TranslationStudio/internal/llm"
)

func init() {
	llm.Register("echo", func() llm.Provider {
		return &Provider{}
	})
}

// Provider 离线引擎，返回 "[目标语言] 原文"，用于开发和测试
type Provider struct{}

func (p *Provider) Initialize(config map[string]string) error {
	return nil
}

func (p *Provider) GetName() string {
	return "Echo"
}

func (p *Provider) GetSupportedModels() []string {
	return []string{"echo"}
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{
		Text:         "[" + req.TargetLanguage + "] " + req.Text,
		FinishReason: "stop",
		ModelName:    "echo",
		ProviderName: p.GetName(),
	}, nil
}
