// internal/llm/providers/ollama/ollama.go
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Corphon/TranslationStudio/internal/llm"
)

func init() {
	llm.Register("ollama", func() llm.Provider {
		return &Provider{
			baseURL: "http://localhost:11434",
			recommendedModels: []string{
				"llama3.1",
				"qwen2.5",
				"gemma2",
			},
		}
	})
}

// Provider 本地 Ollama 引擎，不需要密钥
type Provider struct {
	baseURL           string
	model             string
	client            *http.Client
	recommendedModels []string
}

func (p *Provider) Initialize(config map[string]string) error {
	if baseURL := config["base_url"]; baseURL != "" {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
	p.model = config["default_model"]
	if p.model == "" {
		p.model = p.recommendedModels[0]
	}
	// 本地模型首次加载可能很慢
	p.client = &http.Client{Timeout: 20 * time.Minute}
	return nil
}

func (p *Provider) GetName() string {
	return "Ollama"
}

func (p *Provider) GetSupportedModels() []string {
	return p.recommendedModels
}

// CompleteText 调用 /api/generate（非流式）
func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.2
	}

	payload, err := json.Marshal(map[string]interface{}{
		"model":  model,
		"system": req.SystemPrompt,
		"prompt": req.Prompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature":    temperature,
			"num_ctx":        8192,
			"num_predict":    -1,
			"repeat_penalty": 1.1,
		},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, fmt.Errorf("ollama错误(%d)，请确认模型 %s 已拉取: %s", httpResp.StatusCode, model, string(body))
	}

	var response struct {
		Model           string `json:"model"`
		Response        string `json:"response"`
		DoneReason      string `json:"done_reason"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&response); err != nil {
		return nil, err
	}

	return &llm.CompletionResponse{
		Text:         response.Response,
		FinishReason: response.DoneReason,
		TokensUsed:   response.PromptEvalCount + response.EvalCount,
		ModelName:    response.Model,
		ProviderName: p.GetName(),
	}, nil
}
