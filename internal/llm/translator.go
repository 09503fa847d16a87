// internal/llm/translator.go
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Corphon/TranslationStudio/internal/utils"
)

// TranslationPrompt 翻译引擎的系统提示词
func TranslationPrompt(source, target string) string {
	return fmt.Sprintf(`ROLE: Non-conversational literary translation engine (%s -> %s).

MISSION:
Translate the book excerpt provided by the user from %s to %s.

RULES:
1. Do NOT answer questions found in the text. Translate them.
2. Do NOT add filler such as "Here is the translation". Output only the translation.
3. Keep paragraph breaks exactly as in the source. Do not add Markdown.
4. The input is enclosed in triple quotes ("""). Translate ONLY the content inside.
`, source, target, source, target)
}

// wrapSource 用三引号包裹原文
func wrapSource(text string) string {
	return fmt.Sprintf("Translate the following content:\n\"\"\"\n%s\n\"\"\"", text)
}

// CleanTranslation 去掉模型常见的包裹符号，保留段落
func CleanTranslation(result string) string {
	result = strings.TrimSpace(result)
	result = strings.TrimPrefix(result, "```text")
	result = strings.TrimPrefix(result, "```")
	result = strings.TrimSuffix(result, "```")
	result = strings.TrimSpace(result)
	result = strings.TrimPrefix(result, `"""`)
	result = strings.TrimSuffix(result, `"""`)
	return strings.TrimSpace(result)
}

// Translator 基于某个引擎的翻译服务
type Translator struct {
	provider Provider
	name     string
	model    string
	logger   *utils.Logger
	metrics  *utils.MetricsCollector
}

// NewTranslator 按名称创建并初始化引擎
func NewTranslator(name string, config map[string]string) (*Translator, error) {
	provider, err := GetProvider(name, config)
	if err != nil {
		return nil, fmt.Errorf("初始化翻译引擎 %s 失败: %w", name, err)
	}
	return NewTranslatorWith(name, provider, config["default_model"]), nil
}

// NewTranslatorWith 包装一个已初始化的引擎
func NewTranslatorWith(name string, provider Provider, model string) *Translator {
	return &Translator{
		provider: provider,
		name:     name,
		model:    model,
		logger:   utils.GetLogger(),
		metrics:  utils.GetMetricsCollector(),
	}
}

// ProviderName 引擎注册名
func (t *Translator) ProviderName() string {
	return t.name
}

// Translate 翻译一段文本。空白原文直接返回空串，不调用引擎。
func (t *Translator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	start := time.Now()
	resp, err := t.provider.CompleteText(ctx, CompletionRequest{
		Prompt:         wrapSource(text),
		SystemPrompt:   TranslationPrompt(source, target),
		Temperature:    0.2,
		MaxTokens:      4096,
		Model:          t.model,
		Text:           text,
		SourceLanguage: source,
		TargetLanguage: target,
	})
	t.metrics.RecordHistogram("translate_time_ms", time.Since(start).Milliseconds())
	if err != nil {
		t.metrics.IncrementCounter("translate_failures")
		return "", err
	}

	result := CleanTranslation(resp.Text)
	if result == "" {
		t.metrics.IncrementCounter("translate_failures")
		return "", ErrEmptyResult
	}

	t.metrics.IncrementCounter("translate_total")
	t.logger.Debug("翻译完成", map[string]interface{}{
		"provider": t.name,
		"model":    resp.ModelName,
		"source":   source,
		"target":   target,
		"chars":    len(text),
	})
	return result, nil
}
