package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/pyama86/slaffic-ticket/config"
	"github.com/pyama86/slaffic-ticket/domain/model"
)

type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI はキーが設定されていなければ nil を返す
func NewOpenAI(cfg config.AIConfig) (*OpenAI, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	return &OpenAI{
		client: client,
		model:  cfg.Model,
	}, nil
}

func newOpenAIClient(cfg config.AIConfig) (*openai.Client, error) {
	if cfg.AzureEndpoint != "" {
		return newAzureClient(cfg)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	c := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &c, nil
}

func newAzureClient(cfg config.AIConfig) (*openai.Client, error) {
	if cfg.AzureKey == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_KEY is not set")
	}

	c := openai.NewClient(
		azure.WithEndpoint(cfg.AzureEndpoint, cfg.AzureAPIVersion),
		azure.WithAPIKey(cfg.AzureKey),
	)
	return &c, nil
}

func digestPrompt(entries []model.DigestEntry, now time.Time) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, "- "+e.String())
	}

	return fmt.Sprintf(`## 依頼内容
あなたに渡すコンテンツは各部署に届いている未完了チケットの一覧です。
内容はチケットID、作成日時、部署、ステータス、担当者、依頼内容です。
マネージャが朝に状況を把握するためのサマリを作ってください。

## 回答内容の指定
- 3日以上完了していないチケットをピックアップする
- エスカレーション中のチケットがあれば優先して挙げる
- 特定の部署や担当者に偏りがあれば状況を説明する

## フォーマットの指定
*滞留しているチケット*
> {チケットIDと内容を羅列して、必要であればコメントしてください}

*エスカレーション中のチケット*
> {チケットIDと内容を羅列して、必要であればコメントしてください}

*負荷の偏り*
> {部署や担当者の偏りがあれば、その内容を羅列してください}

## 現在時刻
%s
## チケット一覧
%s
`,
		now.Format("2006-01-02 15:04:05 MST"),
		strings.Join(lines, "\n"),
	)
}

func (h *OpenAI) GenerateSummary(ctx context.Context, entries []model.DigestEntry, now time.Time) (string, error) {
	response, err := h.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(digestPrompt(entries, now)),
		},
		Model: h.model,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("OpenAI API returned no choices")
	}

	return response.Choices[0].Message.Content, nil
}
