package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"livre/internal/pkg/booktools"
)

// EinoProvider 基于 eino ChatModel 的内容分析提供者（备选）
// 使用 ai/component.NewChatModel 创建的模型；响应结构写入提示词
type EinoProvider struct {
	chatModel model.BaseChatModel
}

// NewEinoProvider 创建基于 eino 的分析提供者
func NewEinoProvider(chatModel model.BaseChatModel) *EinoProvider {
	return &EinoProvider{chatModel: chatModel}
}

// Analyze 实现 booktools.AnalysisProvider
func (p *EinoProvider) Analyze(ctx context.Context, req *booktools.AnalysisRequest) (string, error) {
	if p.chatModel == nil {
		return "", fmt.Errorf("chatModel is required")
	}

	msg, err := buildMessage(req)
	if err != nil {
		return "", err
	}

	response, err := p.chatModel.Generate(ctx, []*schema.Message{msg})
	if err != nil {
		if isRateLimitMessage(err.Error()) {
			return "", booktools.RateLimitedError(err)
		}
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return response.Content, nil
}

// buildMessage 构建用户消息：有图片时使用多模态内容（data URI）
func buildMessage(req *booktools.AnalysisRequest) (*schema.Message, error) {
	prompt := req.Prompt
	if req.Schema != nil {
		schemaJSON, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response schema: %w", err)
		}
		prompt += "\n\nResponse JSON schema:\n" + string(schemaJSON)
	}

	if len(req.Image) == 0 {
		return schema.UserMessage(prompt), nil
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", req.ImageMIME, base64.StdEncoding.EncodeToString(req.Image))
	return &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: prompt},
			{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:      dataURI,
					MIMEType: req.ImageMIME,
				},
			},
		},
	}, nil
}

func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests")
}
