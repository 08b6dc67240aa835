package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultModel 默认多模态模型
const DefaultModel = "gemini-2.5-flash"

// ErrRateLimited 服务返回 429 / RESOURCE_EXHAUSTED
var ErrRateLimited = errors.New("gemini rate limited")

// Config Gemini 客户端配置
type Config struct {
	APIKey string // API Key（必需）
	Model  string // 模型名称（可选，默认: gemini-2.5-flash）
}

// Client Gemini 内容生成客户端
type Client struct {
	client *genai.Client
	model  string
}

// GenerateRequest 一次生成请求
type GenerateRequest struct {
	Prompt      string
	Image       []byte
	ImageFormat string        // jpeg, png
	Schema      *genai.Schema // 非空时要求返回符合该结构的 JSON
}

// NewClient 创建 Gemini 客户端
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api_key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}

	return &Client{client: client, model: modelName}, nil
}

// Generate 发送请求并返回第一个候选的文本
// 限流错误包装为 ErrRateLimited
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	model := c.client.GenerativeModel(c.model)
	if req.Schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = req.Schema
	}

	parts := make([]genai.Part, 0, 2)
	if len(req.Image) > 0 {
		parts = append(parts, genai.ImageData(req.ImageFormat, req.Image))
	}
	parts = append(parts, genai.Text(req.Prompt))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		if IsRateLimited(err) {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("model", c.model).
		Bool("structured", req.Schema != nil).
		Int("response_len", len(text)).
		Msg("gemini response received")

	return text, nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	return c.client.Close()
}

// IsRateLimited 判断错误是否为限流
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// extractText 拼接第一个候选中的全部文本片段
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("empty candidate content from gemini")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
