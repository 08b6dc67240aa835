package providers

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"livre/internal/pkg/booktools"
	"livre/internal/pkg/gemini"
)

// GeminiProvider Gemini 内容分析提供者（默认）
// 结构化请求通过 ResponseSchema 约束输出
type GeminiProvider struct {
	client *gemini.Client
}

// NewGeminiProvider 创建 Gemini 分析提供者
func NewGeminiProvider(client *gemini.Client) *GeminiProvider {
	return &GeminiProvider{client: client}
}

// Analyze 实现 booktools.AnalysisProvider
func (p *GeminiProvider) Analyze(ctx context.Context, req *booktools.AnalysisRequest) (string, error) {
	text, err := p.client.Generate(ctx, &gemini.GenerateRequest{
		Prompt:      req.Prompt,
		Image:       req.Image,
		ImageFormat: strings.TrimPrefix(req.ImageMIME, "image/"),
		Schema:      toGenaiSchema(req.Schema),
	})
	if err != nil {
		if gemini.IsRateLimited(err) {
			return "", booktools.RateLimitedError(err)
		}
		return "", err
	}
	return text, nil
}

// toGenaiSchema 转换为 genai 的响应结构
func toGenaiSchema(s *booktools.Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Items:       toGenaiSchema(s.Items),
	}
	switch s.Type {
	case booktools.TypeObject:
		out.Type = genai.TypeObject
	case booktools.TypeArray:
		out.Type = genai.TypeArray
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}
