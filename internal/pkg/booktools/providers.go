package booktools

import (
	"context"

	"livre/internal/model/book"
)

// AnalysisMode 分析请求模式
type AnalysisMode string

const (
	ModePage  AnalysisMode = "page"  // 页面图片，结构化输出
	ModeChunk AnalysisMode = "chunk" // 文本片段，结构化输出
	ModeList  AnalysisMode = "list"  // 降级：逐行纯文本输出
)

// AnalysisRequest 发给内容分析服务的请求
type AnalysisRequest struct {
	Mode      AnalysisMode
	Prompt    string
	Image     []byte // 页面模式下的栅格图片
	ImageMIME string // image/jpeg, image/png
	Schema    *Schema
}

// AnalysisProvider 内容分析服务接口
// 返回服务的原始文本，结构化解析由 ContentAnalyzer 负责
// 限流时返回的错误须满足 errors.Is(err, ErrServiceRateLimited)
type AnalysisProvider interface {
	Analyze(ctx context.Context, req *AnalysisRequest) (string, error)
}

// SpeechProvider 语音合成服务接口
// 返回 16-bit 单声道 24kHz 线性 PCM
type SpeechProvider interface {
	Synthesize(ctx context.Context, text string, voice book.Voice) ([]byte, error)
}

// ImageProvider 插图生成接口
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}
