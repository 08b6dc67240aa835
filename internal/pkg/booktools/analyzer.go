package booktools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // 注册 JPEG 解码
	_ "image/png"  // 注册 PNG 解码
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// 限流重试默认值
const (
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = 8 * time.Second
)

// ContentAnalyzer 内容分析客户端
// 把页面图片或文本片段发给分析服务，并把响应规范化为双语句子和词汇
type ContentAnalyzer struct {
	provider   AnalysisProvider
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// AnalyzerOption ContentAnalyzer 配置项
type AnalyzerOption func(*ContentAnalyzer)

// WithRequestsPerMinute 限制每分钟请求数（多个导入共享同一个分析客户端时生效）
func WithRequestsPerMinute(rpm int) AnalyzerOption {
	return func(a *ContentAnalyzer) {
		if rpm > 0 {
			a.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
		}
	}
}

// WithRetry 限流重试次数与基础等待时间（第 n 次重试等待 n*backoff）
func WithRetry(maxRetries int, backoff time.Duration) AnalyzerOption {
	return func(a *ContentAnalyzer) {
		if maxRetries >= 0 {
			a.maxRetries = maxRetries
		}
		if backoff > 0 {
			a.backoff = backoff
		}
	}
}

// withSleep 替换等待函数（测试用）
func withSleep(fn func(ctx context.Context, d time.Duration) error) AnalyzerOption {
	return func(a *ContentAnalyzer) {
		a.sleep = fn
	}
}

// NewContentAnalyzer 创建内容分析客户端
func NewContentAnalyzer(provider AnalysisProvider, opts ...AnalyzerOption) *ContentAnalyzer {
	a := &ContentAnalyzer{
		provider:   provider,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultRetryBackoff,
		sleep:      Sleep,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzePage 分析一页图片，返回标题、句子和词汇
func (a *ContentAnalyzer) AnalyzePage(ctx context.Context, pageImage []byte) (*PageContent, error) {
	mime, err := imageMIME(pageImage)
	if err != nil {
		return nil, err
	}

	req := &AnalysisRequest{
		Mode:      ModePage,
		Prompt:    BuildPagePrompt(),
		Image:     pageImage,
		ImageMIME: mime,
		Schema:    PageSchema(ModePage),
	}
	fallback := &AnalysisRequest{
		Mode:      ModeList,
		Prompt:    BuildListPrompt(""),
		Image:     pageImage,
		ImageMIME: mime,
	}
	return a.analyze(ctx, req, fallback)
}

// AnalyzeTextChunk 分析一段文本
// excludeWords 只注入提示词，服务不一定遵守，调用方仍需去重
func (a *ContentAnalyzer) AnalyzeTextChunk(ctx context.Context, text string, excludeWords []string) (*PageContent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text chunk is empty", ErrInvalidInput)
	}

	req := &AnalysisRequest{
		Mode:   ModeChunk,
		Prompt: BuildChunkPrompt(text, excludeWords),
		Schema: PageSchema(ModeChunk),
	}
	fallback := &AnalysisRequest{
		Mode:   ModeList,
		Prompt: BuildListPrompt(text),
	}

	content, err := a.analyze(ctx, req, fallback)
	if err != nil {
		return nil, err
	}
	content.Title = ""
	return content, nil
}

// analyze 结构化请求；响应不合规时做一次降级解析
func (a *ContentAnalyzer) analyze(ctx context.Context, req, fallback *AnalysisRequest) (*PageContent, error) {
	raw, err := a.call(ctx, req)
	if err != nil {
		return nil, err
	}

	content, parseErr := ParseStructured(raw)
	if parseErr == nil {
		return content, nil
	}

	log.Warn().Err(parseErr).Str("mode", string(req.Mode)).Msg("structured analysis response rejected, trying free-text fallback")

	// 响应本身是纯文本时直接按行解析，否则再请求一次逐行输出
	if !looksLikeJSON(raw) {
		if lines := ParseFreeText(raw); len(lines) > 0 {
			return freeTextContent(lines), nil
		}
	}

	raw, err = a.call(ctx, fallback)
	if err != nil {
		return nil, err
	}
	if lines := ParseFreeText(raw); len(lines) > 0 {
		return freeTextContent(lines), nil
	}

	return nil, fmt.Errorf("%w: %w", ErrServiceError, parseErr)
}

// call 发送请求；限流时按线性退避重试，其他错误归为 ErrServiceError
func (a *ContentAnalyzer) call(ctx context.Context, req *AnalysisRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * a.backoff
			log.Warn().Int("attempt", attempt).Dur("wait", wait).Str("mode", string(req.Mode)).Msg("analysis rate limited, backing off")
			if err := a.sleep(ctx, wait); err != nil {
				return "", err
			}
		}

		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		raw, err := a.provider.Analyze(ctx, req)
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !errors.Is(err, ErrServiceRateLimited) {
			if errors.Is(err, ErrServiceError) {
				return "", err
			}
			return "", fmt.Errorf("%w: %w", ErrServiceError, err)
		}
		lastErr = err
	}
	return "", lastErr
}

// imageMIME 校验图片可解码并返回 MIME 类型
func imageMIME(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: page image is empty", ErrInvalidInput)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: page image is not a decodable raster: %v", ErrInvalidInput, err)
	}
	return "image/" + format, nil
}

// Sleep 可被 ctx 取消的等待
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
