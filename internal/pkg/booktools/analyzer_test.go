package booktools

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

// mockAnalysisProvider 用于测试的分析服务
type mockAnalysisProvider struct {
	analyzeFunc func(ctx context.Context, req *AnalysisRequest) (string, error)
	requests    []*AnalysisRequest
}

func (m *mockAnalysisProvider) Analyze(ctx context.Context, req *AnalysisRequest) (string, error) {
	m.requests = append(m.requests, req)
	return m.analyzeFunc(ctx, req)
}

func testPNG() []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	return buf.Bytes()
}

func noSleep(waits *[]time.Duration) AnalyzerOption {
	return withSleep(func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	})
}

const pageJSON = `{"title":"Le chat","sentences":[{"source":"Le chat dort.","target":"The cat sleeps."},{"source":"   ","target":"blank"}],"keywords":[{"word":"chat","pronunciation":"sha","explanation":"cat"},{"word":" ","pronunciation":"","explanation":""}]}`

func TestContentAnalyzer_AnalyzePage(t *testing.T) {
	ctx := context.Background()

	Convey("AnalyzePage 解析结构化响应", t, func() {
		var waits []time.Duration

		Convey("合规响应：过滤空白句子和空白词", func() {
			provider := &mockAnalysisProvider{analyzeFunc: func(ctx context.Context, req *AnalysisRequest) (string, error) {
				return pageJSON, nil
			}}
			analyzer := NewContentAnalyzer(provider, noSleep(&waits))

			content, err := analyzer.AnalyzePage(ctx, testPNG())
			So(err, ShouldBeNil)
			So(content.Title, ShouldEqual, "Le chat")
			So(len(content.Sentences), ShouldEqual, 1)
			So(content.Sentences[0].Source, ShouldEqual, "Le chat dort.")
			So(content.Sentences[0].Target, ShouldEqual, "The cat sleeps.")
			So(len(content.Keywords), ShouldEqual, 1)
			So(content.Keywords[0].Word, ShouldEqual, "chat")

			So(len(provider.requests), ShouldEqual, 1)
			req := provider.requests[0]
			So(req.Mode, ShouldEqual, ModePage)
			So(req.ImageMIME, ShouldEqual, "image/png")
			So(req.Schema, ShouldNotBeNil)
			So(req.Schema.Required, ShouldContain, "title")
			So(req.Prompt, ShouldContainSubstring, "at least 2")
		})

		Convey("没有词汇时直接接受，不重试", func() {
			provider := &mockAnalysisProvider{analyzeFunc: func(ctx context.Context, req *AnalysisRequest) (string, error) {
				return `{"title":"Vide","sentences":[{"source":"Bonne nuit.","target":"Good night."}],"keywords":[]}`, nil
			}}
			content, err := NewContentAnalyzer(provider, noSleep(&waits)).AnalyzePage(ctx, testPNG())
			So(err, ShouldBeNil)
			So(len(content.Keywords), ShouldEqual, 0)
			So(len(provider.requests), ShouldEqual, 1)
		})

		Convey("图片无法解码时拒绝请求", func() {
			provider := &mockAnalysisProvider{analyzeFunc: func(ctx context.Context, req *AnalysisRequest) (string, error) {
				return pageJSON, nil
			}}
			_, err := NewContentAnalyzer(provider).AnalyzePage(ctx, []byte("not an image"))
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
			So(len(provider.requests), ShouldEqual, 0)
		})

		Convey("markdown 包裹的 JSON 也能解析", func() {
			provider := &mockAnalysisProvider{analyzeFunc: func(ctx context.Context, req *AnalysisRequest) (string, error) {
				return "```json\n" + pageJSON + "\n```", nil
			}}
			content, err := NewContentAnalyzer(provider).AnalyzePage(ctx, testPNG())
			So(err, ShouldBeNil)
			So(content.Title, ShouldEqual, "Le chat")
		})
	})

	Convey("AnalyzePage 限流重试", t, func() {
		var waits []time.Duration

		Convey("限流后重试成功，等待时间线性增长", func() {
			calls := 0
			provider := &mockAnalysisProvider{analyzeFunc: func(ctx context.Context, req *AnalysisRequest) (string, error) {
				calls++
				if calls <= 2 {
					return "", RateLimitedError(errors.New("429"))
				}
				return pageJSON, nil
			}}
			analyzer := NewContentAnalyzer(provider, WithRetry(2, time.Second), noSleep(&waits))

			content, err := analyzer.AnalyzePage(ctx, testPNG())
			So(err, ShouldBeNil)
			So(content.Title, ShouldEqual, "Le chat")
			So(waits, ShouldResemble, []time.Duration{time.Second, 2 * time.Second})
		})

		Convey("重试耗尽后返回限流错误", func() {
			provider := &mockAnalysisProvider{analyzeFunc: func(ctx context.Context, req *AnalysisRequest) (string, error) {
				return "", RateLimitedError(errors.New("429"))
			}}
			_, err := NewContentAnalyzer(provider, WithRetry(1, time.Second), noSleep(&waits)).AnalyzePage(ctx, testPNG())
			So(errors.Is(err, ErrServiceRateLimited), ShouldBeTrue)
			So(len(provider.requests), ShouldEqual, 2)
		})

		Convey("其他错误不重试，归为服务错误", func() {
			provider := &mockAnalysisProvider{analyzeFunc: func(ctx context.Context, req *AnalysisRequest) (string, error) {
				return "", errors.New("boom")
			}}
			_, err := NewContentAnalyzer(provider, noSleep(&waits)).AnalyzePage(ctx, testPNG())
			So(errors.Is(err, ErrServiceError), ShouldBeTrue)
			So(len(provider.requests), ShouldEqual, 1)
			So(len(waits), ShouldEqual, 0)
		})
	})

	Convey("AnalyzePage 降级解析", t, func() {
		Convey("纯文本响应直接按行解析，丢弃过短的行", func() {
			provider := &mockAnalysisProvider{analyzeFunc: func(ctx context.Context, req *AnalysisRequest) (string, error) {
				return "Le petit chat dort sur le tapis.\nok\n\nIl rêve de souris.", nil
			}}
			content, err := NewContentAnalyzer(provider).AnalyzePage(ctx, testPNG())
			So(err, ShouldBeNil)
			So(content.FromFallback, ShouldBeTrue)
			So(len(content.Sentences), ShouldEqual, 2)
			So(content.Sentences[1].Source, ShouldEqual, "Il rêve de souris.")
			So(content.Title, ShouldEqual, "Le petit chat dort s")
			So(len(provider.requests), ShouldEqual, 1)
		})

		Convey("空 JSON 时发起一次逐行请求", func() {
			provider := &mockAnalysisProvider{analyzeFunc: func(ctx context.Context, req *AnalysisRequest) (string, error) {
				if req.Mode == ModeList {
					return "Une étoile brille.", nil
				}
				return "{}", nil
			}}
			content, err := NewContentAnalyzer(provider).AnalyzePage(ctx, testPNG())
			So(err, ShouldBeNil)
			So(len(provider.requests), ShouldEqual, 2)
			So(provider.requests[1].Mode, ShouldEqual, ModeList)
			So(provider.requests[1].Schema, ShouldBeNil)
			So(content.Sentences[0].Source, ShouldEqual, "Une étoile brille.")
		})

		Convey("降级后仍无内容时返回服务错误", func() {
			provider := &mockAnalysisProvider{analyzeFunc: func(ctx context.Context, req *AnalysisRequest) (string, error) {
				if req.Mode == ModeList {
					return "", nil
				}
				return "{broken", nil
			}}
			_, err := NewContentAnalyzer(provider).AnalyzePage(ctx, testPNG())
			So(errors.Is(err, ErrServiceError), ShouldBeTrue)
			So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)
			So(len(provider.requests), ShouldEqual, 2)
		})
	})
}

func TestContentAnalyzer_AnalyzeTextChunk(t *testing.T) {
	ctx := context.Background()

	Convey("AnalyzeTextChunk 分析文本片段", t, func() {
		Convey("空文本被拒绝", func() {
			provider := &mockAnalysisProvider{analyzeFunc: func(ctx context.Context, req *AnalysisRequest) (string, error) {
				return pageJSON, nil
			}}
			_, err := NewContentAnalyzer(provider).AnalyzeTextChunk(ctx, "  \n ", nil)
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
			So(len(provider.requests), ShouldEqual, 0)
		})

		Convey("已出现的词写入提示词，片段模式不返回标题", func() {
			provider := &mockAnalysisProvider{analyzeFunc: func(ctx context.Context, req *AnalysisRequest) (string, error) {
				return pageJSON, nil
			}}
			content, err := NewContentAnalyzer(provider).AnalyzeTextChunk(ctx, "Le chat dort.", []string{"souris", "maison"})
			So(err, ShouldBeNil)
			So(content.Title, ShouldEqual, "")

			req := provider.requests[0]
			So(req.Mode, ShouldEqual, ModeChunk)
			So(req.Prompt, ShouldContainSubstring, "souris, maison")
			So(req.Prompt, ShouldContainSubstring, "at least 3")
			So(req.Prompt, ShouldContainSubstring, "Le chat dort.")
			So(req.Schema.Required, ShouldNotContain, "title")
		})

		Convey("降级请求带上原文", func() {
			provider := &mockAnalysisProvider{analyzeFunc: func(ctx context.Context, req *AnalysisRequest) (string, error) {
				if req.Mode == ModeList {
					return "Le chat dort.", nil
				}
				return `{"keywords":[]}`, nil
			}}
			content, err := NewContentAnalyzer(provider).AnalyzeTextChunk(ctx, "Le chat dort.", nil)
			So(err, ShouldBeNil)
			So(strings.Contains(provider.requests[1].Prompt, "Le chat dort."), ShouldBeTrue)
			So(content.Sentences[0].Source, ShouldEqual, "Le chat dort.")
		})
	})
}
