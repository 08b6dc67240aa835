package booktools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"livre/internal/model/book"
)

// Synthesizer 朗读合成
// 每个内容块在导入时最多合成一次；已有音频时不再合成
type Synthesizer struct {
	provider SpeechProvider
}

// NewSynthesizer 创建朗读合成器
func NewSynthesizer(provider SpeechProvider) *Synthesizer {
	return &Synthesizer{provider: provider}
}

// Synthesize 合成一段文本，失败返回 *SynthesisError
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice book.Voice) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: synthesis text is empty", ErrInvalidInput)
	}
	if !voice.Valid() {
		voice = book.DefaultVoice
	}

	audio, err := s.provider.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, &SynthesisError{Voice: voice.String(), Err: err}
	}
	if len(audio) == 0 {
		return nil, &SynthesisError{Voice: voice.String(), Err: fmt.Errorf("empty audio payload")}
	}
	return audio, nil
}

// SynthesizePage 为页面补齐朗读音频，返回是否发生了合成
// 没有句子或已有缓存音频时不调用服务；合成失败只记录日志，页面保持无音频
func (s *Synthesizer) SynthesizePage(ctx context.Context, page *book.Page, voice book.Voice) bool {
	if !page.HasNarration() {
		page.Audio = nil
		return false
	}
	if len(page.Audio) > 0 {
		return false
	}

	audio, err := s.Synthesize(ctx, page.NarrationText(), voice)
	if err != nil {
		log.Error().Err(err).Str("page_id", page.ID).Msg("failed to synthesize page narration")
		return false
	}
	page.Audio = audio
	return true
}
