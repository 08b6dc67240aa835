package providers

import (
	"context"
	"errors"

	"livre/internal/model/book"
	"livre/internal/pkg/booktools"
	"livre/internal/pkg/pcm"
	"livre/internal/pkg/tts"
)

// DefaultGoogleVoice 未映射声音时使用的 Google 音色
const DefaultGoogleVoice = "fr-FR-Neural2-B"

var googleVoices = map[book.Voice]string{
	book.VoiceKore:   "fr-FR-Neural2-A",
	book.VoicePuck:   "fr-FR-Neural2-B",
	book.VoiceCharon: "fr-FR-Neural2-D",
	book.VoiceFenrir: "fr-FR-Neural2-E",
	book.VoiceZephyr: "fr-FR-Neural2-C",
}

// DefaultVolcanoVoice 未映射声音时使用的火山引擎音色
const DefaultVolcanoVoice = "BV001_streaming"

var volcanoVoices = map[book.Voice]string{
	book.VoiceKore:   "BV001_streaming",
	book.VoicePuck:   "BV002_streaming",
	book.VoiceCharon: "BV701_streaming",
	book.VoiceFenrir: "BV119_streaming",
	book.VoiceZephyr: "BV700_streaming",
}

// GoogleVoiceName 声音对应的 Google 音色
func GoogleVoiceName(voice book.Voice) string {
	if name, ok := googleVoices[voice]; ok {
		return name
	}
	return DefaultGoogleVoice
}

// VolcanoVoiceType 声音对应的火山引擎音色
func VolcanoVoiceType(voice book.Voice) string {
	if name, ok := volcanoVoices[voice]; ok {
		return name
	}
	return DefaultVolcanoVoice
}

// GoogleSpeechProvider Google Cloud TTS 朗读提供者（默认）
type GoogleSpeechProvider struct {
	client *tts.GoogleClient
}

// NewGoogleSpeechProvider 创建 Google 朗读提供者
func NewGoogleSpeechProvider(client *tts.GoogleClient) *GoogleSpeechProvider {
	return &GoogleSpeechProvider{client: client}
}

// Synthesize 实现 booktools.SpeechProvider，返回去掉 WAV 头的 PCM
func (p *GoogleSpeechProvider) Synthesize(ctx context.Context, text string, voice book.Voice) ([]byte, error) {
	audio, err := p.client.Synthesize(ctx, text, GoogleVoiceName(voice))
	if err != nil {
		return nil, wrapSpeechError(err)
	}
	return pcm.StripHeader(audio), nil
}

// VolcanoSpeechProvider 火山引擎 TTS 朗读提供者
type VolcanoSpeechProvider struct {
	client *tts.VolcanoClient
}

// NewVolcanoSpeechProvider 创建火山引擎朗读提供者
func NewVolcanoSpeechProvider(client *tts.VolcanoClient) *VolcanoSpeechProvider {
	return &VolcanoSpeechProvider{client: client}
}

// Synthesize 实现 booktools.SpeechProvider
func (p *VolcanoSpeechProvider) Synthesize(ctx context.Context, text string, voice book.Voice) ([]byte, error) {
	audio, err := p.client.Synthesize(ctx, text, VolcanoVoiceType(voice))
	if err != nil {
		return nil, wrapSpeechError(err)
	}
	return audio, nil
}

func wrapSpeechError(err error) error {
	if errors.Is(err, tts.ErrRateLimited) {
		return booktools.RateLimitedError(err)
	}
	return err
}
