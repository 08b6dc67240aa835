package tts

import (
	"errors"
	"fmt"
	"time"
)

// 默认输出：单声道 16bit PCM，24kHz
const (
	DefaultSampleRate = 24000
	defaultTimeout    = 30 * time.Second
)

var (
	// ErrRateLimited 服务返回 429
	ErrRateLimited = errors.New("tts rate limited")
	// ErrEmptyAudio 响应中没有音频数据
	ErrEmptyAudio = errors.New("tts returned no audio")
)

// APIError 服务返回非成功状态
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("tts api error: status %d, code %d: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("tts api error: status %d: %s", e.Status, e.Message)
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
