package booktools

import (
	"errors"
	"fmt"
)

// 错误分类，调用方通过 errors.Is 判断
var (
	// ErrServiceRateLimited 外部服务限流，可重试
	ErrServiceRateLimited = errors.New("service rate limited")
	// ErrServiceError 外部服务失败，不重试，页面以占位内容替代
	ErrServiceError = errors.New("service error")
	// ErrMalformedResponse 响应不符合约定结构，触发一次降级解析
	ErrMalformedResponse = errors.New("malformed response")
	// ErrSynthesis 语音合成失败，页面保持无音频
	ErrSynthesis = errors.New("synthesis failed")
	// ErrInvalidInput 输入不满足约束（图片无法解码、文本为空）
	ErrInvalidInput = errors.New("invalid input")
)

// SynthesisError 语音合成失败
type SynthesisError struct {
	Voice string
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed (voice %s): %v", e.Voice, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrSynthesis) 成立
func (e *SynthesisError) Is(target error) bool { return target == ErrSynthesis }

// RateLimitedError 包装一次限流响应，供 provider 返回
func RateLimitedError(err error) error {
	return fmt.Errorf("%w: %v", ErrServiceRateLimited, err)
}
