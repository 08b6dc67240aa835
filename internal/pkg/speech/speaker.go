package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// 默认朗读参数
const (
	DefaultCommand  = "espeak-ng"
	DefaultLanguage = "fr-FR"
	DefaultRate     = 0.9
	baseWordsPerMin = 175
)

// ErrUnavailable 本机没有可用的朗读引擎
var ErrUnavailable = errors.New("speech engine unavailable")

// Utterance 一次朗读请求
type Utterance struct {
	Text     string
	Language string  // BCP-47，例如 fr-FR
	Rate     float64 // 1.0 为正常语速
}

// BoundaryFunc 朗读到达词边界时回调（字符偏移）
type BoundaryFunc func(offset int)

// Speaker 本机朗读引擎
// Speak 阻塞直到朗读结束或 ctx 取消
type Speaker interface {
	Speak(ctx context.Context, u Utterance, onBoundary BoundaryFunc) error
}

// CommandSpeaker 通过命令行朗读引擎（espeak-ng）发声
// 不提供词边界回调
type CommandSpeaker struct {
	command string
}

// NewCommandSpeaker 创建命令行朗读引擎
func NewCommandSpeaker(command string) *CommandSpeaker {
	if command == "" {
		command = DefaultCommand
	}
	return &CommandSpeaker{command: command}
}

// Speak 实现 Speaker
func (s *CommandSpeaker) Speak(ctx context.Context, u Utterance, onBoundary BoundaryFunc) error {
	if strings.TrimSpace(u.Text) == "" {
		return nil
	}

	path, err := exec.LookPath(s.command)
	if err != nil {
		return fmt.Errorf("%w: %s not found", ErrUnavailable, s.command)
	}

	args := commandArgs(u)
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = strings.NewReader(u.Text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debug().
		Str("command", s.command).
		Strs("args", args).
		Int("text_len", len(u.Text)).
		Msg("speaking utterance")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %w: %s", s.command, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// commandArgs espeak-ng 参数：语言取主标签（fr-FR → fr），语速按 175 词/分钟换算
func commandArgs(u Utterance) []string {
	language := u.Language
	if language == "" {
		language = DefaultLanguage
	}
	voice, _, _ := strings.Cut(strings.ToLower(language), "-")

	rate := u.Rate
	if rate <= 0 {
		rate = DefaultRate
	}
	speed := int(baseWordsPerMin * rate)

	return []string{"-v", voice, "-s", strconv.Itoa(speed), "--stdin"}
}
