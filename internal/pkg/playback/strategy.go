package playback

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"livre/internal/pkg/pcm"
	"livre/internal/pkg/speech"
)

// DefaultTick 缓存音频播放时的高亮刷新间隔
const DefaultTick = 50 * time.Millisecond

// ErrDevice 获取输出设备失败
var ErrDevice = errors.New("audio device unavailable")

// OffsetFunc 高亮偏移回调
type OffsetFunc func(offset int)

// CompleteFunc 播放结束回调，err 为 nil 表示正常播完；取消时不会调用
type CompleteFunc func(err error)

// Handle 正在进行的播放
type Handle interface {
	// Cancel 停止播放并等待播放协程退出；返回后不会再有任何回调
	// 不得在回调中调用
	Cancel()
}

// Strategy 播放方式：缓存音频或本机实时朗读
type Strategy interface {
	Start(ctx context.Context, onOffset OffsetFunc, onComplete CompleteFunc) (Handle, error)
}

type driver struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (d *driver) Cancel() {
	d.cancel()
	<-d.done
}

// Buffer 已解码的合成音频
type Buffer struct {
	Samples  []byte
	Duration time.Duration
}

// DecodePCM 解码合成音频（16bit 单声道 24kHz，可带 WAV 头）
func DecodePCM(data []byte) (*Buffer, error) {
	samples, err := pcm.Decode(data)
	if err != nil {
		return nil, err
	}
	duration := pcm.Duration(samples)
	if duration <= 0 {
		return nil, fmt.Errorf("%w: no samples", pcm.ErrInvalidAudio)
	}
	return &Buffer{Samples: samples, Duration: duration}, nil
}

// BufferStrategy 播放缓存音频，按已播放时长估算高亮偏移
type BufferStrategy struct {
	device   Device
	buffer   *Buffer
	segments []Segment
	length   int
	tick     time.Duration
}

// NewBufferStrategy 创建缓存音频播放方式，text 为高亮映射的展示文本
func NewBufferStrategy(device Device, buffer *Buffer, text string, tick time.Duration) *BufferStrategy {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &BufferStrategy{
		device:   device,
		buffer:   buffer,
		segments: Segments(text, nil),
		length:   utf8.RuneCountInString(text),
		tick:     tick,
	}
}

// Start 实现 Strategy；获取设备失败时返回的错误满足 errors.Is(err, ErrDevice)
func (b *BufferStrategy) Start(ctx context.Context, onOffset OffsetFunc, onComplete CompleteFunc) (Handle, error) {
	sink, err := b.device.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDevice, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	d := &driver{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(d.done)
		defer sink.Close()

		played := make(chan error, 1)
		go func() { played <- sink.Play(ctx, b.buffer.Samples) }()

		ticker := time.NewTicker(b.tick)
		defer ticker.Stop()
		start := time.Now()

		for {
			select {
			case <-ctx.Done():
				<-played
				return
			case err := <-played:
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					onComplete(err)
					return
				}
				onOffset(b.length)
				onComplete(nil)
				return
			case <-ticker.C:
				p := float64(time.Since(start)) / float64(b.buffer.Duration)
				onOffset(offsetIn(p, b.segments, b.length))
			}
		}
	}()

	return d, nil
}

// LiveStrategy 本机实时朗读，偏移来自朗读引擎的词边界回调
type LiveStrategy struct {
	speaker   speech.Speaker
	utterance speech.Utterance
}

// NewLiveStrategy 创建实时朗读播放方式
func NewLiveStrategy(speaker speech.Speaker, utterance speech.Utterance) *LiveStrategy {
	return &LiveStrategy{speaker: speaker, utterance: utterance}
}

// Start 实现 Strategy
func (l *LiveStrategy) Start(ctx context.Context, onOffset OffsetFunc, onComplete CompleteFunc) (Handle, error) {
	if l.speaker == nil {
		return nil, speech.ErrUnavailable
	}

	length := utf8.RuneCountInString(l.utterance.Text)
	ctx, cancel := context.WithCancel(ctx)
	d := &driver{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(d.done)

		last := -1
		err := l.speaker.Speak(ctx, l.utterance, func(offset int) {
			if ctx.Err() != nil {
				return
			}
			if offset < 0 {
				offset = 0
			}
			if offset > length {
				offset = length
			}
			if offset < last {
				return
			}
			last = offset
			onOffset(offset)
		})
		if ctx.Err() != nil {
			return
		}
		onComplete(err)
	}()

	return d, nil
}
