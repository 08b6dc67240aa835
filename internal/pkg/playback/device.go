package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"livre/internal/pkg/pcm"
)

// ErrDeviceBusy 设备已被占用
var ErrDeviceBusy = errors.New("audio device busy")

// Device 音频输出设备
type Device interface {
	// Acquire 获取一个输出通道，使用完必须 Close
	Acquire(ctx context.Context) (Sink, error)
}

// Sink 已获取的输出通道
type Sink interface {
	// Play 按实时速度输出 PCM，阻塞直到播完或 ctx 取消
	Play(ctx context.Context, samples []byte) error
	Close() error
}

// ClockDevice 静音设备：只按实时速度计时，不输出声音
// 服务端与测试使用
type ClockDevice struct{}

// NewClockDevice 创建静音计时设备
func NewClockDevice() *ClockDevice {
	return &ClockDevice{}
}

// Acquire 实现 Device
func (d *ClockDevice) Acquire(ctx context.Context) (Sink, error) {
	return clockSink{}, nil
}

type clockSink struct{}

func (clockSink) Play(ctx context.Context, samples []byte) error {
	timer := time.NewTimer(pcm.Duration(samples))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (clockSink) Close() error { return nil }

// writerChunk 每次写入的音频时长
const writerChunk = 100 * time.Millisecond

// WriterDevice 把裸 PCM 写入 io.Writer（例如 aplay 的标准输入）
// 同一时刻只允许一个通道
type WriterDevice struct {
	w    io.Writer
	mu   sync.Mutex
	busy bool
}

// NewWriterDevice 创建写入设备
func NewWriterDevice(w io.Writer) *WriterDevice {
	return &WriterDevice{w: w}
}

// Acquire 实现 Device，设备被占用时返回 ErrDeviceBusy
func (d *WriterDevice) Acquire(ctx context.Context) (Sink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return nil, ErrDeviceBusy
	}
	d.busy = true
	return &writerSink{device: d}, nil
}

type writerSink struct {
	device *WriterDevice
	once   sync.Once
}

// Play 分块写入，每块写完后等到其播放时间点，最多领先一块
func (s *writerSink) Play(ctx context.Context, samples []byte) error {
	chunk := pcm.SampleRate * int(writerChunk/time.Millisecond) / 1000 * pcm.BytesPerSample

	start := time.Now()
	for written := 0; written < len(samples); {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := written + chunk
		if end > len(samples) {
			end = len(samples)
		}
		if _, err := s.device.w.Write(samples[written:end]); err != nil {
			return fmt.Errorf("audio write failed: %w", err)
		}

		wait := pcm.Duration(samples[:written]) - time.Since(start)
		written = end
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	// 等最后一块播完
	if remaining := pcm.Duration(samples) - time.Since(start); remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

func (s *writerSink) Close() error {
	s.once.Do(func() {
		s.device.mu.Lock()
		s.device.busy = false
		s.device.mu.Unlock()
	})
	return nil
}
