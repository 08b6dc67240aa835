package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// 合成音频格式：单声道 16bit 线性 PCM，24kHz
const (
	SampleRate     = 24000
	Channels       = 1
	BitsPerSample  = 16
	BytesPerSample = BitsPerSample / 8
)

// ErrInvalidAudio 音频为空或格式无法识别
var ErrInvalidAudio = errors.New("invalid audio")

// Decode 返回原始 PCM 样本字节
// 带 RIFF/WAVE 头的数据会剥离头部，只保留 data 块；其余视为裸 PCM
func Decode(audio []byte) ([]byte, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidAudio)
	}
	if !isWAV(audio) {
		if len(audio)%BytesPerSample != 0 {
			return nil, fmt.Errorf("%w: odd byte count %d for 16-bit samples", ErrInvalidAudio, len(audio))
		}
		return audio, nil
	}

	// 逐块查找 data
	pos := 12
	for pos+8 <= len(audio) {
		id := string(audio[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(audio[pos+4 : pos+8]))
		body := pos + 8
		if id == "data" {
			end := body + size
			if end > len(audio) || size < 0 {
				end = len(audio)
			}
			data := audio[body:end]
			return data[:len(data)-len(data)%BytesPerSample], nil
		}
		pos = body + size + size%2
	}
	return nil, fmt.Errorf("%w: wav data chunk not found", ErrInvalidAudio)
}

// StripHeader 尽力剥离 WAV 头，失败时原样返回
func StripHeader(audio []byte) []byte {
	data, err := Decode(audio)
	if err != nil {
		return audio
	}
	return data
}

// Duration PCM 样本的播放时长
func Duration(samples []byte) time.Duration {
	n := len(samples) / (BytesPerSample * Channels)
	return time.Duration(n) * time.Second / SampleRate
}

// EncodeWAV 为 PCM 样本加上 44 字节的 WAV 头
func EncodeWAV(samples []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(samples))

	byteRate := SampleRate * Channels * BytesPerSample
	write := func(v interface{}) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("RIFF")
	write(uint32(36 + len(samples)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	write(uint32(16))
	write(uint16(1)) // PCM
	write(uint16(Channels))
	write(uint32(SampleRate))
	write(uint32(byteRate))
	write(uint16(Channels * BytesPerSample))
	write(uint16(BitsPerSample))
	buf.WriteString("data")
	write(uint32(len(samples)))
	buf.Write(samples)

	return buf.Bytes()
}

func isWAV(audio []byte) bool {
	return len(audio) >= 12 && string(audio[:4]) == "RIFF" && string(audio[8:12]) == "WAVE"
}
