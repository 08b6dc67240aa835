package book

import "strings"

// Voice 可选的朗读声音（封闭枚举）
type Voice string

const (
	VoiceKore   Voice = "Kore"
	VoicePuck   Voice = "Puck"
	VoiceCharon Voice = "Charon"
	VoiceFenrir Voice = "Fenrir"
	VoiceZephyr Voice = "Zephyr"
)

// DefaultVoice 默认声音
const DefaultVoice = VoiceKore

// Voices 全部可选声音，按展示顺序
var Voices = []Voice{VoiceKore, VoicePuck, VoiceCharon, VoiceFenrir, VoiceZephyr}

// String 返回声音名称
func (v Voice) String() string {
	return string(v)
}

// Valid 是否为已知声音
func (v Voice) Valid() bool {
	for _, known := range Voices {
		if v == known {
			return true
		}
	}
	return false
}

// ParseVoice 解析声音名称（忽略大小写），空值返回默认声音
func ParseVoice(name string) (Voice, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultVoice, true
	}
	for _, known := range Voices {
		if strings.EqualFold(name, string(known)) {
			return known, true
		}
	}
	return DefaultVoice, false
}
