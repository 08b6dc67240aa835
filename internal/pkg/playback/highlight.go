package playback

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"livre/internal/model/book"
)

// Segment 展示文本中的一段（单词或空白），偏移以字符计
type Segment struct {
	Text         string `json:"text"`
	Start        int    `json:"start"`
	End          int    `json:"end"` // 不含
	IsSpace      bool   `json:"isSpace"`
	IsVocabulary bool   `json:"isVocabulary"`
}

// wordPunctuation 匹配词汇时去掉的标点
const wordPunctuation = ".,!?;:()"

// Segments 按空白切分文本，保留空白段，拼接后与原文完全一致
// vocabulary 中的词按规范化形式匹配（忽略大小写与标点）
func Segments(text string, vocabulary []string) []Segment {
	vocab := make(map[string]struct{}, len(vocabulary))
	for _, w := range vocabulary {
		if key := book.NormalizeWord(w); key != "" {
			vocab[key] = struct{}{}
		}
	}

	var segments []Segment
	var current strings.Builder
	start, pos := 0, 0
	inSpace := false

	flush := func() {
		if current.Len() == 0 {
			return
		}
		seg := Segment{Text: current.String(), Start: start, End: pos, IsSpace: inSpace}
		if !inSpace {
			_, seg.IsVocabulary = vocab[cleanWord(seg.Text)]
		}
		segments = append(segments, seg)
		current.Reset()
		start = pos
	}

	for _, r := range text {
		space := unicode.IsSpace(r)
		if current.Len() > 0 && space != inSpace {
			flush()
		}
		inSpace = space
		current.WriteRune(r)
		pos++
	}
	flush()

	return segments
}

func cleanWord(word string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(wordPunctuation, r) {
			return -1
		}
		return r
	}, word)
	return book.NormalizeWord(cleaned)
}

// ActiveSegment 偏移所在的单词段下标，没有时返回 -1
// 单词段的活动区间为 [Start, End+1)，即偏移落在其后的空白起点时仍高亮该词
func ActiveSegment(segments []Segment, offset int) int {
	if offset < 0 {
		return -1
	}
	for i, seg := range segments {
		if seg.IsSpace {
			continue
		}
		if offset >= seg.Start && offset < seg.End+1 {
			return i
		}
	}
	return -1
}

// OffsetAt 播放进度 p（0..1）对应的字符偏移
// 按字符长度线性插值：返回第一个累计长度占比不小于 p 的段的起点；p 单调时结果单调
func OffsetAt(p float64, text string) int {
	return offsetIn(p, Segments(text, nil), utf8.RuneCountInString(text))
}

func offsetIn(p float64, segments []Segment, length int) int {
	if p <= 0 || length == 0 {
		return 0
	}
	if p >= 1 {
		return length
	}
	for _, seg := range segments {
		if float64(seg.End)/float64(length) >= p {
			return seg.Start
		}
	}
	return length
}
