package booktools

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultChunkChars 文本模式每页默认最大字符数
const DefaultChunkChars = 600

// maxHeadingLen 视为标题行的最大长度
const maxHeadingLen = 60

// maxDerivedTitleLen 由首句派生标题时的最大长度
const maxDerivedTitleLen = 40

var (
	// 句末标点（含法语省略号与引号）后接空白处切分
	sentenceEndRe = regexp.MustCompile(`([.!?…]+["»”']?)\s+`)
	blankLinesRe  = regexp.MustCompile(`\n\s*\n`)
)

// TextSegments 粘贴文本的切分结果
type TextSegments struct {
	Title  string   // 显式标题（可能为空）
	Chunks []string // 按顺序的页面文本
}

// SegmentText 将粘贴文本切分为标题和若干页
// 首行较短且没有句末标点、后面还有正文时视为标题；否则由首句派生标题
func SegmentText(text string, maxChars int) *TextSegments {
	if maxChars <= 0 {
		maxChars = DefaultChunkChars
	}

	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	result := &TextSegments{}
	if text == "" {
		return result
	}

	body := text
	if first, rest, ok := strings.Cut(text, "\n"); ok && isHeading(first) && strings.TrimSpace(rest) != "" {
		result.Title = strings.TrimSpace(first)
		body = strings.TrimSpace(rest)
	}

	var sentences []string
	for _, para := range blankLinesRe.Split(body, -1) {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		sentences = append(sentences, splitSentences(para)...)
	}

	if result.Title == "" && len(sentences) > 0 {
		result.Title = deriveTitle(sentences[0])
	}

	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			result.Chunks = append(result.Chunks, current.String())
			current.Reset()
		}
	}
	for _, s := range sentences {
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+1+utf8.RuneCountInString(s) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(s)
	}
	flush()

	return result
}

func splitSentences(para string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEndRe.FindAllStringSubmatchIndex(para, -1) {
		// loc[3] 是标点组的结束位置
		out = append(out, strings.TrimSpace(para[last:loc[3]]))
		last = loc[1]
	}
	if tail := strings.TrimSpace(para[last:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func isHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || utf8.RuneCountInString(line) > maxHeadingLen {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	return !strings.ContainsRune(".!?,;:…»\"", last)
}

func deriveTitle(sentence string) string {
	title := strings.TrimRight(sentence, ".!?…»\"' ")
	if utf8.RuneCountInString(title) <= maxDerivedTitleLen {
		return title
	}
	runes := []rune(title)[:maxDerivedTitleLen]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}
