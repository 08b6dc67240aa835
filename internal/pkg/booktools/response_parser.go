package booktools

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"livre/internal/model/book"
)

// minFreeTextLineLen 降级解析时保留的最短行（字符数）
const minFreeTextLineLen = 4

// freeTextTitleLen 降级解析时由首行截取的标题长度
const freeTextTitleLen = 20

// PageContent 规范化后的分析结果
type PageContent struct {
	Title     string
	Sentences []book.Sentence
	Keywords  []book.Keyword
	// FromFallback 结果来自纯文本降级解析（无译文、无词汇）
	FromFallback bool
}

type rawPageContent struct {
	Title     string         `json:"title"`
	Sentences *[]rawSentence `json:"sentences"`
	Keywords  []rawKeyword   `json:"keywords"`
}

type rawSentence struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type rawKeyword struct {
	Word          string `json:"word"`
	Pronunciation string `json:"pronunciation"`
	Explanation   string `json:"explanation"`
}

// ParseStructured 解析结构化响应
// 空响应、非 JSON、缺少 sentences 字段都视为 ErrMalformedResponse
func ParseStructured(raw string) (*PageContent, error) {
	content := cleanJSONContent(raw)
	if content == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	var parsed rawPageContent
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.Sentences == nil {
		return nil, fmt.Errorf("%w: missing sentences", ErrMalformedResponse)
	}

	result := &PageContent{
		Title:     strings.TrimSpace(parsed.Title),
		Sentences: make([]book.Sentence, 0, len(*parsed.Sentences)),
		Keywords:  make([]book.Keyword, 0, len(parsed.Keywords)),
	}

	for _, s := range *parsed.Sentences {
		source := strings.TrimSpace(s.Source)
		if source == "" {
			continue
		}
		result.Sentences = append(result.Sentences, book.Sentence{
			Source: source,
			Target: strings.TrimSpace(s.Target),
		})
	}

	for _, k := range parsed.Keywords {
		word := strings.TrimSpace(k.Word)
		if word == "" {
			continue
		}
		result.Keywords = append(result.Keywords, book.Keyword{
			Word:          word,
			Pronunciation: strings.TrimSpace(k.Pronunciation),
			Explanation:   strings.TrimSpace(k.Explanation),
		})
	}

	return result, nil
}

// ParseFreeText 纯文本降级解析：按行切分，丢弃少于 4 个字符的行
func ParseFreeText(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "-*•"))
		if utf8.RuneCountInString(line) < minFreeTextLineLen {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// freeTextContent 将降级解析的行组装为页面内容
func freeTextContent(lines []string) *PageContent {
	result := &PageContent{
		Sentences:    make([]book.Sentence, 0, len(lines)),
		Keywords:     []book.Keyword{},
		FromFallback: true,
	}
	for _, line := range lines {
		result.Sentences = append(result.Sentences, book.Sentence{Source: line})
	}
	if len(lines) > 0 {
		result.Title = truncateRunes(lines[0], freeTextTitleLen)
	}
	return result
}

// cleanJSONContent 去掉 markdown 代码块标记，截取最外层 JSON 对象
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```JSON")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return content
	}
	return content[start : end+1]
}

// looksLikeJSON 响应是否以 JSON 对象开头（用于判断能否按行降级解析）
func looksLikeJSON(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "```")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
