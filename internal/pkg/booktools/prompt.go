package booktools

import (
	"fmt"
	"strings"
)

// 每页至少请求的词汇数量
const (
	MinPageKeywords  = 2
	MinChunkKeywords = 3
)

// maxExcludeWords 提示词中最多列出的已出现词汇数量
const maxExcludeWords = 200

// BuildPagePrompt 页面图片分析提示词
func BuildPagePrompt() string {
	return fmt.Sprintf(`You are reading one page of a French picture book for children.
Precisely transcribe ALL French sentences printed on this page, in reading order, exactly as written.
Translate each sentence into natural English.
Give the page a short title.
Pick at least %d useful vocabulary words from the page. For each word give a simple pronunciation and a short explanation in English.
Output JSON only, following the response schema: {"title": string, "sentences": [{"source": string, "target": string}], "keywords": [{"word": string, "pronunciation": string, "explanation": string}]}.`,
		MinPageKeywords)
}

// BuildChunkPrompt 文本片段分析提示词，excludeWords 只是建议，结果仍会去重
func BuildChunkPrompt(text string, excludeWords []string) string {
	var sb strings.Builder
	sb.WriteString("You are preparing one page of a French reading book for children.\n")
	sb.WriteString("Split the text below into sentences, keeping the French exactly as written, and translate each sentence into natural English.\n")
	sb.WriteString(fmt.Sprintf("Pick at least %d useful vocabulary words from the text. For each word give a simple pronunciation and a short explanation in English.\n", MinChunkKeywords))

	if len(excludeWords) > 0 {
		words := excludeWords
		if len(words) > maxExcludeWords {
			words = words[len(words)-maxExcludeWords:]
		}
		sb.WriteString("Do not pick any of these words, they were already introduced: ")
		sb.WriteString(strings.Join(words, ", "))
		sb.WriteString(".\n")
	}

	sb.WriteString(`Output JSON only, following the response schema: {"sentences": [{"source": string, "target": string}], "keywords": [{"word": string, "pronunciation": string, "explanation": string}]}.`)
	sb.WriteString("\n\nText:\n")
	sb.WriteString(text)
	return sb.String()
}

// BuildListPrompt 降级提示词：逐行输出原文
func BuildListPrompt(text string) string {
	if text == "" {
		return "List the text on this page. Transcribe exactly what is written in French, one sentence per line. No other text."
	}
	return "Rewrite the following French text with exactly one sentence per line. Do not translate. No other text.\n\n" + text
}
