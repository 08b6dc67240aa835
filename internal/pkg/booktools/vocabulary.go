package booktools

import "livre/internal/model/book"

// WordSet 已出现词汇集合（规范化形式，保留首次出现顺序）
// 每本书的导入各自创建一个，不跨导入共享
type WordSet struct {
	index map[string]struct{}
	order []string
}

// NewWordSet 创建空集合
func NewWordSet() *WordSet {
	return &WordSet{index: make(map[string]struct{})}
}

// Add 加入一个词，返回是否为新词；空白词不加入
func (s *WordSet) Add(word string) bool {
	key := book.NormalizeWord(word)
	if key == "" {
		return false
	}
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = struct{}{}
	s.order = append(s.order, key)
	return true
}

// Contains 是否已出现
func (s *WordSet) Contains(word string) bool {
	_, ok := s.index[book.NormalizeWord(word)]
	return ok
}

// Len 集合大小
func (s *WordSet) Len() int {
	return len(s.order)
}

// Words 按首次出现顺序返回规范化后的词（用作 excludeWords）
func (s *WordSet) Words() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// FilterNewWords 过滤已出现的词汇，保持输入顺序，首次出现者保留
// 被接受的词写入 seen
func FilterNewWords(candidates []book.Keyword, seen *WordSet) []book.Keyword {
	accepted := make([]book.Keyword, 0, len(candidates))
	for _, kw := range candidates {
		if seen.Add(kw.Word) {
			accepted = append(accepted, kw)
		}
	}
	return accepted
}
