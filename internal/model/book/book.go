package book

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 占位页与默认标题
const (
	PlaceholderTitle     = "Page could not be analyzed"
	PlaceholderSource    = "Désolé, cette page n'a pas pu être analysée."
	PlaceholderTarget    = "Sorry, this page could not be analyzed."
	DefaultPageTitle     = "Untitled page"
	DefaultBookTitle     = "Untitled book"
	NarrationSeparator   = ". "
	DisplayTextSeparator = " "
)

// Sentence 一组双语句子，生成后不可变
type Sentence struct {
	Source string `bson:"source" json:"sourceText"` // 原文（法语）
	Target string `bson:"target" json:"targetText"` // 译文
}

// Keyword 词汇条目，Word 是去重键（忽略大小写与首尾空白）
type Keyword struct {
	Word          string `bson:"word" json:"word"`
	Pronunciation string `bson:"pronunciation" json:"pronunciation"`
	Explanation   string `bson:"explanation" json:"explanation"`
	Audio         []byte `bson:"audio,omitempty" json:"audio,omitempty"` // 首次发音请求时懒加载
}

// Page 内容块（一页）
// Audio 是 NarrationText() 的合成结果，是播放的基本单位
type Page struct {
	ID        string     `bson:"id" json:"id"`
	Title     string     `bson:"title" json:"title"`
	Sentences []Sentence `bson:"sentences" json:"sentences"`
	Keywords  []Keyword  `bson:"keywords" json:"keywords"`
	Audio     []byte     `bson:"audio,omitempty" json:"audio,omitempty"`
	Image     []byte     `bson:"image,omitempty" json:"image,omitempty"`
}

// NarrationText 合成用文本：所有原文以 ". " 连接
func (p *Page) NarrationText() string {
	return p.joinSources(NarrationSeparator)
}

// DisplayText 高亮映射所用的展示文本
func (p *Page) DisplayText() string {
	return p.joinSources(DisplayTextSeparator)
}

func (p *Page) joinSources(sep string) string {
	parts := make([]string, 0, len(p.Sentences))
	for _, s := range p.Sentences {
		parts = append(parts, s.Source)
	}
	return strings.Join(parts, sep)
}

// HasNarration 没有句子的页面处于"无朗读"状态，不得合成音频
func (p *Page) HasNarration() bool {
	return len(p.Sentences) > 0
}

// HasVocabulary 没有词汇的页面处于"无词汇"状态
func (p *Page) HasVocabulary() bool {
	return len(p.Keywords) > 0
}

// FindKeyword 按规范化后的词查找词汇条目
func (p *Page) FindKeyword(word string) *Keyword {
	key := NormalizeWord(word)
	if key == "" {
		return nil
	}
	for i := range p.Keywords {
		if NormalizeWord(p.Keywords[i].Word) == key {
			return &p.Keywords[i]
		}
	}
	return nil
}

// NewPlaceholderPage 分析失败时替代的占位页
func NewPlaceholderPage(id string, image []byte) *Page {
	return &Page{
		ID:        id,
		Title:     PlaceholderTitle,
		Sentences: []Sentence{{Source: PlaceholderSource, Target: PlaceholderTarget}},
		Keywords:  []Keyword{},
		Image:     image,
	}
}

// NormalizeWord 词汇去重键：小写并去除首尾空白
func NormalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// Book 书籍实体
// ID 与 DateAdded 创建后不可修改；任何修改之后都要整本重新保存
type Book struct {
	ID         string  `bson:"id" json:"id"`
	Title      string  `bson:"title" json:"title"`
	Pages      []*Page `bson:"pages" json:"pages"`
	DateAdded  int64   `bson:"date_added" json:"dateAdded"` // Unix 毫秒
	CoverImage []byte  `bson:"cover_image" json:"coverImage"`
	SourceKey  string  `bson:"source_key,omitempty" json:"sourceKey,omitempty"` // 源文档在对象存储中的 key
}

// FindPage 按ID查找页面
func (b *Book) FindPage(pageID string) *Page {
	for _, p := range b.Pages {
		if p.ID == pageID {
			return p
		}
	}
	return nil
}

// FindKeyword 在整本书中查找词汇条目
func (b *Book) FindKeyword(word string) *Keyword {
	for _, p := range b.Pages {
		if kw := p.FindKeyword(word); kw != nil {
			return kw
		}
	}
	return nil
}

// Normalize 统一空值：封面不能为 null，空音频/空图片统一为 nil
func (b *Book) Normalize() {
	if b.CoverImage == nil {
		b.CoverImage = []byte{}
	}
	if b.Pages == nil {
		b.Pages = []*Page{}
	}
	for _, p := range b.Pages {
		if p.Sentences == nil {
			p.Sentences = []Sentence{}
		}
		if p.Keywords == nil {
			p.Keywords = []Keyword{}
		}
		if len(p.Audio) == 0 || !p.HasNarration() {
			p.Audio = nil
		}
		if len(p.Image) == 0 {
			p.Image = nil
		}
		for i := range p.Keywords {
			if len(p.Keywords[i].Audio) == 0 {
				p.Keywords[i].Audio = nil
			}
		}
	}
}

// Collection 返回集合名称
func (b *Book) Collection() string { return "books" }

// EnsureIndexes 创建和维护索引
func (b *Book) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(b.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "date_added", Value: -1}},
			Options: options.Index().SetName("idx_date_added"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
