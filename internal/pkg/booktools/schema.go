package booktools

// SchemaType 响应结构的字段类型
type SchemaType string

const (
	TypeObject SchemaType = "object"
	TypeArray  SchemaType = "array"
	TypeString SchemaType = "string"
)

// Schema 与服务无关的响应结构描述
// Gemini provider 将其转换为 genai.Schema，其他 provider 将其序列化进提示词
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

func stringField(desc string) *Schema {
	return &Schema{Type: TypeString, Description: desc}
}

// PageSchema 页面/文本片段的结构化输出
// title 为字符串，sentences 为 {source,target}，keywords 为 {word,pronunciation,explanation}
func PageSchema(mode AnalysisMode) *Schema {
	sentence := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"source": stringField("the sentence exactly as written, in French"),
			"target": stringField("English translation of the sentence"),
		},
		Required: []string{"source", "target"},
	}
	keyword := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"word":          stringField("the French word or short expression"),
			"pronunciation": stringField("simple phonetic pronunciation"),
			"explanation":   stringField("short English explanation for a child"),
		},
		Required: []string{"word", "pronunciation", "explanation"},
	}

	s := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"sentences": {Type: TypeArray, Items: sentence},
			"keywords":  {Type: TypeArray, Items: keyword},
		},
		Required: []string{"sentences", "keywords"},
	}
	if mode == ModePage {
		s.Properties["title"] = stringField("short title for the page")
		s.Required = append([]string{"title"}, s.Required...)
	}
	return s
}
