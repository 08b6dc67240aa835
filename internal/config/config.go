package config

import (
	"errors"
	"fmt"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Store    StoreConfig    `mapstructure:"store"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	AI       AIConfig       `mapstructure:"ai"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	TTS      TTSConfig      `mapstructure:"tts"`
	Image    ImageConfig    `mapstructure:"image"`
	Render   RenderConfig   `mapstructure:"render"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Playback PlaybackConfig `mapstructure:"playback"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置，Addr 为空时导入任务只保存在内存中
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig 对象存储配置（源文档、书库导出文件）
type StorageConfig struct {
	Type  string       `mapstructure:"type"` // local, oss
	Local *LocalConfig `mapstructure:"local,omitempty"`
	OSS   *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统配置
type LocalConfig struct {
	BasePath      string `mapstructure:"base_path"`      // 基础路径
	BaseURL       string `mapstructure:"base_url"`       // 基础URL（用于生成访问URL）
	PresignExpiry int    `mapstructure:"presign_expiry"` // 预签名URL过期时间（秒）
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // Bucket名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // AccessKey ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // AccessKey Secret
	PresignExpiry   int    `mapstructure:"presign_expiry"`    // 预签名URL过期时间（秒）
}

// StoreConfig 书籍记录存储配置
type StoreConfig struct {
	Driver     string `mapstructure:"driver"`      // sqlite, mongo
	SQLitePath string `mapstructure:"sqlite_path"` // sqlite 数据库文件
}

// GeminiConfig Gemini 内容分析服务配置
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	RPM    int    `mapstructure:"rpm"` // 每分钟请求上限，0 表示不限制
}

// AIConfig eino ChatModel 配置（文本分析备选后端）
type AIConfig struct {
	Provider string          `mapstructure:"provider"`
	APIKey   string          `mapstructure:"api_key"`
	Model    string          `mapstructure:"model"`
	BaseURL  string          `mapstructure:"base_url"`
	Options  AIOptionsConfig `mapstructure:"options"`
}

// AIOptionsConfig AI 模型参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// AnalyzerConfig 内容分析客户端配置
type AnalyzerConfig struct {
	Provider     string        `mapstructure:"provider"`      // gemini, eino
	MaxRetries   int           `mapstructure:"max_retries"`   // 限流重试次数
	RetryBackoff time.Duration `mapstructure:"retry_backoff"` // 限流重试基础等待时间
}

// TTSConfig 语音合成配置
type TTSConfig struct {
	Provider     string        `mapstructure:"provider"` // google, volcano
	APIURL       string        `mapstructure:"api_url"`
	APIKey       string        `mapstructure:"api_key"`      // google
	AccessToken  string        `mapstructure:"access_token"` // volcano
	AppID        string        `mapstructure:"app_id"`       // volcano
	Cluster      string        `mapstructure:"cluster"`      // volcano
	LanguageCode string        `mapstructure:"language_code"`
	SampleRate   int           `mapstructure:"sample_rate"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ImageConfig Ark 插图生成配置
type ImageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Size    string `mapstructure:"size"`
}

// RenderConfig PDF 页面渲染配置
type RenderConfig struct {
	PdftoppmPath string  `mapstructure:"pdftoppm_path"`
	PdfinfoPath  string  `mapstructure:"pdfinfo_path"`
	Scale        float64 `mapstructure:"scale"`
	JPEGQuality  int     `mapstructure:"jpeg_quality"`
}

// PipelineConfig 导入流水线配置
type PipelineConfig struct {
	PageDelay       time.Duration `mapstructure:"page_delay"`        // 每次分析调用后的固定间隔
	TaskRemoveDelay time.Duration `mapstructure:"task_remove_delay"` // 任务结束后保留时间
	ChunkChars      int           `mapstructure:"chunk_chars"`       // 文本模式每页最大字符数
	DefaultVoice    string        `mapstructure:"default_voice"`
}

// PlaybackConfig 播放与高亮配置
type PlaybackConfig struct {
	Tick           time.Duration `mapstructure:"tick"`
	SpeechCommand  string        `mapstructure:"speech_command"`
	SpeechLanguage string        `mapstructure:"speech_language"`
	SpeechRate     float64       `mapstructure:"speech_rate"`
	AudioCommand   string        `mapstructure:"audio_command"` // 为空时使用静音时钟设备
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	return c.ValidateCore()
}

// ValidateCore 验证与服务器无关的配置（CLI 命令也会调用）
func (c *Config) ValidateCore() error {
	switch c.Store.Driver {
	case "sqlite", "mongo":
	default:
		return fmt.Errorf("invalid store driver: %q, must be sqlite/mongo", c.Store.Driver)
	}

	switch c.Analyzer.Provider {
	case "gemini", "eino":
	default:
		return fmt.Errorf("invalid analyzer provider: %q, must be gemini/eino", c.Analyzer.Provider)
	}

	switch c.TTS.Provider {
	case "google", "volcano":
	default:
		return fmt.Errorf("invalid tts provider: %q, must be google/volcano", c.TTS.Provider)
	}

	if c.Pipeline.PageDelay < 0 || c.Pipeline.TaskRemoveDelay < 0 {
		return errors.New("pipeline delays must not be negative")
	}
	if c.Analyzer.MaxRetries < 0 {
		return errors.New("analyzer max_retries must not be negative")
	}

	return nil
}
