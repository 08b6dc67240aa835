package component

import (
	"context"
	"fmt"

	arkext "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"livre/internal/config"
)

// Ark 默认值（需要支持图片输入的视觉模型）
const (
	defaultArkBaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	defaultArkModel   = "doubao-seed-1-6-vision-250815"
)

// NewChatModel 创建 ChatModel，用作内容分析的备选后端
// 支持 openai, azure, ark
func NewChatModel(ctx context.Context, cfg *config.AIConfig) (model.ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai api_key is required for provider %q", cfg.Provider)
	}

	switch cfg.Provider {
	case "openai", "":
		return newOpenAIChatModel(ctx, cfg, false)
	case "azure":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("ai base_url is required for azure")
		}
		return newOpenAIChatModel(ctx, cfg, true)
	case "ark":
		return newArkChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

func newOpenAIChatModel(ctx context.Context, cfg *config.AIConfig, byAzure bool) (model.ChatModel, error) {
	modelCfg := &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		ByAzure: byAzure,
	}
	modelCfg.Temperature, modelCfg.MaxTokens, modelCfg.TopP = sampling(cfg.Options)

	return openai.NewChatModel(ctx, modelCfg)
}

func newArkChatModel(ctx context.Context, cfg *config.AIConfig) (model.ChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultArkBaseURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultArkModel
	}

	modelCfg := &arkext.ChatModelConfig{
		Model:   modelName,
		APIKey:  cfg.APIKey,
		BaseURL: baseURL,
	}
	modelCfg.Temperature, modelCfg.MaxTokens, modelCfg.TopP = sampling(cfg.Options)

	return arkext.NewChatModel(ctx, modelCfg)
}

// sampling 未配置（零值）的参数保持为 nil，使用服务端默认值
func sampling(opts config.AIOptionsConfig) (temperature *float32, maxTokens *int, topP *float32) {
	if opts.Temperature > 0 {
		t := float32(opts.Temperature)
		temperature = &t
	}
	if opts.MaxTokens > 0 {
		n := opts.MaxTokens
		maxTokens = &n
	}
	if opts.TopP > 0 {
		p := float32(opts.TopP)
		topP = &p
	}
	return temperature, maxTokens, topP
}
