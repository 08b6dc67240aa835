package ark

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
)

// Ark 图片生成默认值
const (
	DefaultBaseURL    = "https://ark.cn-beijing.volces.com/api/v3"
	DefaultImageModel = "doubao-seedream-3-0-t2i-250415"
	DefaultImageSize  = "1024x768"
)

// ImageConfig Ark 图片生成配置
type ImageConfig struct {
	APIKey  string // API Key（必需）
	BaseURL string // 可选，默认: DefaultBaseURL
	Model   string // 可选，默认: DefaultImageModel
	Size    string // 可选，默认: DefaultImageSize（横版插图）
}

// ImageClient Ark 图片生成客户端
// 用于文本导入时为没有图片的页面生成插图
type ImageClient struct {
	client *arkruntime.Client
	model  string
	size   string
}

// NewImageClient 创建 Ark 图片生成客户端
func NewImageClient(config *ImageConfig) (*ImageClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("ark image api_key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	modelName := config.Model
	if modelName == "" {
		modelName = DefaultImageModel
	}
	size := config.Size
	if size == "" {
		size = DefaultImageSize
	}

	return &ImageClient{
		client: arkruntime.NewClientWithApiKey(config.APIKey, arkruntime.WithBaseUrl(baseURL)),
		model:  modelName,
		size:   size,
	}, nil
}

// GenerateImage 同步生成一张图片，返回解码后的图片字节
func (c *ImageClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	size := c.size
	responseFormat := "b64_json"
	watermark := false

	input := model.GenerateImagesRequest{
		Model:          c.model,
		Prompt:         prompt,
		Size:           &size,
		ResponseFormat: &responseFormat,
		Watermark:      &watermark,
	}

	output, err := c.client.GenerateImages(ctx, input)
	if err != nil {
		log.Error().Err(err).Str("model", c.model).Msg("failed to call Ark GenerateImages API")
		return nil, fmt.Errorf("ark GenerateImages API call failed: %w", err)
	}

	if len(output.Data) == 0 || output.Data[0].B64Json == nil {
		return nil, fmt.Errorf("no b64_json image data in response")
	}

	imageData, err := base64.StdEncoding.DecodeString(*output.Data[0].B64Json)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image data: %w", err)
	}
	return imageData, nil
}
