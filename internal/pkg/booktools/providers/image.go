package providers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"livre/internal/pkg/ark"
)

// IllustrationPromptPrefix 插图提示词前缀
const IllustrationPromptPrefix = "Vibrant children's book illustration: "

// ArkImageProvider Ark 插图生成提供者
// 适配层，调用 ark.ImageClient（使用官方 Go SDK）
type ArkImageProvider struct {
	client *ark.ImageClient
}

// NewArkImageProvider 创建 Ark 插图提供者
func NewArkImageProvider(client *ark.ImageClient) *ArkImageProvider {
	return &ArkImageProvider{client: client}
}

// GenerateImage 实现 booktools.ImageProvider
func (p *ArkImageProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	imageData, err := p.client.GenerateImage(ctx, IllustrationPromptPrefix+prompt)
	if err != nil {
		return nil, fmt.Errorf("ark generate image: %w", err)
	}

	log.Info().
		Int("size", len(imageData)).
		Msg("illustration generated")

	return imageData, nil
}
