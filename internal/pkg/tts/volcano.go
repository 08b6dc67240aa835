package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"livre/internal/pkg/id"
)

// 火山引擎 TTS 默认值
const (
	DefaultVolcanoAPIURL  = "https://openspeech.bytedance.com/api/v1/tts"
	defaultVolcanoCluster = "volcano_tts"
	volcanoSuccessCode    = 3000
)

// VolcanoConfig 火山引擎 TTS 配置
type VolcanoConfig struct {
	APIURL      string        // 默认: DefaultVolcanoAPIURL
	AccessToken string        // 访问令牌（必需）
	AppID       string        // 应用ID（可选）
	Cluster     string        // 默认: volcano_tts
	SampleRate  int           // 默认: 24000
	SpeedRatio  float64       // 默认: 1.0
	Timeout     time.Duration // 默认: 30s
}

// VolcanoClient 火山引擎 TTS 客户端
// 请求 PCM 编码，便于和 Google 输出统一处理
type VolcanoClient struct {
	apiURL      string
	accessToken string
	appID       string
	cluster     string
	sampleRate  int
	speedRatio  float64
	httpClient  *http.Client
}

// NewVolcanoClient 创建火山引擎 TTS 客户端
func NewVolcanoClient(config VolcanoConfig) (*VolcanoClient, error) {
	if config.AccessToken == "" {
		return nil, fmt.Errorf("TTS access token is required")
	}

	return &VolcanoClient{
		apiURL:      orDefault(config.APIURL, DefaultVolcanoAPIURL),
		accessToken: config.AccessToken,
		appID:       config.AppID,
		cluster:     orDefault(config.Cluster, defaultVolcanoCluster),
		sampleRate:  orDefault(config.SampleRate, DefaultSampleRate),
		speedRatio:  orDefault(config.SpeedRatio, 1.0),
		httpClient:  &http.Client{Timeout: orDefault(config.Timeout, defaultTimeout)},
	}, nil
}

type volcanoResponse struct {
	ReqID   string `json:"reqid"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

// Synthesize 合成一段文本，voiceType 为火山引擎音色
func (c *VolcanoClient) Synthesize(ctx context.Context, text, voiceType string) ([]byte, error) {
	requestID := id.New()
	reqBody, err := json.Marshal(c.buildRequestConfig(text, voiceType, requestID))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer; %s", c.accessToken))
	req.Header.Set("Content-Type", "application/json")

	log.Debug().
		Str("request_id", requestID).
		Str("voice_type", voiceType).
		Int("text_len", len(text)).
		Msg("sending volcano TTS request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: string(respBody)}
	}

	var parsed volcanoResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if parsed.Code != volcanoSuccessCode {
		message := parsed.Message
		if message == "" {
			message = "unknown error"
		}
		return nil, &APIError{Status: resp.StatusCode, Code: parsed.Code, Message: message}
	}
	if parsed.Data == "" {
		return nil, ErrEmptyAudio
	}

	audio, err := base64.StdEncoding.DecodeString(parsed.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio data: %w", err)
	}
	return audio, nil
}

// buildRequestConfig 构建请求配置
// 参考官方文档: https://openspeech.bytedance.com/api/v1/tts
func (c *VolcanoClient) buildRequestConfig(text, voiceType, requestID string) map[string]interface{} {
	appConfig := map[string]interface{}{
		"token":   c.accessToken,
		"cluster": c.cluster,
	}
	if c.appID != "" {
		appConfig["appid"] = c.appID
	}

	audioConfig := map[string]interface{}{
		"voice_type":   voiceType,
		"encoding":     "pcm",
		"rate":         c.sampleRate,
		"speed_ratio":  c.speedRatio,
		"volume_ratio": 1.0,
		"pitch_ratio":  1.0,
		"language":     "fr",
	}

	requestConfig := map[string]interface{}{
		"reqid":     requestID,
		"text":      text,
		"text_type": "plain",
		"operation": "query",
	}

	return map[string]interface{}{
		"app":     appConfig,
		"user":    map[string]interface{}{"uid": requestID},
		"audio":   audioConfig,
		"request": requestConfig,
	}
}
