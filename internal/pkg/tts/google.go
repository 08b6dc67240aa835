package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultGoogleAPIURL Google Cloud Text-to-Speech 合成接口
const DefaultGoogleAPIURL = "https://texttospeech.googleapis.com/v1/text:synthesize"

// GoogleConfig Google TTS 配置
type GoogleConfig struct {
	APIURL       string        // 默认: DefaultGoogleAPIURL
	APIKey       string        // API Key（必需）
	LanguageCode string        // 默认: fr-FR
	SampleRate   int           // 默认: 24000
	Timeout      time.Duration // 默认: 30s
}

// GoogleClient Google Cloud TTS 客户端
// 输出 LINEAR16 编码音频（带 WAV 头）
type GoogleClient struct {
	apiURL       string
	apiKey       string
	languageCode string
	sampleRate   int
	httpClient   *http.Client
}

// NewGoogleClient 创建 Google TTS 客户端
func NewGoogleClient(config GoogleConfig) (*GoogleClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("google tts api key is required")
	}

	return &GoogleClient{
		apiURL:       orDefault(config.APIURL, DefaultGoogleAPIURL),
		apiKey:       config.APIKey,
		languageCode: orDefault(config.LanguageCode, "fr-FR"),
		sampleRate:   orDefault(config.SampleRate, DefaultSampleRate),
		httpClient:   &http.Client{Timeout: orDefault(config.Timeout, defaultTimeout)},
	}, nil
}

type googleRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name,omitempty"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding   string  `json:"audioEncoding"`
		SampleRateHertz int     `json:"sampleRateHertz"`
		SpeakingRate    float64 `json:"speakingRate,omitempty"`
	} `json:"audioConfig"`
}

type googleResponse struct {
	AudioContent string `json:"audioContent"`
	Error        *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Synthesize 合成一段文本，voiceName 为空时由服务选择默认声音
func (c *GoogleClient) Synthesize(ctx context.Context, text, voiceName string) ([]byte, error) {
	var body googleRequest
	body.Input.Text = text
	body.Voice.LanguageCode = c.languageCode
	body.Voice.Name = voiceName
	body.AudioConfig.AudioEncoding = "LINEAR16"
	body.AudioConfig.SampleRateHertz = c.sampleRate

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid tts api url: %w", err)
	}
	query := endpoint.Query()
	query.Set("key", c.apiKey)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug().
		Str("voice", voiceName).
		Int("text_len", len(text)).
		Msg("sending google TTS request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed googleResponse
	_ = json.Unmarshal(respBody, &parsed)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Message: string(respBody)}
		if parsed.Error != nil {
			apiErr.Code = parsed.Error.Code
			apiErr.Message = parsed.Error.Message
		}
		return nil, apiErr
	}

	if parsed.AudioContent == "" {
		return nil, ErrEmptyAudio
	}
	audio, err := base64.StdEncoding.DecodeString(parsed.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio data: %w", err)
	}
	return audio, nil
}
