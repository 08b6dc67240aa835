package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGoogleClient(t *testing.T) {
	ctx := context.Background()

	Convey("GoogleClient 合成语音", t, func() {
		var gotKey string
		var gotBody map[string]map[string]interface{}
		status := http.StatusOK
		payload := `{"audioContent":"` + base64.StdEncoding.EncodeToString([]byte("RIFFdata")) + `"}`

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.URL.Query().Get("key")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(payload))
		}))
		defer server.Close()

		client, err := NewGoogleClient(GoogleConfig{APIURL: server.URL, APIKey: "secret"})
		So(err, ShouldBeNil)

		Convey("请求携带语言、声音和采样率", func() {
			audio, err := client.Synthesize(ctx, "Bonjour", "fr-FR-Neural2-A")
			So(err, ShouldBeNil)
			So(string(audio), ShouldEqual, "RIFFdata")
			So(gotKey, ShouldEqual, "secret")
			So(gotBody["input"]["text"], ShouldEqual, "Bonjour")
			So(gotBody["voice"]["languageCode"], ShouldEqual, "fr-FR")
			So(gotBody["voice"]["name"], ShouldEqual, "fr-FR-Neural2-A")
			So(gotBody["audioConfig"]["audioEncoding"], ShouldEqual, "LINEAR16")
			So(gotBody["audioConfig"]["sampleRateHertz"], ShouldEqual, float64(DefaultSampleRate))
		})

		Convey("429 映射为限流错误", func() {
			status = http.StatusTooManyRequests
			payload = `{"error":{"code":429,"message":"quota"}}`
			_, err := client.Synthesize(ctx, "Bonjour", "")
			So(errors.Is(err, ErrRateLimited), ShouldBeTrue)
		})

		Convey("其他错误状态返回 APIError", func() {
			status = http.StatusBadRequest
			payload = `{"error":{"code":400,"message":"bad voice"}}`
			_, err := client.Synthesize(ctx, "Bonjour", "nope")
			var apiErr *APIError
			So(errors.As(err, &apiErr), ShouldBeTrue)
			So(apiErr.Status, ShouldEqual, http.StatusBadRequest)
			So(apiErr.Message, ShouldEqual, "bad voice")
		})

		Convey("没有音频时返回 ErrEmptyAudio", func() {
			payload = `{}`
			_, err := client.Synthesize(ctx, "Bonjour", "")
			So(errors.Is(err, ErrEmptyAudio), ShouldBeTrue)
		})
	})

	Convey("缺少 API Key 时拒绝创建", t, func() {
		_, err := NewGoogleClient(GoogleConfig{})
		So(err, ShouldNotBeNil)
	})
}

func TestVolcanoClient(t *testing.T) {
	ctx := context.Background()

	Convey("VolcanoClient 合成语音", t, func() {
		var gotAuth string
		var gotBody map[string]map[string]interface{}
		payload := `{"code":3000,"message":"Success","data":"` + base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4}) + `"}`

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_, _ = w.Write([]byte(payload))
		}))
		defer server.Close()

		client, err := NewVolcanoClient(VolcanoConfig{APIURL: server.URL, AccessToken: "token", AppID: "app"})
		So(err, ShouldBeNil)

		Convey("请求 PCM 编码", func() {
			audio, err := client.Synthesize(ctx, "Bonjour", "BV001_streaming")
			So(err, ShouldBeNil)
			So(audio, ShouldResemble, []byte{1, 2, 3, 4})
			So(gotAuth, ShouldEqual, "Bearer; token")
			So(gotBody["app"]["appid"], ShouldEqual, "app")
			So(gotBody["app"]["cluster"], ShouldEqual, "volcano_tts")
			So(gotBody["audio"]["encoding"], ShouldEqual, "pcm")
			So(gotBody["audio"]["voice_type"], ShouldEqual, "BV001_streaming")
			So(gotBody["request"]["text"], ShouldEqual, "Bonjour")
		})

		Convey("业务错误码返回 APIError", func() {
			payload = `{"code":3011,"message":"invalid text"}`
			_, err := client.Synthesize(ctx, "Bonjour", "BV001_streaming")
			var apiErr *APIError
			So(errors.As(err, &apiErr), ShouldBeTrue)
			So(apiErr.Code, ShouldEqual, 3011)
		})
	})
}
