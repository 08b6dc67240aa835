package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"livre/internal/app"
	"livre/internal/config"
	bookrepo "livre/internal/repository/book"
	bookservice "livre/internal/service/book"
)

func newTestServer(t *testing.T) (*Server, *bookrepo.SQLiteRepo) {
	repo, err := bookrepo.NewSQLiteRepo(context.Background(), "file::memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	application := &app.App{
		Repo:  repo,
		Books: bookservice.NewBookService(&bookservice.Config{Repo: repo}),
	}
	cfg := &config.Config{Server: config.ServerConfig{Mode: "test"}}
	return New(cfg, application), repo
}

func TestServer(t *testing.T) {
	Convey("服务器路由", t, func() {
		srv, repo := newTestServer(t)
		defer repo.Close()
		engine := srv.Engine()

		Convey("健康检查", func() {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
		})

		Convey("就绪检查包含书库", func() {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			So(w.Code, ShouldEqual, http.StatusOK)

			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body.Status, ShouldEqual, "ready")
			So(body.Checks["store"], ShouldEqual, "ok")
		})

		Convey("书库关闭后不再就绪", func() {
			So(repo.Close(), ShouldBeNil)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("沿用客户端的请求ID", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("X-Request-ID", "req-42")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			So(w.Header().Get("X-Request-ID"), ShouldEqual, "req-42")
		})

		Convey("预检请求返回 204", func() {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/books", nil))
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})

		Convey("空书库列表", func() {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/books", nil))
			So(w.Code, ShouldEqual, http.StatusOK)

			var env struct {
				Code int             `json:"code"`
				Data json.RawMessage `json:"data"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &env), ShouldBeNil)
			So(string(env.Data), ShouldEqual, "[]")
		})
	})
}
