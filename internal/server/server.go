package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"livre/internal/app"
	"livre/internal/config"
	"livre/internal/handler"
	bookHandler "livre/internal/handler/book"
	"livre/internal/server/middleware"
)

// 正在进行的请求（例如上传 PDF）最多等待的时间
const shutdownTimeout = 15 * time.Second

var ginModes = map[string]string{
	"debug": gin.DebugMode,
	"test":  gin.TestMode,
}

// Server 书库 HTTP 服务
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	app    *app.App
}

// New 创建服务器并注册路由，application 的生命周期交给 Run 管理
func New(cfg *config.Config, application *app.App) *Server {
	mode, ok := ginModes[cfg.Server.Mode]
	if !ok {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	srv := &Server{
		cfg:    cfg,
		engine: gin.New(),
		app:    application,
	}
	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger("/health", "/ready"),
		middleware.CORS(),
	)

	health := handler.NewHealthHandler(s.app.HealthChecks())
	s.engine.GET("/health", health.Health)
	s.engine.GET("/ready", health.Ready)
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	bookHandler.NewHandler(s.app.Books).RegisterRoutes(s.engine.Group("/api/v1"))
}

// Run 监听 addr，ctx 结束后优雅关闭并释放应用组件
func (s *Server) Run(ctx context.Context, addr string) error {
	defer s.app.Close()

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", shutdownTimeout).Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Engine 测试使用
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
