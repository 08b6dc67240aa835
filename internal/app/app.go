package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"livre/internal/ai/component"
	"livre/internal/config"
	"livre/internal/handler"
	"livre/internal/model/book"
	"livre/internal/pkg/ark"
	"livre/internal/pkg/booktools"
	"livre/internal/pkg/booktools/providers"
	"livre/internal/pkg/cache"
	"livre/internal/pkg/gemini"
	"livre/internal/pkg/mongodb"
	"livre/internal/pkg/pdfrender"
	"livre/internal/pkg/playback"
	"livre/internal/pkg/progress"
	"livre/internal/pkg/speech"
	"livre/internal/pkg/storage"
	"livre/internal/pkg/storagefactory"
	"livre/internal/pkg/tts"
	bookrepo "livre/internal/repository/book"
	bookservice "livre/internal/service/book"
)

// DefaultSQLitePath 未配置时的书库文件
const DefaultSQLitePath = "livre.db"

// App 装配好的应用组件，serve 和 CLI 命令共用
type App struct {
	cfg *config.Config

	Books   bookservice.BookService
	Repo    bookrepo.BookRepository
	Storage storage.Storage

	mongo  *mongodb.Client
	redis  *cache.RedisCache
	gemini *gemini.Client
}

// Build 根据配置创建全部组件
// 存储和 Redis 不可用时降级运行，书库和分析服务创建失败则返回错误
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	repo, err := a.openRepository(ctx)
	if err != nil {
		return nil, err
	}
	a.Repo = repo

	store, err := storagefactory.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		log.Warn().Err(err).Msg("failed to init storage, source viewer and exports disabled")
	} else {
		a.Storage = store
	}

	analyzer, err := a.newAnalyzer(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	speechProvider, err := a.newSpeechProvider()
	if err != nil {
		a.Close()
		return nil, err
	}

	voice, ok := book.ParseVoice(cfg.Pipeline.DefaultVoice)
	if !ok {
		log.Warn().Str("voice", cfg.Pipeline.DefaultVoice).Msg("unknown default voice, using Kore")
	}

	renderer := pdfrender.NewClient(pdfrender.Config{
		PdftoppmPath: cfg.Render.PdftoppmPath,
		PdfinfoPath:  cfg.Render.PdfinfoPath,
		JPEGQuality:  cfg.Render.JPEGQuality,
	})

	a.Books = bookservice.NewBookService(&bookservice.Config{
		Repo:         repo,
		Tracker:      a.newTracker(),
		Analyzer:     analyzer,
		Speech:       speechProvider,
		Images:       a.newImageProvider(),
		Documents:    bookservice.NewPDFLoader(renderer),
		Storage:      a.Storage,
		RenderSize:   pdfrender.TargetSize{Scale: cfg.Render.Scale},
		PageDelay:    cfg.Pipeline.PageDelay,
		ChunkChars:   cfg.Pipeline.ChunkChars,
		DefaultVoice: voice,
	})

	log.Info().
		Str("store", cfg.Store.Driver).
		Str("analyzer", cfg.Analyzer.Provider).
		Str("tts", cfg.TTS.Provider).
		Bool("storage", a.Storage != nil).
		Bool("redis", a.redis != nil).
		Msg("application initialized")
	return a, nil
}

func (a *App) openRepository(ctx context.Context) (bookrepo.BookRepository, error) {
	switch a.cfg.Store.Driver {
	case "mongo":
		client, err := mongodb.Connect(ctx, &a.cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to ensure indexes")
		}
		a.mongo = client
		log.Info().Str("database", a.cfg.Mongo.Database).Msg("connected to MongoDB")
		return bookrepo.NewMongoRepo(client.Database()), nil
	default:
		path := a.cfg.Store.SQLitePath
		if path == "" {
			path = DefaultSQLitePath
		}
		repo, err := bookrepo.NewSQLiteRepo(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite library: %w", err)
		}
		log.Info().Str("path", path).Msg("opened sqlite library")
		return repo, nil
	}
}

// newTracker 配置了 Redis 时任务进度写入 Redis，连接失败回退到内存
func (a *App) newTracker() progress.Tracker {
	delay := a.cfg.Pipeline.TaskRemoveDelay
	if a.cfg.Redis.Addr == "" {
		return progress.NewMemoryTracker(delay)
	}
	rc, err := cache.NewRedisCache(&a.cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to Redis, tracking imports in memory")
		return progress.NewMemoryTracker(delay)
	}
	a.redis = rc
	log.Info().Str("addr", a.cfg.Redis.Addr).Msg("connected to Redis")
	return progress.NewRedisTracker(rc, delay)
}

func (a *App) newAnalyzer(ctx context.Context) (*booktools.ContentAnalyzer, error) {
	var provider booktools.AnalysisProvider
	switch a.cfg.Analyzer.Provider {
	case "eino":
		chatModel, err := component.NewChatModel(ctx, &a.cfg.AI)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		provider = providers.NewEinoProvider(chatModel)
	default:
		client, err := gemini.NewClient(ctx, &gemini.Config{
			APIKey: a.cfg.Gemini.APIKey,
			Model:  a.cfg.Gemini.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		a.gemini = client
		provider = providers.NewGeminiProvider(client)
	}

	return booktools.NewContentAnalyzer(provider,
		booktools.WithRequestsPerMinute(a.cfg.Gemini.RPM),
		booktools.WithRetry(a.cfg.Analyzer.MaxRetries, a.cfg.Analyzer.RetryBackoff),
	), nil
}

func (a *App) newSpeechProvider() (booktools.SpeechProvider, error) {
	c := a.cfg.TTS
	switch c.Provider {
	case "volcano":
		client, err := newVolcano(c)
		if err != nil {
			return nil, fmt.Errorf("failed to create volcano tts client: %w", err)
		}
		return providers.NewVolcanoSpeechProvider(client), nil
	default:
		client, err := newGoogle(c)
		if err != nil {
			return nil, fmt.Errorf("failed to create google tts client: %w", err)
		}
		return providers.NewGoogleSpeechProvider(client), nil
	}
}

func newGoogle(c config.TTSConfig) (*tts.GoogleClient, error) {
	return tts.NewGoogleClient(tts.GoogleConfig{
		APIURL:       c.APIURL,
		APIKey:       c.APIKey,
		LanguageCode: c.LanguageCode,
		SampleRate:   c.SampleRate,
		Timeout:      c.Timeout,
	})
}

func newVolcano(c config.TTSConfig) (*tts.VolcanoClient, error) {
	return tts.NewVolcanoClient(tts.VolcanoConfig{
		APIURL:      c.APIURL,
		AccessToken: c.AccessToken,
		AppID:       c.AppID,
		Cluster:     c.Cluster,
		SampleRate:  c.SampleRate,
		Timeout:     c.Timeout,
	})
}

// newImageProvider 插图是可选的，未启用或创建失败返回 nil
func (a *App) newImageProvider() booktools.ImageProvider {
	c := a.cfg.Image
	if !c.Enabled {
		return nil
	}
	client, err := ark.NewImageClient(&ark.ImageConfig{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Size:    c.Size,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to create image client, text imports use generated covers")
		return nil
	}
	return providers.NewArkImageProvider(client)
}

// HealthChecks /ready 使用的依赖检查
func (a *App) HealthChecks() map[string]handler.Checker {
	checks := map[string]handler.Checker{
		"store": a.Repo.Ping,
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Ping
	}
	return checks
}

// NewPlaybackEngine 终端朗读使用的播放引擎
// 配置了 audio_command 时缓存音频写入该命令的标准输入，否则按时钟静音播放
func (a *App) NewPlaybackEngine(ctx context.Context) (*playback.Engine, func(), error) {
	c := a.cfg.Playback
	engineCfg := playback.Config{
		Speaker:  speech.NewCommandSpeaker(c.SpeechCommand),
		Tick:     c.Tick,
		Language: c.SpeechLanguage,
		Rate:     c.SpeechRate,
	}

	cleanup := func() {}
	if fields := strings.Fields(c.AudioCommand); len(fields) > 0 {
		cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audio command: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, nil, fmt.Errorf("failed to start audio command %q: %w", fields[0], err)
		}
		engineCfg.Device = playback.NewWriterDevice(stdin)
		cleanup = func() {
			_ = stdin.Close()
			if err := cmd.Wait(); err != nil && !errors.Is(ctx.Err(), context.Canceled) {
				log.Debug().Err(err).Msg("audio command exited")
			}
		}
	} else {
		engineCfg.Device = playback.NewClockDevice()
	}

	engine := playback.NewEngine(engineCfg)
	return engine, func() {
		engine.Close()
		cleanup()
	}, nil
}

// Close 释放连接
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.Books != nil {
		if err := a.Books.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close book service")
		}
	}
	if a.Repo != nil {
		if err := a.Repo.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close library")
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Close(ctx); err != nil {
			log.Error().Err(err).Msg("failed to close MongoDB connection")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis connection")
		}
	}
	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close gemini client")
		}
	}
}
