package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"livre/internal/config"
	"livre/internal/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "livre",
	Short: "Livre - illustrated French reading companion",
	Long: `Livre turns PDF picture books and pasted French text into an illustrated,
narrated bilingual library with vocabulary and word-by-word highlighting.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.livre")
	}

	// 环境变量设置
	viper.SetEnvPrefix("LIVRE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 设置默认值
	setDefaults()

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Fprintln(os.Stderr, "No config file found, using defaults and environment variables")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	// 反序列化到结构体
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "60s")
	viper.SetDefault("server.write_timeout", "120s")

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stderr")
	viper.SetDefault("log.time_format", "RFC3339")

	// Store
	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.sqlite_path", "livre.db")

	// MongoDB
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "livre")
	viper.SetDefault("mongo.max_pool_size", 100)
	viper.SetDefault("mongo.min_pool_size", 10)

	// Redis（留空则导入任务只保存在内存中）
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.db", 0)

	// Storage
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local.base_path", "./data")
	viper.SetDefault("storage.local.presign_expiry", 3600)

	// Analyzer
	viper.SetDefault("analyzer.provider", "gemini")
	viper.SetDefault("analyzer.max_retries", 2)
	viper.SetDefault("analyzer.retry_backoff", "8s")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.rpm", 0)

	// AI（eino 后端）
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.model", "gpt-4o")

	// TTS
	viper.SetDefault("tts.provider", "google")
	viper.SetDefault("tts.language_code", "fr-FR")
	viper.SetDefault("tts.sample_rate", 24000)
	viper.SetDefault("tts.timeout", "30s")

	// Image
	viper.SetDefault("image.enabled", false)

	// Render
	viper.SetDefault("render.pdftoppm_path", "pdftoppm")
	viper.SetDefault("render.pdfinfo_path", "pdfinfo")
	viper.SetDefault("render.scale", 2.0)
	viper.SetDefault("render.jpeg_quality", 85)

	// Pipeline
	viper.SetDefault("pipeline.page_delay", "2s")
	viper.SetDefault("pipeline.task_remove_delay", "4s")
	viper.SetDefault("pipeline.chunk_chars", 600)
	viper.SetDefault("pipeline.default_voice", "Kore")

	// Playback
	viper.SetDefault("playback.tick", "50ms")
	viper.SetDefault("playback.speech_command", "espeak-ng")
	viper.SetDefault("playback.speech_language", "fr-FR")
	viper.SetDefault("playback.speech_rate", 0.9)
	viper.SetDefault("playback.audio_command", "")
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
