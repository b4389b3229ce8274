// =============================================================================
// TokenDemo 主入口
// =============================================================================
// 完整服务入口点，包含演示页面、分词接口、实时通道、健康检查、Prometheus 指标
//
// 使用方法:
//
//	tokendemo serve                               # 启动服务
//	tokendemo serve --config config.yaml          # 指定配置文件
//	tokendemo tokenize "hello world"              # 调用 /api/tokens
//	tokendemo tokenize --addr http://host:8080 hi # 指定服务地址
//	tokendemo decode 15339 1917                   # 本地把 token ID 还原为文本
//	tokendemo health                              # 健康检查
//	tokendemo version                             # 显示版本信息
// =============================================================================

// @title TokenDemo API
// @version 1.0.0
// @description Interactive tokenization demo: splits text into words and asks a tiktoken backend for token IDs.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/tokendemo/config"
	"github.com/BaSui01/tokendemo/demo"
	"github.com/BaSui01/tokendemo/internal/telemetry"
	"github.com/BaSui01/tokendemo/tokenizer"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const defaultAddr = "http://localhost:8080"

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "tokenize":
		runTokenize(os.Args[2:])
	case "decode":
		runDecode(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	if Version == "dev" {
		Version = telemetry.Version()
	}
	logger.Info("Starting TokenDemo",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	server := NewServer(cfg, logger, otelProviders)

	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	server.WaitForShutdown()

	logger.Info("TokenDemo stopped")
}

// loadConfig 加载并验证配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// 🔤 tokenize 命令
// =============================================================================

func runTokenize(args []string) {
	fs := flag.NewFlagSet("tokenize", flag.ExitOnError)
	addr := fs.String("addr", defaultAddr, "Server address")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tokenize(ctx, *addr, strings.Join(fs.Args(), " "), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Tokenize failed: %v\n", err)
		os.Exit(1)
	}
}

// tokenize 调用 /api/tokens，把 token 以空格分隔写到 w
func tokenize(ctx context.Context, addr, text string, w io.Writer) error {
	tokens, err := demo.NewClient(addr).Tokenize(ctx, text)
	if err != nil {
		var rf *demo.RequestFailure
		if errors.As(err, &rf) && rf.Body != "" {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(rf.Body))
		}
		return err
	}

	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.String()
	}
	_, err = fmt.Fprintln(w, strings.Join(parts, " "))
	return err
}

// =============================================================================
// 🔡 decode 命令
// =============================================================================

func runDecode(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	tokenizer.RegisterOpenAITokenizers()
	tok, err := tokenizer.FromConfig(cfg.Tokenizer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create tokenizer: %v\n", err)
		os.Exit(1)
	}

	if err := decodeIDs(context.Background(), tokenizer.NewService(tok), fs.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		os.Exit(1)
	}
}

// decodeIDs 用本地分词器把 token ID 还原为文本并写到 w
func decodeIDs(ctx context.Context, svc *tokenizer.Service, args []string, w io.Writer) error {
	if len(args) == 0 {
		return errors.New("no token IDs given")
	}
	ids := make([]int, len(args))
	for i, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid token ID %q", arg)
		}
		ids[i] = id
	}

	text, err := svc.Decode(ctx, ids)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", defaultAddr, "Server address")
	fs.Parse(args)

	if err := checkHealth(*addr); err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func checkHealth(addr string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(addr, "/") + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("TokenDemo %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`TokenDemo - Interactive tokenization demo

Usage:
  tokendemo <command> [options]

Commands:
  serve     Start the TokenDemo server
  tokenize  Send text to /api/tokens and print the token IDs
  decode    Turn token IDs back into text with the configured tokenizer
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve' and 'decode':
  --config <path>   Path to configuration file (YAML)

Options for 'tokenize' and 'health':
  --addr <url>      Server address (default http://localhost:8080)

Examples:
  tokendemo serve
  tokendemo serve --config /etc/tokendemo/config.yaml
  tokendemo tokenize "hello world"
  tokendemo decode 15339 1917
  tokendemo health --addr http://localhost:8080
  tokendemo version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputPaths,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
