// ABOUTME: Entry point for the chatdesk routing gateway
// ABOUTME: Subcommands: serve, init, health

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/solvencia/chatdesk/internal/config"
	"github.com/solvencia/chatdesk/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
       _           _      _           _
   ___| |__   __ _| |_ __| | ___  ___| | __
  / __| '_ \ / _' | __/ _' |/ _ \/ __| |/ /
 | (__| | | | (_| | || (_| |  __/\__ \   <
  \___|_| |_|\__,_|\__\__,_|\___||___/_|\_\
`

const defaultConfig = `server:
  http_addr: "localhost:8080"

redis:
  addr: "localhost:6379"

database:
  path: "chatdesk.db"

telegram:
  enabled: false
  token: "${TELEGRAM_BOT_TOKEN}"

routing:
  lease_ttl: "30s"
  inactivity_timeout: "30m"
  response_timeout: "5m"
  state_ttl: "24h"

logging:
  level: "info"
  format: "text"
`

// getConfigPath returns the path to the gateway config file.
// Priority: CHATDESK_CONFIG env var > XDG_CONFIG_HOME/chatdesk/chatdesk.yaml
// > ~/.config/chatdesk/chatdesk.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CHATDESK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "chatdesk.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "chatdesk", "chatdesk.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: chatdesk <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the routing gateway")
		fmt.Println("  init     Create a default config file")
		fmt.Println("  health   Check gateway health")
		os.Exit(1)
	}

	// Local development convenience; absence is not an error
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Redis:    %s\n", cfg.Redis.Addr)
	green.Print("    ▶ ")
	fmt.Printf("Telegram: %v\n", cfg.Telegram.Enabled)
	fmt.Println()

	logger.Info("starting chatdesk",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Config created at %s\n", configPath)
	fmt.Println("Edit it, then run: chatdesk serve")
	return nil
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler renders log records as single colorized lines. The
// component attribute, when present, is pulled to the front of the line so
// related records group visually.
type colorHandler struct {
	mu    sync.Mutex
	level slog.Level
	attrs []slog.Attr
}

var levelTags = map[slog.Level]string{
	slog.LevelDebug: color.MagentaString("debug"),
	slog.LevelInfo:  color.CyanString(" info"),
	slog.LevelWarn:  color.YellowString(" warn"),
	slog.LevelError: color.New(color.FgRed, color.Bold).Sprint("error"),
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var component string
	var rest []slog.Attr
	for _, a := range h.attrs {
		if a.Key == "component" {
			component = a.Value.String()
		} else {
			rest = append(rest, a)
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		rest = append(rest, a)
		return true
	})

	var buf strings.Builder
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05")))
	buf.WriteByte(' ')
	if tag, ok := levelTags[r.Level]; ok {
		buf.WriteString(tag)
	} else {
		buf.WriteString(r.Level.String())
	}
	if component != "" {
		buf.WriteString(color.GreenString(" [" + component + "]"))
	}
	buf.WriteByte(' ')
	buf.WriteString(r.Message)
	for _, a := range rest {
		buf.WriteString(color.HiBlackString(" "+a.Key+"=") + a.Value.String())
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &colorHandler{level: h.level, attrs: merged}
}

// WithGroup is accepted but flattened; the gateway does not use groups
func (h *colorHandler) WithGroup(string) slog.Handler {
	return h
}
