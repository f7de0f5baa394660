package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trashure/kiosk/internal/account"
	"github.com/trashure/kiosk/internal/detect"
	"github.com/trashure/kiosk/internal/kiosk"
	"github.com/trashure/kiosk/internal/metrics"
	"github.com/trashure/kiosk/internal/receipt"
	"github.com/trashure/kiosk/internal/scan"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("trashure-kiosk")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		kioskID        = fs.StringLong("kiosk-id", "kiosk_001", "Kiosk identity embedded in receipts")
		secret         = fs.StringLong("secret", "", "Receipt signing secret (or set TRASHURE_KIOSK_SECRET env var)")
		dbPath         = fs.StringLong("db", "trashure-kiosk.db", "Receipt archive database file path")
		imagesPath     = fs.StringLong("images", "./receipts", "Rendered receipt QR image directory")
		detectorType   = fs.StringLong("detector", "gemini", "Detector type: 'gemini' or 'ollama'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.0-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		cameraURL      = fs.StringLong("camera-url", "http://localhost:8081/frame", "Camera snapshot endpoint URL")
		accountURL     = fs.StringLong("account-url", "", "Account service base URL (empty disables crediting)")
		pointsPerItem  = fs.IntLong("points-per-item", 10, "Points awarded per confirmed item")
		countdownTicks = fs.IntLong("countdown", 3, "Countdown ticks before an item is confirmed")
		sampleInterval = fs.DurationLong("sample-interval", 500*time.Millisecond, "Detector sampling cadence")
		idleTimeout    = fs.DurationLong("idle-timeout", 60*time.Second, "Session idle timeout")
		qrSize         = fs.IntLong("qr-size", 400, "Rendered receipt QR image size in pixels")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username for archive endpoints (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password for archive endpoints (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("TRASHURE_KIOSK"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// The signing secret is a startup requirement: a kiosk that cannot sign
	// receipts must not accept sessions.
	signingSecret := *secret
	if signingSecret == "" {
		signingSecret = os.Getenv("TRASHURE_KIOSK_SECRET")
	}
	if signingSecret == "" {
		slog.Error("Signing secret is required. Set --secret flag or TRASHURE_KIOSK_SECRET environment variable")
		os.Exit(1)
	}

	signer, err := receipt.NewSigner([]byte(signingSecret))
	if err != nil {
		slog.Error("Failed to initialize signer", "error", err)
		os.Exit(1)
	}

	// Initialize camera frame source
	frames, err := detect.NewHTTPFrameSource(*cameraURL)
	if err != nil {
		slog.Error("Failed to initialize camera frame source", "error", err)
		os.Exit(1)
	}

	// Initialize detector based on type
	var detector detect.Detector
	switch *detectorType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini detector...", "model", *geminiModel)
		detector, err = detect.NewGemini(apiKey, *geminiModel, frames, detect.DefaultPolicy())
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama detector...", "url", *ollamaURL, "model", *ollamaModel)
		detector, err = detect.NewOllama(*ollamaURL, *ollamaModel, frames, detect.DefaultPolicy())
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid detector type", "type", *detectorType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer detector.Close()

	// Initialize receipt archive
	slog.Info("Initializing receipt archive...")
	archive, err := receipt.NewBoltArchive(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize receipt archive", "error", err)
		os.Exit(1)
	}
	defer archive.Close()

	// Initialize QR image store
	images, err := receipt.NewLocalImageStore(*imagesPath)
	if err != nil {
		slog.Error("Failed to initialize image store", "error", err)
		os.Exit(1)
	}

	// Initialize account service (optional)
	var accounts account.Service
	if *accountURL != "" {
		accounts, err = account.NewClient(*accountURL)
		if err != nil {
			slog.Error("Failed to initialize account client", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("No account service configured; sessions run as guest")
	}

	// Initialize metrics
	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	// Initialize kiosk service
	cfg := kiosk.Config{
		KioskID:       *kioskID,
		PointsPerItem: *pointsPerItem,
		IdleTimeout:   *idleTimeout,
		Scan: scan.Config{
			CountdownTicks: *countdownTicks,
			SampleInterval: *sampleInterval,
		},
	}
	service := kiosk.NewService(cfg, detector, accounts, signer, receipt.NewQREncoder(*qrSize), archive, images)

	// Initialize server
	basicAuth := kiosk.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := kiosk.NewServer(service, basicAuth, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Kiosk started", "address", fmt.Sprintf("http://localhost%s", addr), "kiosk", *kioskID)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	if err := service.Close(); err != nil {
		slog.Error("Error finalizing session during shutdown", "error", err)
	}
}
