package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where piyanutai stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// Secret signs access tokens
	Secret string
	// AllowedOrigins is the comma-separated CORS origin allowlist. Empty allows any origin.
	AllowedOrigins string

	// AI configuration. The pipeline receives these through typed client
	// constructors and never reads the environment itself.
	OpenAIAPIKey       string  // PIYANUTAI_OPENAI_API_KEY (legacy: OPENAI_API_KEY)
	OpenAIBaseURL      string  // PIYANUTAI_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	ChatModel          string  // PIYANUTAI_CHAT_MODEL (default: gpt-3.5-turbo; set to a fine-tuned model id in prod)
	TranscriptionModel string  // PIYANUTAI_TRANSCRIPTION_MODEL (default: whisper-1)
	SpeechModel        string  // PIYANUTAI_SPEECH_MODEL (default: tts-1)
	SpeechVoice        string  // PIYANUTAI_SPEECH_VOICE (default: nova)
	SpeechSpeed        float64 // PIYANUTAI_SPEECH_SPEED (default: 1.0)
	Language           string  // PIYANUTAI_LANGUAGE (default: th)
	Temperature        float32 // PIYANUTAI_TEMPERATURE (default: 0.7)
	MaxTokens          int     // PIYANUTAI_MAX_TOKENS (default: 3000)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// TempDir is where per-request audio uploads are staged. Files placed here
// live only for the duration of one pipeline call.
func (p *Profile) TempDir() string {
	return filepath.Join(p.Data, "tmp")
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
// Supports PIYANUTAI_* keys with legacy OPENAI_* fallbacks.
func (p *Profile) FromEnv() {
	getEnvWithFallback := func(newKey, legacyKey string) string {
		if val := os.Getenv(newKey); val != "" {
			return val
		}
		return os.Getenv(legacyKey)
	}

	p.OpenAIAPIKey = getEnvWithFallback("PIYANUTAI_OPENAI_API_KEY", "OPENAI_API_KEY")
	p.OpenAIBaseURL = getEnvOrDefault("PIYANUTAI_OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.ChatModel = getEnvWithFallback("PIYANUTAI_CHAT_MODEL", "OPENAI_FINE_TUNED_MODEL")
	if p.ChatModel == "" {
		p.ChatModel = "gpt-3.5-turbo"
	}
	p.TranscriptionModel = getEnvOrDefault("PIYANUTAI_TRANSCRIPTION_MODEL", "whisper-1")
	p.SpeechModel = getEnvOrDefault("PIYANUTAI_SPEECH_MODEL", "tts-1")
	p.SpeechVoice = getEnvOrDefault("PIYANUTAI_SPEECH_VOICE", "nova")
	p.Language = getEnvOrDefault("PIYANUTAI_LANGUAGE", "th")
	p.AllowedOrigins = os.Getenv("PIYANUTAI_ALLOWED_ORIGINS")
	if p.Secret == "" {
		p.Secret = os.Getenv("PIYANUTAI_SECRET")
	}

	p.SpeechSpeed = 1.0
	if v := os.Getenv("PIYANUTAI_SPEECH_SPEED"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			p.SpeechSpeed = f
		}
	}
	p.Temperature = 0.7
	if v := os.Getenv("PIYANUTAI_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil && f >= 0 {
			p.Temperature = float32(f)
		}
	}
	p.MaxTokens = 3000
	if v := os.Getenv("PIYANUTAI_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.MaxTokens = n
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/piyanutai"
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("piyanutai_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if err := os.MkdirAll(p.TempDir(), 0o750); err != nil {
		return errors.Wrapf(err, "unable to create temp dir %s", p.TempDir())
	}

	if p.Secret == "" {
		if p.Mode == "prod" {
			return errors.New("secret is required in prod mode, set PIYANUTAI_SECRET")
		}
		p.Secret = "piyanutai-insecure-dev-secret"
	}

	return nil
}
