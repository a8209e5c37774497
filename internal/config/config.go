package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is read from the environment, usually populated from a .env
// file by the daemon.
type Config struct {
	// AI
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	// Speech
	WhisperModel    string
	WhisperLanguage string
	TTSCommand      string
	TTSVoice        string
	TTSRate         int
	DuckOthers      bool
	DuckFactor      float64
	BeepPath        string

	// Mail
	IMAPHost   string
	IMAPPort   int
	SMTPHost   string
	SMTPPort   int
	FetchLimit int

	// Users
	UsersDB       string
	FaceThreshold float64

	// Surfaces
	UIBusURL  string
	CtlSocket string
}

func Load() *Config {
	return &Config{
		OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		WhisperModel:    getEnv("WHISPER_MODEL", "models/ggml-base.en.bin"),
		WhisperLanguage: getEnv("WHISPER_LANGUAGE", "en"),
		TTSCommand:      getEnv("TTS_COMMAND", "espeak-ng"),
		TTSVoice:        getEnv("TTS_VOICE", "en-us"),
		TTSRate:         getEnvInt("TTS_RATE", 175),
		DuckOthers:      getEnvBool("DUCK_OTHERS", true),
		DuckFactor:      getEnvFloat("DUCK_FACTOR", 0.3),
		BeepPath:        getEnv("BEEP_PATH", "beep.mp3"),

		IMAPHost:   getEnv("IMAP_HOST", "imap.gmail.com"),
		IMAPPort:   getEnvInt("IMAP_PORT", 993),
		SMTPHost:   getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:   getEnvInt("SMTP_PORT", 587),
		FetchLimit: getEnvInt("FETCH_LIMIT", 10),

		UsersDB:       getEnv("USERS_DB", "users.db"),
		FaceThreshold: getEnvFloat("FACE_THRESHOLD", 0.4),

		UIBusURL:  getEnv("UI_BUS_URL", ""),
		CtlSocket: getEnv("CTL_SOCKET", "/tmp/swar.sock"),
	}
}

// Validate reports every bad value at once. A missing OpenAI key is not
// an error: the assistant then runs on the local rules only.
func (c *Config) Validate() error {
	var errs []error

	if c.WhisperModel == "" {
		errs = append(errs, errors.New("WHISPER_MODEL is required"))
	}
	if c.IMAPHost == "" || c.SMTPHost == "" {
		errs = append(errs, errors.New("IMAP_HOST and SMTP_HOST are required"))
	}
	for name, port := range map[string]int{"IMAP_PORT": c.IMAPPort, "SMTP_PORT": c.SMTPPort} {
		if port <= 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s out of range: %d", name, port))
		}
	}
	if c.FetchLimit <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_LIMIT must be positive: %d", c.FetchLimit))
	}
	if c.DuckFactor < 0 || c.DuckFactor > 1 {
		errs = append(errs, fmt.Errorf("DUCK_FACTOR must be within [0, 1]: %v", c.DuckFactor))
	}
	if c.FaceThreshold <= 0 || c.FaceThreshold > 1 {
		errs = append(errs, fmt.Errorf("FACE_THRESHOLD must be within (0, 1]: %v", c.FaceThreshold))
	}

	return errors.Join(errs...)
}

// HasAI reports whether the remote model can be used.
func (c *Config) HasAI() bool {
	return c.OpenAIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
