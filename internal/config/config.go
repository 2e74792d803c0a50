package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is everything the client reads at startup. Values come from the
// JSON config file when present; TMS_* environment variables take
// precedence either way.
type Config struct {
	APIBaseURL     string `json:"api_base_url" env:"TMS_API_BASE_URL" env-default:"http://localhost:8000"`
	RequestTimeout int    `json:"request_timeout_secs" env:"TMS_REQUEST_TIMEOUT_SECS" env-default:"15"`
	PageSize       int    `json:"page_size" env:"TMS_PAGE_SIZE" env-default:"10"`
	DebounceMs     int    `json:"debounce_ms" env:"TMS_DEBOUNCE_MS" env-default:"400"`
	SessionPath    string `json:"session_path" env:"TMS_SESSION_PATH"`
	LogPath        string `json:"log_path" env:"TMS_LOG_PATH"`
	LogLevel       string `json:"log_level" env:"TMS_LOG_LEVEL" env-default:"info"`
	WebEnabled     bool   `json:"web_enabled" env:"TMS_WEB_ENABLED"`
	WebPort        int    `json:"web_port" env:"TMS_WEB_PORT" env-default:"8080"`
}

func Default() Config {
	return Config{
		APIBaseURL:     "http://localhost:8000",
		RequestTimeout: 15,
		PageSize:       10,
		DebounceMs:     400,
		LogLevel:       "info",
		WebPort:        8080,
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "tms", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// Load reads the config file at path and applies TMS_* overrides on top. A
// missing file is not an error, defaults plus environment still apply. A
// .env file in the working directory is folded into the environment first.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return Config{}, err
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read environment: %w", err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Timeout is the per-request HTTP deadline.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Debounce is how long search keystrokes coalesce before a fetch fires.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}
