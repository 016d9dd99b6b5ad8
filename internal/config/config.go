package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
	DatabaseURL string `yaml:"databaseURL"`

	AudioCacheDir   string `yaml:"audioCacheDir"`
	WordsPerSegment int    `yaml:"wordsPerSegment"`
	MaxUploadBytes  int64  `yaml:"maxUploadBytes"`

	SessionRetentionHours      int `yaml:"sessionRetentionHours"`
	AudioMaxAgeHours           int `yaml:"audioMaxAgeHours"`
	MaintenanceIntervalMinutes int `yaml:"maintenanceIntervalMinutes"`

	SpeechEndpoint string `yaml:"speechEndpoint"`
	SpeechAPIKey   string `yaml:"speechAPIKey"`

	AIBaseURL         string `yaml:"aiBaseURL"`
	AIAPIKey          string `yaml:"aiAPIKey"`
	AIModel           string `yaml:"aiModel"`
	AskTimeoutSeconds int    `yaml:"askTimeoutSeconds"`

	MinioEndpoint    string `yaml:"minioEndpoint"`
	MinioAccessKey   string `yaml:"minioAccessKey"`
	MinioSecretKey   string `yaml:"minioSecretKey"`
	MinioBucket      string `yaml:"minioBucket"`
	MinioUseSSL      bool   `yaml:"minioUseSSL"`
	LocalStoragePath string `yaml:"localStoragePath"`

	RedisAddr          string `yaml:"redisAddr"`
	RedisPassword      string `yaml:"redisPassword"`
	RateLimitPerMinute int    `yaml:"rateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("AZURE_SPEECH_ENDPOINT"); v != "" {
		cfg.SpeechEndpoint = v
	}
	if v := os.Getenv("AZURE_SPEECH_KEY"); v != "" {
		cfg.SpeechAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.AIBaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AIAPIKey = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("READIT_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.WordsPerSegment <= 0 {
		cfg.WordsPerSegment = 100
	}
	if cfg.SessionRetentionHours <= 0 {
		cfg.SessionRetentionHours = 7 * 24
	}
	if cfg.AudioMaxAgeHours <= 0 {
		cfg.AudioMaxAgeHours = 24
	}
	if cfg.MaintenanceIntervalMinutes <= 0 {
		cfg.MaintenanceIntervalMinutes = 60
	}
	if cfg.AskTimeoutSeconds <= 0 {
		cfg.AskTimeoutSeconds = 30
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 * 1024 * 1024
	}
	if cfg.AudioCacheDir == "" {
		cfg.AudioCacheDir = "audio_cache"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.SpeechEndpoint == "" {
		return errors.New("config: speechEndpoint is required (set in config.yaml or AZURE_SPEECH_ENDPOINT)")
	}
	if cfg.SpeechAPIKey == "" {
		return errors.New("config: speechAPIKey is required (set in config.yaml or AZURE_SPEECH_KEY)")
	}
	if cfg.AIBaseURL == "" {
		return errors.New("config: aiBaseURL is required (set in config.yaml or OPENAI_BASE_URL)")
	}
	if cfg.AIModel == "" {
		return errors.New("config: aiModel is required (set in config.yaml)")
	}
	return nil
}
