// Package config loads scenecast settings from an optional TOML file overlaid
// by environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// PathEnv names the variable pointing at the optional TOML file.
const PathEnv = "SCENECAST_CONFIG"

type HTTP struct {
	Port               string   `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	// GenerateTimeoutSeconds bounds a whole chat generation request.
	GenerateTimeoutSeconds int `toml:"generate_timeout_seconds"`
	// MetricsPort is where the worker serves /metrics.
	MetricsPort string `toml:"metrics_port"`
}

type Logging struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	AddSource bool   `toml:"add_source"`
}

type Database struct {
	URL string `toml:"url"`
}

type Queue struct {
	RedisAddr string `toml:"redis_addr"`
	Name      string `toml:"name"`
}

// LLM configures the OpenAI-compatible endpoint used for code, narration
// scripts and speech.
type LLM struct {
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
	// SpeechBaseURL defaults to BaseURL when empty.
	SpeechBaseURL string `toml:"speech_base_url"`
	SpeechAPIKey  string `toml:"speech_api_key"`
	SpeechModel   string `toml:"speech_model"`
	Voice         string `toml:"voice"`
}

type Sandbox struct {
	DockerBinary   string  `toml:"docker_binary"`
	Image          string  `toml:"image"`
	WorkRoot       string  `toml:"work_root"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxArtifactMB  float64 `toml:"max_artifact_mb"`
	QualityFlag    string  `toml:"quality_flag"`
	MaxAttempts    int     `toml:"max_attempts"`
}

type Media struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	TempDir       string `toml:"temp_dir"`
}

type Storage struct {
	// Provider is one of s3, localfs, gdrive.
	Provider        string `toml:"provider"`
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	// Endpoint overrides the S3 endpoint, e.g. for MinIO.
	Endpoint string `toml:"endpoint"`
	// PublicHost is the host suffix used in returned locations.
	PublicHost string `toml:"public_host"`
	LocalRoot  string `toml:"local_root"`
	GDrive     GDrive `toml:"gdrive"`
}

type GDrive struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	FolderID     string `toml:"folder_id"`
}

type Narration struct {
	AudioDir string `toml:"audio_dir"`
}

// Config is the complete runtime configuration.
type Config struct {
	HTTP      HTTP      `toml:"http"`
	Logging   Logging   `toml:"logging"`
	Database  Database  `toml:"database"`
	Queue     Queue     `toml:"queue"`
	LLM       LLM       `toml:"llm"`
	Sandbox   Sandbox   `toml:"sandbox"`
	Media     Media     `toml:"media"`
	Storage   Storage   `toml:"storage"`
	Narration Narration `toml:"narration"`
}

// Load reads the file named by SCENECAST_CONFIG (if set and present), applies
// environment overrides and validates the result for the given surface.
func Load(need Requirement) (*Config, error) {
	return LoadFile(os.Getenv(PathEnv), need)
}

// LoadFile is Load with an explicit path. An empty or missing path is not an error.
func LoadFile(path string, need Requirement) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(need); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (s Sandbox) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (h HTTP) GenerateTimeout() time.Duration {
	return time.Duration(h.GenerateTimeoutSeconds) * time.Second
}

// SpeechEndpoint returns the base URL and key for speech synthesis.
func (l LLM) SpeechEndpoint() (baseURL, apiKey string) {
	baseURL, apiKey = l.SpeechBaseURL, l.SpeechAPIKey
	if baseURL == "" {
		baseURL = l.BaseURL
	}
	if apiKey == "" {
		apiKey = l.APIKey
	}
	return baseURL, apiKey
}
