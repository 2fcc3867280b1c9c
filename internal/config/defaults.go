package config

import (
	"os"
	"path/filepath"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel         = "gemini-2.5-flash"
	DefaultImage         = "manimcommunity/manim"
)

// Default returns the configuration used before file and env overlays.
func Default() Config {
	tmp := os.TempDir()
	return Config{
		HTTP: HTTP{
			Port:                   "8080",
			CORSAllowedOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
			GenerateTimeoutSeconds: 900,
			MetricsPort:            "9090",
		},
		Logging: Logging{Level: "info", Format: "json"},
		Queue:   Queue{Name: "scenecast:narration"},
		LLM: LLM{
			BaseURL:     DefaultGeminiBaseURL,
			Model:       DefaultModel,
			Temperature: 0.3,
			SpeechModel: "tts-1",
			Voice:       "alloy",
		},
		Sandbox: Sandbox{
			DockerBinary:   "docker",
			Image:          DefaultImage,
			WorkRoot:       filepath.Join(tmp, "scenecast", "render"),
			TimeoutSeconds: 300,
			MaxArtifactMB:  10,
			QualityFlag:    "-qm",
			MaxAttempts:    2,
		},
		Media: Media{
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
			TempDir:       filepath.Join(tmp, "scenecast", "media"),
		},
		Storage: Storage{
			Provider:   "s3",
			Region:     "us-east-1",
			PublicHost: "s3.amazonaws.com",
			LocalRoot:  filepath.Join(tmp, "scenecast", "objects"),
		},
		Narration: Narration{AudioDir: filepath.Join(tmp, "scenecast", "audio")},
	}
}
