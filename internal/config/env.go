package config

import (
	"os"
	"strconv"
	"strings"
)

func (c *Config) applyEnv() {
	setString(&c.HTTP.Port, "HTTP_PORT")
	setCSV(&c.HTTP.CORSAllowedOrigins, "CORS_ALLOWED_ORIGINS")
	setInt(&c.HTTP.GenerateTimeoutSeconds, "GENERATE_TIMEOUT_SECONDS")
	setString(&c.HTTP.MetricsPort, "WORKER_METRICS_PORT")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setBool(&c.Logging.AddSource, "LOG_SOURCE")

	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Queue.RedisAddr, "REDIS_ADDR")
	setString(&c.Queue.Name, "NARRATION_QUEUE_NAME")

	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.LLM.Model, "LLM_MODEL")
	setFloat32(&c.LLM.Temperature, "LLM_TEMPERATURE")
	setString(&c.LLM.SpeechAPIKey, "OPENAI_API_KEY")
	setString(&c.LLM.SpeechBaseURL, "SPEECH_BASE_URL")
	setString(&c.LLM.SpeechModel, "SPEECH_MODEL")
	setString(&c.LLM.Voice, "SPEECH_VOICE")

	setString(&c.Sandbox.DockerBinary, "DOCKER_BINARY")
	setString(&c.Sandbox.Image, "MANIM_IMAGE")
	setString(&c.Sandbox.WorkRoot, "RENDER_WORK_ROOT")
	setInt(&c.Sandbox.TimeoutSeconds, "RENDER_TIMEOUT_SECONDS")
	setFloat64(&c.Sandbox.MaxArtifactMB, "RENDER_MAX_ARTIFACT_MB")
	setString(&c.Sandbox.QualityFlag, "RENDER_QUALITY_FLAG")
	setInt(&c.Sandbox.MaxAttempts, "RENDER_MAX_ATTEMPTS")

	setString(&c.Media.FFmpegBinary, "FFMPEG_BINARY")
	setString(&c.Media.FFprobeBinary, "FFPROBE_BINARY")
	setString(&c.Media.TempDir, "MEDIA_TEMP_DIR")

	setString(&c.Storage.Provider, "STORAGE_PROVIDER")
	setString(&c.Storage.Bucket, "S3_BUCKET")
	setString(&c.Storage.Region, "AWS_REGION")
	setString(&c.Storage.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&c.Storage.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.Storage.Endpoint, "S3_ENDPOINT")
	setString(&c.Storage.PublicHost, "STORAGE_PUBLIC_HOST")
	setString(&c.Storage.LocalRoot, "STORAGE_LOCAL_ROOT")
	setString(&c.Storage.GDrive.ClientID, "GDRIVE_CLIENT_ID")
	setString(&c.Storage.GDrive.ClientSecret, "GDRIVE_CLIENT_SECRET")
	setString(&c.Storage.GDrive.RefreshToken, "GDRIVE_REFRESH_TOKEN")
	setString(&c.Storage.GDrive.FolderID, "GDRIVE_FOLDER_ID")

	setString(&c.Narration.AudioDir, "NARRATION_AUDIO_DIR")
}

// Env returns the trimmed value of k, or def when unset or blank.
func Env(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setCSV(dst *[]string, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}

// Unparseable values leave the current setting untouched; Validate reports
// settings that end up out of range.
func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setFloat32(dst *float32, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*dst = float32(f)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
