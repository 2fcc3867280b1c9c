package config

import (
	"errors"
	"fmt"
	"strings"
)

// Requirement selects which external services a surface needs configured.
type Requirement uint8

const (
	NeedDatabase Requirement = 1 << iota
	NeedQueue
	NeedLLM
	NeedStorage
)

// Surfaces.
const (
	NeedAPI    = NeedDatabase | NeedQueue | NeedLLM | NeedStorage
	NeedWorker = NeedDatabase | NeedQueue | NeedLLM | NeedStorage
	NeedNone   Requirement = 0
)

// Validate checks ranges and the settings required by need.
func (c *Config) Validate(need Requirement) error {
	var errs []error

	if c.Sandbox.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("sandbox.timeout_seconds must be positive"))
	}
	if c.Sandbox.MaxArtifactMB <= 0 {
		errs = append(errs, errors.New("sandbox.max_artifact_mb must be positive"))
	}
	if c.Sandbox.MaxAttempts < 1 || c.Sandbox.MaxAttempts > 5 {
		errs = append(errs, fmt.Errorf("sandbox.max_attempts must be between 1 and 5, got %d", c.Sandbox.MaxAttempts))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, errors.New("llm.temperature must be between 0 and 2"))
	}

	if need&NeedDatabase != 0 && c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required (DATABASE_URL)"))
	}
	if need&NeedQueue != 0 && c.Queue.RedisAddr == "" {
		errs = append(errs, errors.New("queue.redis_addr is required (REDIS_ADDR)"))
	}
	if need&NeedLLM != 0 && c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key is required (LLM_API_KEY)"))
	}
	if need&NeedStorage != 0 {
		errs = append(errs, c.validateStorage()...)
	}
	return errors.Join(errs...)
}

func (c *Config) validateStorage() []error {
	s := c.Storage
	switch strings.ToLower(s.Provider) {
	case "s3":
		if s.Bucket == "" {
			return []error{errors.New("storage.bucket is required for s3 (S3_BUCKET)")}
		}
	case "localfs":
		if s.LocalRoot == "" {
			return []error{errors.New("storage.local_root is required for localfs")}
		}
		if s.Bucket == "" {
			return []error{errors.New("storage.bucket is required for localfs")}
		}
	case "gdrive":
		var errs []error
		if s.GDrive.ClientID == "" || s.GDrive.ClientSecret == "" || s.GDrive.RefreshToken == "" {
			errs = append(errs, errors.New("storage.gdrive client_id, client_secret and refresh_token are required"))
		}
		if s.Bucket == "" && s.GDrive.FolderID == "" {
			errs = append(errs, errors.New("storage.bucket or storage.gdrive.folder_id is required for gdrive"))
		}
		return errs
	default:
		return []error{fmt.Errorf("unknown storage provider %q", s.Provider)}
	}
	return nil
}
