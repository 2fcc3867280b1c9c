package storage

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"scenecast/internal/adapters/storage/gdrive"
	"scenecast/internal/adapters/storage/localfs"
	"scenecast/internal/adapters/storage/s3store"
	"scenecast/internal/config"
)

// NewStore builds the object store selected by cfg.Provider.
func NewStore(ctx context.Context, cfg config.Storage) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "s3":
		return s3store.Open(ctx, s3store.Config{
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Endpoint:        cfg.Endpoint,
		})
	case "localfs":
		return localfs.New(cfg.LocalRoot), nil
	case "gdrive":
		return newGDrive(ctx, cfg.GDrive)
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

// Bucket returns the bucket new artifacts are written to. Drive deployments
// may name only a folder.
func Bucket(cfg config.Storage) string {
	if cfg.Bucket == "" && strings.EqualFold(cfg.Provider, "gdrive") {
		return cfg.GDrive.FolderID
	}
	return cfg.Bucket
}

func newGDrive(ctx context.Context, cfg config.GDrive) (Store, error) {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}
	httpClient := conf.Client(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("gdrive service: %w", err)
	}
	return gdrive.NewClient(srv, cfg.FolderID), nil
}
