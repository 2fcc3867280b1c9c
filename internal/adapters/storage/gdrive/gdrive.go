package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"scenecast/internal/ports"
)

// Client implements ports.ObjectStore on Google Drive. A bucket is a folder
// ID and a key is the file name inside it, so rewriting a key updates the
// existing file instead of creating a sibling.
type Client struct {
	srv *drive.Service
	// defaultFolder is used when a caller passes an empty bucket.
	defaultFolder string
}

func NewClient(srv *drive.Service, defaultFolder string) *Client {
	return &Client{srv: srv, defaultFolder: defaultFolder}
}

func (c *Client) Provider() string { return "gdrive" }

func (c *Client) folder(bucket string) string {
	if bucket != "" {
		return bucket
	}
	return c.defaultFolder
}

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.Key == "" {
		return ports.PutObjectOutput{}, errors.New("gdrive: key is required")
	}
	folder := c.folder(in.Bucket)
	media := []googleapi.MediaOption{}
	if in.ContentType != "" {
		media = append(media, googleapi.ContentType(in.ContentType))
	}

	existing, err := c.find(ctx, folder, in.Key)
	switch {
	case err == nil:
		_, err = c.srv.Files.Update(existing.Id, &drive.File{}).
			Media(in.Reader, media...).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
	case errors.Is(err, ports.ErrObjectNotFound):
		file := &drive.File{Name: in.Key, MimeType: in.ContentType}
		if folder != "" {
			file.Parents = []string{folder}
		}
		_, err = c.srv.Files.Create(file).
			Media(in.Reader, media...).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
	}
	if err != nil {
		return ports.PutObjectOutput{}, mapErr("upload", in.Key, err)
	}
	return ports.PutObjectOutput{Bucket: folder, Key: in.Key, Size: in.Size}, nil
}

func (c *Client) HeadObject(ctx context.Context, bucket, key string) (ports.ObjectInfo, error) {
	f, err := c.find(ctx, c.folder(bucket), key)
	if err != nil {
		return ports.ObjectInfo{}, err
	}
	return ports.ObjectInfo{Size: f.Size, ContentType: f.MimeType}, nil
}

func (c *Client) GetObject(ctx context.Context, in ports.GetObjectInput) (io.ReadCloser, ports.ObjectInfo, error) {
	f, err := c.find(ctx, c.folder(in.Bucket), in.Key)
	if err != nil {
		return nil, ports.ObjectInfo{}, err
	}

	call := c.srv.Files.Get(f.Id).SupportsAllDrives(true).Context(ctx)
	if in.Range != nil {
		call.Header().Set("Range", in.Range.Header())
	}
	resp, err := call.Download()
	if err != nil {
		return nil, ports.ObjectInfo{}, mapErr("download", in.Key, err)
	}
	return resp.Body, ports.ObjectInfo{Size: f.Size, ContentType: f.MimeType}, nil
}

func (c *Client) find(ctx context.Context, folder, name string) (*drive.File, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(name))
	if folder != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(folder))
	}
	list, err := c.srv.Files.List().
		Q(q).
		Fields("files(id,name,size,mimeType)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapErr("lookup", name, err)
	}
	if len(list.Files) == 0 {
		return nil, fmt.Errorf("gdrive %s: %w", name, ports.ErrObjectNotFound)
	}
	return list.Files[0], nil
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func mapErr(op, key string, err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("gdrive %s %s: %w", op, key, ports.ErrObjectNotFound)
		case http.StatusUnauthorized:
			return fmt.Errorf("gdrive %s %s: %w: %v", op, key, ports.ErrCredentialsMissing, err)
		}
	}
	return fmt.Errorf("gdrive %s %s: %w", op, key, err)
}
