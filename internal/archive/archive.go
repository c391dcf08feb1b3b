// Package archive keeps a copy of every relayed chart in S3-compatible storage.
package archive

import (
	"context"
	"fmt"
	"mime"
	"time"

	"github.com/mikhail-angelov/zabbix-whatsapp/internal/config"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/logger"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/retention"
	"github.com/mikhail-angelov/zabbix-whatsapp/internal/s3"
)

const timestampFormat = "20060102150405"

// Uploader stores an object and returns its key.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Rotator prunes old objects.
type Rotator interface {
	Rotate(ctx context.Context) error
}

// Archiver uploads charts and rotates the archive afterwards.
type Archiver struct {
	uploader Uploader
	rotator  Rotator
	now      func() time.Time
	logf     logger.Logf
}

// New creates an Archiver. rotator may be nil.
func New(uploader Uploader, rotator Rotator, logf logger.Logf) *Archiver {
	return &Archiver{
		uploader: uploader,
		rotator:  rotator,
		now:      time.Now,
		logf:     logger.OrDiscard(logf),
	}
}

// NewS3 builds an Archiver backed by the bucket in cfg.
func NewS3(ctx context.Context, cfg *config.Config, logf logger.Logf) (*Archiver, error) {
	a := cfg.Archive
	client, err := s3.NewClient(ctx, a.Bucket, a.Region, a.Endpoint, a.AccessKeyID, a.SecretAccessKey, a.Prefix, cfg.Timeout())
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return New(client, retention.NewManager(client, a.Keep, logf), logf), nil
}

// Archive uploads data as graph-<graphID>_<timestamp><ext> and rotates old charts.
func (a *Archiver) Archive(ctx context.Context, graphID string, data []byte, contentType string) error {
	name := fmt.Sprintf("graph-%s_%s%s", graphID, a.now().UTC().Format(timestampFormat), extension(contentType))

	key, err := a.uploader.Upload(ctx, name, data, contentType)
	if err != nil {
		return err
	}
	a.logf("Chart archived as %s", key)

	if a.rotator == nil {
		return nil
	}
	return a.rotator.Rotate(ctx)
}

func extension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".bin"
	}
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".bin"
	}
}
