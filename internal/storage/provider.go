// Package storage хранит сгенерированные презентации. Ключ: "<userID>/<file>".
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"slidecraft/config"
)

// Provider: любой бэкенд хранения готовых файлов.
type Provider interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// Object: содержимое файла независимо от бэкенда. Body закрывает вызывающий.
type Object struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	LastModified  time.Time
}

// Key собирает ключ владельца.
func Key(userID, filename string) string {
	return userID + "/" + filename
}

// cleanKey отсекает абсолютные пути и выход за корень через "..".
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))[1:]
	if k == "" || k == "." || strings.HasPrefix(k, "../") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return k, nil
}

// New выбирает провайдера по storage.provider.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.Storage.Provider {
	case "", "local":
		return NewLocalProvider(cfg.Storage.LocalRoot)
	case "s3":
		s := cfg.Storage.S3
		return NewS3Provider(ctx, S3Options{
			Bucket:          s.Bucket,
			Region:          s.Region,
			Endpoint:        s.Endpoint,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Storage.Provider)
	}
}
