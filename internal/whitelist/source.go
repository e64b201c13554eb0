package whitelist

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/raaihank/trace-sentinel/internal/config"
	"go.uber.org/zap"
)

// NewSource builds the source selected in configuration. It returns a nil
// source for "none".
func NewSource(ctx context.Context, cfg config.WhitelistConfig, logger *zap.Logger) (Source, error) {
	switch cfg.Source {
	case "", "none":
		logger.Info("No whitelist source configured; every finding will be reported")
		return nil, nil
	case "file":
		return NewFileSource(cfg.File.Path), nil
	case "s3":
		return NewS3Source(ctx, cfg.S3, logger)
	case "redis":
		return NewRedisSource(cfg.Redis, logger)
	case "postgres":
		return NewPostgresSource(cfg.Postgres, logger)
	default:
		return nil, fmt.Errorf("unknown whitelist source: %s", cfg.Source)
	}
}

// FileSource reads the whitelist from a local file on every refresh
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string {
	return "file://" + s.path
}

func (s *FileSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(s.path)
}

// maskURL hides the password of a connection URL for logging
func maskURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
