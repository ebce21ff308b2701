package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// FileSystemSink saves raw rendered markup to disk for diagnostics. One file
// per dump, named <site>_<suffix>_<timestamp>.html.
type FileSystemSink struct {
	root     string
	maxBytes int64
	logger   *zap.Logger
}

// NewFileSystemSink returns a sink rooted at dir.
func NewFileSystemSink(root string, maxBytes int64, logger *zap.Logger) (*FileSystemSink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create raw dump dir %s: %w", root, err)
	}
	return &FileSystemSink{
		root:     root,
		maxBytes: maxBytes,
		logger:   logger,
	}, nil
}

// SaveRaw writes one markup snapshot and returns the file path.
func (s *FileSystemSink) SaveRaw(ctx context.Context, siteName, suffix, markup string) (string, error) {
	if markup == "" {
		return "", fmt.Errorf("empty markup for site %s", siteName)
	}
	if int64(len(markup)) > s.maxBytes {
		return "", fmt.Errorf("markup size %d exceeds max %d", len(markup), s.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s.html", sanitize(siteName), sanitize(suffix), time.Now().UTC().Format("20060102T150405"))
	target := filepath.Join(s.root, name)
	if err := os.WriteFile(target, []byte(markup), 0o600); err != nil {
		return "", fmt.Errorf("write raw markup %s: %w", target, err)
	}
	s.logger.Debug("Raw markup saved", zap.String("site", siteName), zap.String("path", target))
	return target, nil
}

// sanitize keeps dump file names shell-friendly.
func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
