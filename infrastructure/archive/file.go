package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSink writes archive objects below a local directory. Each object gets
// a sibling ".meta.json" file holding its metadata.
type FileSink struct {
	basePath string
}

// NewFileSink creates the base directory if needed.
func NewFileSink(basePath string) (*FileSink, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &FileSink{basePath: basePath}, nil
}

// Name returns "file".
func (s *FileSink) Name() string { return "file" }

// Put writes body to basePath/key atomically.
func (s *FileSink) Put(ctx context.Context, key string, body io.Reader, meta Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create archive path: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".archive-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // #nosec G104 -- no-op once renamed

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close() // #nosec G104 -- error path
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("rename archive: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(target+".meta.json", data, 0o640); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *FileSink) Close() error { return nil }
