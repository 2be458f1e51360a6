package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage writes files into a directory served by the portal under /uploads/.
type LocalStorage struct {
	dir     string
	baseURL string
}

// NewLocalStorage ensures dir exists and returns a LocalStorage whose URLs are rooted at baseURL.
func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if dir == "" {
		return nil, errors.New("upload: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory files are written to.
func (l *LocalStorage) Dir() string {
	return l.dir
}

func validKey(key string) bool {
	return key != "" && key != "." && key != ".." && !strings.ContainsAny(key, `/\`)
}

func (l *LocalStorage) Put(ctx context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if !validKey(key) {
		return "", fmt.Errorf("upload: invalid key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(l.dir, key)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close file: %w", err)
	}
	return l.baseURL + "/uploads/" + url.PathEscape(key), nil
}

func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return fmt.Errorf("upload: invalid key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.dir, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}
