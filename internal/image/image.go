package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mkline/orimg/pkg/models"
)

// Saver writes generated images into the global output directory. Every
// generated image lands there regardless of session use; sessions keep their
// own copies.
type Saver struct {
	outDir     string
	httpClient *http.Client
	now        func() time.Time
}

func NewSaver() (*Saver, error) {
	dir, err := DefaultOutputDir()
	if err != nil {
		return nil, err
	}
	return NewSaverWithDir(dir), nil
}

func NewSaverWithDir(dir string) *Saver {
	return &Saver{
		outDir: dir,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		now: time.Now,
	}
}

// DefaultOutputDir is the XDG state output directory.
func DefaultOutputDir() (string, error) {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return filepath.Join(v, "orimg", "output"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "orimg", "output"), nil
}

// SaveAll writes every image in the response and returns the written paths
// in order. nameOverride replaces the timestamped base name; a second and
// later image get a numeric suffix.
func (s *Saver) SaveAll(ctx context.Context, resp *models.Response, nameOverride string) ([]string, error) {
	if err := os.MkdirAll(s.outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(resp.Images))
	for i := range resp.Images {
		path := s.imagePath(nameOverride, &resp.Images[i], i, len(resp.Images))
		if err := s.save(ctx, &resp.Images[i], path); err != nil {
			return paths, fmt.Errorf("failed to save image %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *Saver) save(ctx context.Context, img *models.GeneratedImage, path string) error {
	data := img.Data
	if len(data) == 0 {
		if img.URL == "" {
			return fmt.Errorf("no image data available")
		}
		downloaded, err := s.download(ctx, img.URL)
		if err != nil {
			return fmt.Errorf("failed to download image: %w", err)
		}
		data = downloaded
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (s *Saver) imagePath(nameOverride string, img *models.GeneratedImage, index, total int) string {
	if nameOverride != "" {
		path := nameOverride
		if !filepath.IsAbs(path) && !strings.ContainsRune(path, os.PathSeparator) {
			path = filepath.Join(s.outDir, path)
		}
		if filepath.Ext(path) == "" {
			path += extensionFor(img.MIMEType)
		}
		if total > 1 && index > 0 {
			ext := filepath.Ext(path)
			path = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), index+1, ext)
		}
		return path
	}

	timestamp := s.now().Format("20060102-150405")
	name := fmt.Sprintf("image-%s%s", timestamp, extensionFor(img.MIMEType))
	if index > 0 {
		name = fmt.Sprintf("image-%s-%d%s", timestamp, index+1, extensionFor(img.MIMEType))
	}
	return filepath.Join(s.outDir, name)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func (s *Saver) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// CopyFile copies src to dst, creating dst's directory if needed.
func CopyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
