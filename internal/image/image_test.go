package image

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkline/orimg/pkg/models"
)

func testSaver(t *testing.T) (*Saver, string) {
	t.Helper()
	dir := t.TempDir()
	saver := NewSaverWithDir(dir)
	saver.now = func() time.Time {
		return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	}
	return saver, dir
}

func TestSaveAll_Data(t *testing.T) {
	saver, dir := testSaver(t)

	resp := &models.Response{
		Images: []models.GeneratedImage{
			{Data: []byte("png bytes"), MIMEType: "image/png"},
		},
	}

	paths, err := saver.SaveAll(context.Background(), resp, "")
	if err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("SaveAll() returned %d paths, want 1", len(paths))
	}

	want := filepath.Join(dir, "image-20250314-092653.png")
	if paths[0] != want {
		t.Errorf("SaveAll() path = %q, want %q", paths[0], want)
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	if string(data) != "png bytes" {
		t.Errorf("saved content = %q", data)
	}
}

func TestSaveAll_MultipleImages(t *testing.T) {
	saver, dir := testSaver(t)

	resp := &models.Response{
		Images: []models.GeneratedImage{
			{Data: []byte("one"), MIMEType: "image/png"},
			{Data: []byte("two"), MIMEType: "image/jpeg"},
		},
	}

	paths, err := saver.SaveAll(context.Background(), resp, "")
	if err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}

	want := []string{
		filepath.Join(dir, "image-20250314-092653.png"),
		filepath.Join(dir, "image-20250314-092653-2.jpg"),
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestSaveAll_NameOverride(t *testing.T) {
	saver, dir := testSaver(t)

	tests := []struct {
		name     string
		override string
		images   int
		want     []string
	}{
		{
			name:     "bare name joins output dir",
			override: "sunset",
			images:   1,
			want:     []string{filepath.Join(dir, "sunset.png")},
		},
		{
			name:     "extension kept",
			override: "sunset.webp",
			images:   1,
			want:     []string{filepath.Join(dir, "sunset.webp")},
		},
		{
			name:     "suffix on later images",
			override: "pair",
			images:   2,
			want: []string{
				filepath.Join(dir, "pair.png"),
				filepath.Join(dir, "pair-2.png"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &models.Response{}
			for i := 0; i < tt.images; i++ {
				resp.Images = append(resp.Images, models.GeneratedImage{
					Data: []byte("x"), MIMEType: "image/png",
				})
			}

			paths, err := saver.SaveAll(context.Background(), resp, tt.override)
			if err != nil {
				t.Fatalf("SaveAll() error = %v", err)
			}
			for i := range tt.want {
				if paths[i] != tt.want[i] {
					t.Errorf("path %d = %q, want %q", i, paths[i], tt.want[i])
				}
			}
		})
	}
}

func TestSaveAll_OverrideWithPathUsedVerbatim(t *testing.T) {
	saver, _ := testSaver(t)

	dest := filepath.Join(t.TempDir(), "out.png")
	resp := &models.Response{
		Images: []models.GeneratedImage{{Data: []byte("x"), MIMEType: "image/png"}},
	}

	paths, err := saver.SaveAll(context.Background(), resp, dest)
	if err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	if paths[0] != dest {
		t.Errorf("SaveAll() path = %q, want %q", paths[0], dest)
	}
}

func TestSaveAll_DownloadsURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote bytes"))
	}))
	defer server.Close()

	saver, _ := testSaver(t)

	resp := &models.Response{
		Images: []models.GeneratedImage{{URL: server.URL, MIMEType: "image/png"}},
	}

	paths, err := saver.SaveAll(context.Background(), resp, "")
	if err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "remote bytes" {
		t.Errorf("downloaded content = %q", data)
	}
}

func TestSaveAll_DownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	saver, _ := testSaver(t)

	resp := &models.Response{
		Images: []models.GeneratedImage{{URL: server.URL}},
	}

	if _, err := saver.SaveAll(context.Background(), resp, ""); err == nil {
		t.Fatal("SaveAll() error = nil, want download error")
	}
}

func TestSaveAll_NoDataOrURL(t *testing.T) {
	saver, _ := testSaver(t)

	resp := &models.Response{Images: []models.GeneratedImage{{}}}
	if _, err := saver.SaveAll(context.Background(), resp, ""); err == nil {
		t.Fatal("SaveAll() error = nil, want error")
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/png", ".png"},
		{"image/jpeg", ".jpg"},
		{"image/webp", ".webp"},
		{"", ".png"},
		{"application/octet-stream", ".png"},
	}
	for _, tt := range tests {
		if got := extensionFor(tt.mime); got != tt.want {
			t.Errorf("extensionFor(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestCopyFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.png")
	if err := os.WriteFile(src, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "nested", "dir", "dst.png")
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile() error = %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "content" {
		t.Errorf("copied content = %q", data)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "dst.png")
	if err := CopyFile(filepath.Join(t.TempDir(), "missing.png"), dst); err == nil {
		t.Fatal("CopyFile() error = nil, want error")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("destination created despite missing source")
	}
}
