package display

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/mkline/orimg/pkg/models"
)

const downloadTimeout = 60 * time.Second

// Displayer renders generated images inline using the Kitty graphics
// protocol.
type Displayer struct {
	out        io.Writer
	httpClient *http.Client
}

func New(out io.Writer) *Displayer {
	return &Displayer{
		out: out,
		httpClient: &http.Client{
			Timeout: downloadTimeout,
		},
	}
}

func (d *Displayer) Display(ctx context.Context, img *models.GeneratedImage) error {
	data, err := d.imageData(ctx, img)
	if err != nil {
		return err
	}

	if err := encodeKitty(d.out, data); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	fmt.Fprintln(d.out)
	return nil
}

func (d *Displayer) DisplayAll(ctx context.Context, resp *models.Response) error {
	for i := range resp.Images {
		if err := d.Display(ctx, &resp.Images[i]); err != nil {
			return fmt.Errorf("failed to display image %d: %w", i+1, err)
		}
	}
	return nil
}

func (d *Displayer) imageData(ctx context.Context, img *models.GeneratedImage) ([]byte, error) {
	if len(img.Data) > 0 {
		return img.Data, nil
	}
	if img.URL == "" {
		return nil, fmt.Errorf("image has no data or URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, img.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// IsTerminalSupported reports whether stdout is a terminal that understands
// the Kitty graphics protocol.
func IsTerminalSupported() bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return false
	}

	termProgram := strings.ToLower(os.Getenv("TERM_PROGRAM"))
	for _, prog := range []string{"kitty", "ghostty", "iterm.app", "wezterm"} {
		if termProgram == prog {
			return true
		}
	}

	if os.Getenv("KITTY_WINDOW_ID") != "" {
		return true
	}
	if os.Getenv("ITERM_SESSION_ID") != "" {
		return true
	}
	return strings.Contains(os.Getenv("TERM"), "kitty")
}
