package request

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkline/orimg/pkg/models"
)

// Params are the caller-supplied generation settings.
type Params struct {
	Prompt      string
	Model       string
	AspectRatio string
	Size        string
}

// Assemble validates parameters and resolves the reference image paths into
// an outbound request. Validation runs first and reference files are read
// before any network call, so a bad invocation leaves no side effects.
func Assemble(params Params, referencePaths []string) (*models.Request, error) {
	req := models.NewRequest(params.Prompt)
	if params.Model != "" {
		req.Model = params.Model
	}
	req.AspectRatio = params.AspectRatio
	req.Size = params.Size

	if err := req.Validate(); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidAspectRatio):
			return nil, fmt.Errorf("%w: %q (valid: %s)", err, params.AspectRatio,
				strings.Join(models.ValidAspectRatios(), ", "))
		case errors.Is(err, models.ErrInvalidSize):
			return nil, fmt.Errorf("%w: %q (valid: %s)", err, params.Size,
				strings.Join(models.ValidSizes(), ", "))
		default:
			return nil, err
		}
	}

	refs, err := loadReferences(referencePaths)
	if err != nil {
		return nil, err
	}
	req.References = refs
	return req, nil
}

func loadReferences(paths []string) ([]models.ReferenceImage, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	refs := make([]models.ReferenceImage, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrReferenceUnreadable, path, err)
		}
		refs = append(refs, models.ReferenceImage{
			Path:     path,
			Data:     data,
			MIMEType: detectMIMEType(path, data),
		})
	}
	return refs, nil
}

// detectMIMEType sniffs the content and falls back to the file extension.
func detectMIMEType(path string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	if byExt := mime.TypeByExtension(filepath.Ext(path)); strings.HasPrefix(byExt, "image/") {
		return byExt
	}
	return "image/png"
}
