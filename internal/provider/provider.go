package provider

import (
	"context"
	"errors"

	"github.com/mkline/orimg/pkg/models"
)

var (
	ErrAPIKeyRequired   = errors.New("API key is required")
	ErrGenerationFailed = errors.New("image generation failed")
)

// Provider submits generation requests and answers catalog queries. The
// transport is a black box from the caller's perspective: it either returns
// a result or an error carrying the remote message.
type Provider interface {
	Generate(ctx context.Context, req *models.Request) (*models.Response, error)
	ListImageModels(ctx context.Context) ([]models.ModelInfo, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	TimeoutSec int
}
