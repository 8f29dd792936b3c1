package catalog

import (
	"context"
	"fmt"

	"github.com/mkline/orimg/pkg/models"
)

// Lister is the remote side of the catalog, satisfied by the openrouter
// provider.
type Lister interface {
	ListImageModels(ctx context.Context) ([]models.ModelInfo, error)
}

// Catalog serves the image-model list, preferring a fresh local cache over a
// network round trip.
type Catalog struct {
	lister Lister
	cache  *Cache
}

func New(lister Lister, cache *Cache) *Catalog {
	return &Catalog{lister: lister, cache: cache}
}

// ImageModels returns the catalog, hitting the network only when the cache
// is missing, stale, or refresh is set. A failed cache write is not fatal;
// the fetched list is still returned.
func (c *Catalog) ImageModels(ctx context.Context, refresh bool) ([]models.ModelInfo, error) {
	if !refresh && c.cache != nil {
		if cached, ok := c.cache.Load(); ok {
			return cached, nil
		}
	}

	fetched, err := c.lister.ListImageModels(ctx)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Save(fetched)
	}
	return fetched, nil
}

// FormatPrice renders a per-image price for display.
func FormatPrice(info models.ModelInfo) string {
	if !info.PriceKnown {
		return "-"
	}
	if info.ImagePrice == 0 {
		return "free"
	}
	return fmt.Sprintf("$%.4f", info.ImagePrice)
}
