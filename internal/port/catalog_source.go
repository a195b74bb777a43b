package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type CatalogSource interface {
	// LoadProducts reads the whole catalog. Partial results are never returned with a nil error.
	LoadProducts(ctx context.Context) ([]domain.Product, error)

	Name() string
}
