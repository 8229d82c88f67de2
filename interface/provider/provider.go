package provider

import (
	"context"

	"github.com/airbusgeo/s2-acquisition/common"
)

// ImageProvider is the interface of a product download service
type ImageProvider interface {
	// Download a product to the given localDir
	// The product is stored as localDir/<name>.zip or as an unarchived localDir/<name>.SAFE directory
	// Raise ErrProductNotFound if the provider does not have the product
	Download(ctx context.Context, product common.Product, localDir string) error

	// Name of the provider
	Name() string
}
