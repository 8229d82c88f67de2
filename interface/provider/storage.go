package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/service"
)

// StorageImageProvider implements ImageProvider for products already exported to a storage
// (local path or gs://bucket/prefix, with the layout of service.Storage)
type StorageImageProvider struct {
	uri     string
	storage service.Storage
}

// NewStorageImageProvider creates a new ImageProvider from a storage
func NewStorageImageProvider(ctx context.Context, storageURI string) (*StorageImageProvider, error) {
	s, err := service.NewStorageStrategy(ctx, storageURI)
	if err != nil {
		return nil, fmt.Errorf("NewStorageImageProvider.%w", err)
	}
	return &StorageImageProvider{uri: storageURI, storage: s}, nil
}

// Name implements ImageProvider
func (ip *StorageImageProvider) Name() string {
	return "Storage (" + ip.uri + ")"
}

// Download implements ImageProvider
func (ip *StorageImageProvider) Download(ctx context.Context, product common.Product, localDir string) error {
	if err := ip.storage.ImportProduct(ctx, product, localDir); err != nil {
		if errors.As(err, &service.ErrFileNotFound{}) {
			return ErrProductNotFound{product.Name}
		}
		return fmt.Errorf("StorageImageProvider.%w", err)
	}
	return nil
}
