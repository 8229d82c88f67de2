package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/interface/provider"
	"github.com/airbusgeo/s2-acquisition/service"
	"github.com/airbusgeo/s2-acquisition/service/log"
	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// The export to the storage is retried on temporary errors
const (
	exportTries   = 3
	exportBackoff = 5 * time.Second
)

// Downloader transfers products into a destination directory, using the first image provider that succeeds.
type Downloader struct {
	imageProviders []provider.ImageProvider
	destDir        string
	unarchive      bool
	storage        service.Storage
	command        []string
	parallel       int
}

// Option of the Downloader
type Option func(d *Downloader)

// WithUnarchive stores the products as <name>.SAFE directories instead of <name>.zip files
func WithUnarchive(unarchive bool) Option {
	return func(d *Downloader) { d.unarchive = unarchive }
}

// WithStorage exports each downloaded product to the storage
func WithStorage(s service.Storage) Option {
	return func(d *Downloader) { d.storage = s }
}

// WithPostDownloadCommand executes the command after each download, with the path of the product as last argument
func WithPostDownloadCommand(command ...string) Option {
	return func(d *Downloader) { d.command = command }
}

// WithParallelDownloads sets the number of products downloaded at the same time
func WithParallelDownloads(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.parallel = n
		}
	}
}

// New creates a Downloader storing the products in destDir
func New(destDir string, imageProviders []provider.ImageProvider, options ...Option) (*Downloader, error) {
	if len(imageProviders) == 0 {
		return nil, fmt.Errorf("downloader.New: no image provider")
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("downloader.New: %w", err)
	}
	d := &Downloader{
		imageProviders: imageProviders,
		destDir:        destDir,
		parallel:       1,
	}
	for _, o := range options {
		o(d)
	}
	return d, nil
}

// DownloadAll downloads all the products. A failure does not stop the download of the other products.
// If some products cannot be downloaded, it returns a *common.TransferError listing them.
func (d *Downloader) DownloadAll(ctx context.Context, products []common.Product) error {
	var mu sync.Mutex
	var failed []common.ProductID
	var errs []error

	g := errgroup.Group{}
	g.SetLimit(d.parallel)
	for _, product := range products {
		g.Go(func() error {
			if err := d.Download(ctx, product); err != nil {
				mu.Lock()
				failed = append(failed, product.ID)
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	if len(failed) > 0 {
		return &common.TransferError{Failed: failed, Err: errors.Join(errs...)}
	}
	return nil
}

// Path returns the path of the product in the destination directory (zip or SAFE) or an empty string if it is not downloaded
func (d *Downloader) Path(product common.Product) string {
	for _, ext := range []service.Extension{service.ExtensionSAFE, service.ExtensionZIP} {
		path := filepath.Join(d.destDir, service.ProductFileName(product, ext))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Download downloads the product into the destination directory.
// The product is first downloaded into a working directory, then moved, so that the destination
// directory only contains complete products.
func (d *Downloader) Download(ctx context.Context, product common.Product) error {
	ctx = log.With(ctx, "product", product.Name)
	if path := d.Path(product); path != "" {
		log.Logger(ctx).Sugar().Infof("%s already downloaded", path)
		return d.postProcess(ctx, product, path)
	}

	workdir := filepath.Join(d.destDir, ".download-"+uuid.New().String())
	if err := os.MkdirAll(workdir, 0755); err != nil {
		return service.MakeTemporary(fmt.Errorf("Download[%s]: make directory %s: %w", product.ID, workdir, err))
	}
	defer os.RemoveAll(workdir)

	// Download with the first successful imageProvider
	log.Logger(ctx).Sugar().Infof("downloading %s", product.Name)
	var err error
	for _, imageProvider := range d.imageProviders {
		e := imageProvider.Download(ctx, product, workdir)
		if err = service.MergeErrors(false, err, e); err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Logger(ctx).Sugar().Warnf("%s: %v", imageProvider.Name(), e)
	}
	if err != nil {
		return fmt.Errorf("Download[%s].ImageProviders.%w", product.ID, err)
	}

	localZip := filepath.Join(workdir, service.ProductFileName(product, service.ExtensionZIP))
	if d.unarchive {
		if _, err := os.Stat(localZip); err == nil {
			if err := provider.Unarchive(localZip, workdir); err != nil {
				return fmt.Errorf("Download[%s].%w", product.ID, err)
			}
			os.Remove(localZip)
		}
	}

	// Move the product into the destination directory
	var path string
	for _, ext := range []service.Extension{service.ExtensionSAFE, service.ExtensionZIP} {
		name := service.ProductFileName(product, ext)
		if _, err := os.Stat(filepath.Join(workdir, name)); err == nil {
			path = filepath.Join(d.destDir, name)
			if err := os.Rename(filepath.Join(workdir, name), path); err != nil {
				return service.MakeTemporary(fmt.Errorf("Download[%s].Rename: %w", product.ID, err))
			}
			break
		}
	}
	if path == "" {
		return fmt.Errorf("Download[%s]: %s not found after download", product.ID, service.ProductFileName(product, service.ExtensionZIP))
	}
	log.Logger(ctx).Sugar().Infof("%s downloaded", path)

	return d.postProcess(ctx, product, path)
}

// postProcess exports the product and executes the post-download command
func (d *Downloader) postProcess(ctx context.Context, product common.Product, path string) error {
	if d.storage != nil {
		var uri string
		err := service.Retriable(ctx, func() (err error) {
			uri, err = d.storage.SaveProduct(ctx, product, d.destDir)
			return err
		}, exportBackoff, exportTries)
		if err != nil {
			return fmt.Errorf("Download[%s].Export.%w", product.ID, err)
		}
		log.Logger(ctx).Sugar().Infof("%s exported to %s", product.Name, uri)
	}

	if len(d.command) > 0 {
		args := append(append([]string{}, d.command[1:]...), path)
		cmd := exec.Command(d.command[0], args...)
		cmd.Dir = d.destDir
		filter := log.KeywordFilter{"ERROR": zapcore.ErrorLevel, "WARN": zapcore.WarnLevel}
		if err := log.Exec(ctx, cmd, log.StdoutFilter(filter), log.StderrLevel(zapcore.WarnLevel)); err != nil {
			return fmt.Errorf("Download[%s].PostDownloadCommand[%s].%w", product.ID, d.command[0], err)
		}
	}
	return nil
}
