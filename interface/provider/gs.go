package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube/interface/storage/gcs"
	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/service"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
)

// GSPublicSentinel2L2A is the pattern of the L2A products in the public Sentinel-2 bucket of Google
const GSPublicSentinel2L2A = "gs://gcp-public-data-sentinel-2/L2/tiles/{LATITUDE_BAND}/{GRID_SQUARE}/{GRANULE_ID}/{SCENE}.SAFE"

// gsDownloadWorkers is the number of objects downloaded in parallel
const gsDownloadWorkers = 5

// GSImageProvider implements ImageProvider for Google Storage buckets mirroring the archive
type GSImageProvider struct {
	buckets []string
}

// Name implements ImageProvider
func (ip *GSImageProvider) Name() string {
	return "GoogleStorage"
}

// NewGSImageProvider creates a new ImageProvider from Google Storage buckets
// A bucket is a pattern containing {IDENTIFIER}s replaced according to the information found in the product name
// IDENTIFIER must be one of SCENE, MISSION_ID, PRODUCT_LEVEL, DATE(YEAR/MONTH/DAY), TIME(HOUR/MINUTE/SECOND), PDGS, ORBIT, TILE (LATITUDE_BAND/GRID_SQUARE/GRANULE_ID)
// The pattern can contain "*" and "?" wildcards (the first matching blob is used)
// If the pattern ends with .zip, the zip file is downloaded, otherwise the directory is downloaded as <name>.SAFE
func NewGSImageProvider(buckets ...string) *GSImageProvider {
	return &GSImageProvider{buckets: buckets}
}

// Download implements ImageProvider
func (ip *GSImageProvider) Download(ctx context.Context, product common.Product, localDir string) error {
	format, err := common.Info(product.Name)
	if err != nil {
		return fmt.Errorf("GSImageProvider: %w", err)
	}

	err = ErrProductNotFound{product.Name}
	for _, bucket := range ip.buckets {
		url := common.FormatBrackets(bucket, format)
		e := func() error {
			if strings.ContainsAny(url, "*?") {
				var err error
				if url, err = findBlob(ctx, url); err != nil {
					return err
				}
			}
			if filepath.Ext(url) == "."+string(service.ExtensionZIP) {
				return downloadZip(ctx, url, filepath.Join(localDir, service.ProductFileName(product, service.ExtensionZIP)))
			}
			dstDir := filepath.Join(localDir, service.ProductFileName(product, service.ExtensionSAFE))
			if files, err := downloadDirectory(ctx, url, dstDir); err != nil {
				os.RemoveAll(dstDir)
				return err
			} else if len(files) == 0 {
				os.RemoveAll(dstDir)
				return ErrProductNotFound{url}
			}
			return nil
		}()
		if e != nil {
			e = fmt.Errorf("GSImageProvider[%s].%w", url, e)
		}
		if err = service.MergeErrors(false, err, e); err == nil {
			break
		}
	}
	return err
}

// findBlob returns the first blob that matches the url pattern
func findBlob(ctx context.Context, url string) (string, error) {
	bucket, blob, err := gcs.Parse(url)
	if err != nil {
		return "", fmt.Errorf("findBlob: %w", err)
	}
	gsClient, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("findBlob.NewClient: %w", err)
	}
	defer gsClient.Close()
	// Create a regexp from blob, replacing "*" by ".*" and "?" by "."
	blobRe := strings.ReplaceAll(strings.ReplaceAll(regexp.QuoteMeta(blob), "\\*", ".*"), "\\?", ".")
	re, err := regexp.Compile(blobRe)
	if err != nil {
		return "", fmt.Errorf("findBlob.Compile[%s]: %w", blobRe, err)
	}
	// Extract the prefix
	if i := strings.IndexAny(blob, "*?"); i != -1 {
		blob = blob[:i]
	}
	it := gsClient.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: blob})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", service.MakeTemporary(fmt.Errorf("findBlob.List[%s/%s*]: %w", bucket, blob, err))
		}
		if idx := re.FindStringIndex(attrs.Name); idx != nil && idx[0] == 0 {
			return "gs://" + bucket + "/" + attrs.Name[:idx[1]], nil
		}
	}
	return "", ErrProductNotFound{url}
}

// downloadDirectory fetches all objects prefixed by uri to dstDir
// It returns the list of the files that were created
func downloadDirectory(ctx context.Context, uri string, dstDir string) ([]string, error) {
	gs, err := gcs.NewGsStrategy(ctx)
	if err != nil {
		return nil, fmt.Errorf("downloadDirectory: %w", err)
	}
	bucket, prefix, err := gcs.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("downloadDirectory: %w", err)
	}
	if len(bucket) == 0 {
		return nil, fmt.Errorf("downloadDirectory: missing bucket")
	}
	prefix = strings.TrimRight(prefix, "/") + "/"

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("downloadDirectory.NewClient: %w", err)
	}
	defer client.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(gsDownloadWorkers)
	var files []string
	q := &storage.Query{Prefix: prefix}
	if err := q.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, fmt.Errorf("downloadDirectory.SetAttrSelection: %w", err)
	}
	it := client.Bucket(bucket).Objects(gctx, q)
	for {
		attrs, iterr := it.Next()
		if iterr == iterator.Done {
			break
		}
		if iterr != nil {
			g.Wait()
			return nil, service.MakeTemporary(fmt.Errorf("downloadDirectory.Iterate: %w", iterr))
		}
		filename := strings.TrimPrefix(attrs.Name, prefix)
		if filename == "" || strings.HasSuffix(filename, "/") || strings.HasSuffix(filename, "_$folder$") {
			continue
		}
		file := filepath.Join(dstDir, filepath.FromSlash(filename))
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			g.Wait()
			return nil, fmt.Errorf("downloadDirectory.MkdirAll: %w", err)
		}
		object := bucket + "/" + attrs.Name
		g.Go(func() error {
			if err := gs.DownloadToFile(gctx, object, file); err != nil {
				return service.MakeTemporary(fmt.Errorf("downloadDirectory.DownloadToFile[%s]: %w", object, err))
			}
			return nil
		})
		files = append(files, file)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// downloadZip to localZip
func downloadZip(ctx context.Context, uri string, localZip string) error {
	gs, err := gcs.NewGsStrategy(ctx)
	if err != nil {
		return fmt.Errorf("downloadZip.NewGsStrategy: %w", err)
	}
	if err := gs.DownloadToFile(ctx, uri, localZip); err != nil {
		os.Remove(localZip)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrProductNotFound{uri}
		}
		return service.MakeTemporary(fmt.Errorf("downloadZip.%w", err))
	}
	return nil
}
