package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/service"
	"github.com/airbusgeo/s2-acquisition/service/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	// EODataEndpoint is the S3 endpoint of the Copernicus Data Space
	EODataEndpoint = "https://eodata.dataspace.copernicus.eu"
	// EODataBucket is the bucket of the Copernicus Data Space
	EODataBucket = "eodata"
	// EODataPrefix is the prefix of the SAFE directory of a Sentinel-2 product in the Copernicus Data Space
	EODataPrefix = "Sentinel-2/MSI/{PRODUCT_LEVEL}/{YEAR}/{MONTH}/{DAY}/{SCENE}.SAFE/"
)

// S3ImageProvider implements ImageProvider for SAFE directories stored in a S3 bucket
type S3ImageProvider struct {
	endpoint        string
	region          string
	bucket          string
	prefixPattern   string
	accessKeyID     string
	secretAccessKey string
	requestPayer    types.RequestPayer
}

// NewS3ImageProvider creates a new ImageProvider from a S3 bucket
// prefixPattern is the prefix of the SAFE directory of the product. It can contain several {IDENTIFIER} (see common.Info).
// endpoint is optional (default AWS endpoint)
func NewS3ImageProvider(endpoint, region, bucket, prefixPattern, accessKeyID, secretAccessKey string) *S3ImageProvider {
	if !strings.HasSuffix(prefixPattern, "/") {
		prefixPattern += "/"
	}
	return &S3ImageProvider{
		endpoint:        endpoint,
		region:          region,
		bucket:          bucket,
		prefixPattern:   prefixPattern,
		accessKeyID:     accessKeyID,
		secretAccessKey: secretAccessKey,
	}
}

// NewEODataImageProvider creates a new ImageProvider from the S3 interface of the Copernicus Data Space
func NewEODataImageProvider(accessKeyID, secretAccessKey string) *S3ImageProvider {
	return NewS3ImageProvider(EODataEndpoint, "default", EODataBucket, EODataPrefix, accessKeyID, secretAccessKey)
}

// WithRequesterPays sets the requester-pays flag on the requests
func (ip *S3ImageProvider) WithRequesterPays() *S3ImageProvider {
	ip.requestPayer = types.RequestPayerRequester
	return ip
}

// Name implements ImageProvider
func (ip *S3ImageProvider) Name() string {
	return "S3 (s3://" + ip.bucket + "/" + ip.prefixPattern + ")"
}

// prefix returns the prefix of the SAFE directory of the product
func (ip *S3ImageProvider) prefix(product common.Product) (string, error) {
	info, err := common.Info(product.Name)
	if err != nil {
		return "", err
	}
	return common.FormatBrackets(ip.prefixPattern, info), nil
}

// Download implements ImageProvider
func (ip *S3ImageProvider) Download(ctx context.Context, product common.Product, localDir string) error {
	prefix, err := ip.prefix(product)
	if err != nil {
		return fmt.Errorf("S3ImageProvider.%w", err)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(ip.accessKeyID, ip.secretAccessKey, "")),
		config.WithRegion(ip.region),
	)
	if err != nil {
		return fmt.Errorf("S3ImageProvider.LoadDefaultConfig: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ip.endpoint != "" {
			o.BaseEndpoint = aws.String(ip.endpoint)
			o.UsePathStyle = true
		}
	})
	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = 10 * 1024 * 1024 // 10MB per part
	})
	paginator := s3.NewListObjectsV2Paginator(client,
		&s3.ListObjectsV2Input{
			Bucket:       aws.String(ip.bucket),
			Prefix:       aws.String(prefix),
			RequestPayer: ip.requestPayer,
		},
		func(o *s3.ListObjectsV2PaginatorOptions) {
			o.Limit = 1000
		},
	)

	safeDir := filepath.Join(localDir, service.ProductFileName(product, service.ExtensionSAFE))
	nbFiles := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			os.RemoveAll(safeDir)
			return service.MakeTemporary(fmt.Errorf("S3ImageProvider.NextPage: %w", err))
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			localPath := filepath.Join(safeDir, filepath.FromSlash(strings.TrimPrefix(key, prefix)))
			if err := ip.downloadObject(ctx, downloader, key, localPath); err != nil {
				os.RemoveAll(safeDir)
				return fmt.Errorf("S3ImageProvider.%w", err)
			}
			nbFiles++
		}
	}
	if nbFiles == 0 {
		return ErrProductNotFound{"s3://" + ip.bucket + "/" + prefix}
	}
	log.Logger(ctx).Sugar().Debugf("S3ImageProvider: %d files downloaded from s3://%s/%s", nbFiles, ip.bucket, prefix)
	return nil
}

// downloadObject downloads the object to localPath, creating the parent directories
func (ip *S3ImageProvider) downloadObject(ctx context.Context, downloader *manager.Downloader, key, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("downloadObject.MkdirAll: %w", err)
	}
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("downloadObject: failed to create file %s: %w", localPath, err)
	}
	defer file.Close()

	_, err = downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket:       aws.String(ip.bucket),
		Key:          aws.String(key),
		RequestPayer: ip.requestPayer,
	})
	if err != nil {
		return service.MakeTemporary(fmt.Errorf("downloadObject: failed to download object %s:%s: %w", ip.bucket, key, err))
	}
	return nil
}
