package provider

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/service"
	"github.com/airbusgeo/s2-acquisition/service/log"
	"github.com/cavaliercoder/grab"
	"github.com/mholt/archiver"
)

// ErrProductNotFound is an error returned when a product is not found or available
type ErrProductNotFound struct {
	Product string
}

func (e ErrProductNotFound) Error() string {
	return fmt.Sprintf("Product not found or unavailable: %s", e.Product)
}

func fmtBytes(bytes int64) string {
	v := float64(bytes)
	switch {
	case v > 1<<30:
		return fmt.Sprintf("%.2fGo", v/(1<<30))
	case v > 1<<20:
		return fmt.Sprintf("%.2fMo", v/(1<<20))
	case v > 1<<10:
		return fmt.Sprintf("%.2fko", v/(1<<10))
	default:
		return fmt.Sprintf("%.2fo", v)
	}
}

// displayProgress logs the progress of the transfer every progressPeriod (fraction of the size)
func displayProgress(ctx context.Context, prefix string, resp *grab.Response, progressPeriod float64) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	progress, lastBytes, seconds := 0.0, int64(0), int64(0)
	for {
		select {
		case <-t.C:
			seconds++
			if resp.Progress() > progress {
				log.Logger(ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", prefix, 100*resp.Progress(),
					fmtBytes(resp.BytesComplete()), fmtBytes(resp.Size), fmtBytes((resp.BytesComplete()-lastBytes)/seconds))
				seconds = 0
				progress += progressPeriod
				lastBytes = resp.BytesComplete()
			}
		case <-resp.Done:
			return
		}
	}
}

// downloadZipWithAuth downloads the zip file of the product from url to localDir/<name>.zip
// setAuth, if not nil, authenticates the request
func downloadZipWithAuth(ctx context.Context, url, localDir string, product common.Product, provider string, setAuth func(*http.Request)) error {
	localZip := filepath.Join(localDir, service.ProductFileName(product, service.ExtensionZIP))
	req, err := grab.NewRequest(localZip, url)
	if err != nil {
		return fmt.Errorf("downloadZipWithAuth.NewRequest: %w", err)
	}
	req = req.WithContext(ctx)
	if setAuth != nil {
		setAuth(req.HTTPRequest)
	}

	if err := download(ctx, req, provider+":"+product.Name); err != nil {
		os.Remove(localZip)
		return fmt.Errorf("downloadZipWithAuth.%w", err)
	}
	return nil
}

// checkRedirectAndCopyAuth keeps the authorization through the redirections of the archive
func checkRedirectAndCopyAuth(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	if auth, ok := via[0].Header["Authorization"]; ok {
		req.Header.Add("Authorization", auth[0])
	}
	return nil
}

// download a file with display every 5%
func download(ctx context.Context, req *grab.Request, displayPrefix string) error {
	client := grab.NewClient()
	client.HTTPClient.CheckRedirect = checkRedirectAndCopyAuth
	resp := client.Do(req)

	displayProgress(ctx, displayPrefix, resp, 0.05)

	if err := resp.Err(); err != nil {
		err = fmt.Errorf("download[%s]: %w", req.URL(), err)
		if resp.HTTPResponse == nil {
			return service.MakeTemporary(err)
		}
		switch code := resp.HTTPResponse.StatusCode; {
		case code == http.StatusUnauthorized:
			return &common.AuthError{Err: err}
		case code == http.StatusNotFound:
			return ErrProductNotFound{req.URL().String()}
		case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
			return service.MakeTemporary(err)
		default:
			return err
		}
	}
	// The archive answers 202 without content when the product is offline
	if resp.HTTPResponse != nil && resp.HTTPResponse.StatusCode == http.StatusAccepted {
		return service.MakeTemporary(fmt.Errorf("download[%s]: product is offline", req.URL()))
	}
	return nil
}

// Unarchive the zip file with basic checks, moving its content into localDir. All errors are temporary.
func Unarchive(localZip, localDir string) error {
	tmpdir, err := os.MkdirTemp(localDir, filepath.Base(localZip))
	if err != nil {
		return service.MakeTemporary(err)
	}
	defer os.RemoveAll(tmpdir)
	if err := archiver.Unarchive(localZip, tmpdir); err != nil {
		return service.MakeTemporary(err)
	}
	files, err := os.ReadDir(tmpdir)
	if err != nil {
		return service.MakeTemporary(err)
	}
	if len(files) == 0 {
		return service.MakeTemporary(fmt.Errorf("empty zip"))
	}
	for _, f := range files {
		if err := os.Rename(filepath.Join(tmpdir, f.Name()), filepath.Join(localDir, f.Name())); err != nil {
			return service.MakeTemporary(err)
		}
	}
	return nil
}
