package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/service"
	"github.com/airbusgeo/s2-acquisition/service/log"
	"github.com/jlaffaye/ftp"
)

// FTPImageProvider implements ImageProvider for zip files stored on a FTP mirror
type FTPImageProvider struct {
	host        string
	pathPattern string
	user        string
	pword       string
	tls         bool
}

// Name implements ImageProvider
func (ip *FTPImageProvider) Name() string {
	return "FTP (" + ip.host + ")"
}

// NewFTPImageProvider creates a new ImageProvider for a ftp mirror
// Example:
// pathPattern: full ftp path, including host, port and folder tree. i.e: ftp://ftp.example.org:21/Sentinel-2/{YEAR}/{SCENE}.zip (see common.FormatBrackets)
// Port 990 enables implicit TLS.
func NewFTPImageProvider(pathPattern, user, pword string) *FTPImageProvider {
	pathPattern = strings.TrimPrefix(pathPattern, "ftp://")
	splits := strings.SplitN(pathPattern, "/", 2)
	if len(splits) == 1 {
		splits = append(splits, "{SCENE}.zip")
	}
	host := splits[0]
	if !strings.Contains(host, ":") {
		host += ":21"
	}

	return &FTPImageProvider{
		host:        host,
		tls:         strings.HasSuffix(host, ":990"),
		pathPattern: splits[1],
		user:        user,
		pword:       pword,
	}
}

// progressWriter counts the bytes written to it and logs the progress every period (fraction of the size)
type progressWriter struct {
	ctx      context.Context
	prefix   string
	size     int64
	period   float64
	written  atomic.Int64
	progress float64
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := pw.written.Add(int64(len(p)))
	if pw.size > 0 && float64(n)/float64(pw.size) >= pw.progress+pw.period {
		pw.progress = float64(n) / float64(pw.size)
		log.Logger(pw.ctx).Sugar().Debugf("%s: %.2f%% %s/%s", pw.prefix, 100*pw.progress, fmtBytes(n), fmtBytes(pw.size))
	}
	return len(p), nil
}

// Download implements ImageProvider
func (ip *FTPImageProvider) Download(ctx context.Context, product common.Product, localDir string) error {
	format, err := common.Info(product.Name)
	if err != nil {
		return fmt.Errorf("FTPImageProvider: %w", err)
	}
	path := common.FormatBrackets(ip.pathPattern, format)

	// Connection to FTP
	ftpOption := []ftp.DialOption{ftp.DialWithTimeout(5 * time.Second), ftp.DialWithContext(ctx)}
	if ip.tls {
		ftpOption = append(ftpOption, ftp.DialWithTLS(&tls.Config{InsecureSkipVerify: true}))
	}
	c, err := ftp.Dial(ip.host, ftpOption...)
	if err != nil {
		return service.MakeTemporary(fmt.Errorf("FTPImageProvider.Dial: %w", err))
	}
	defer c.Quit()
	if err = c.Login(ip.user, ip.pword); err != nil {
		return &common.AuthError{Err: fmt.Errorf("FTPImageProvider.Login: %w", err)}
	}

	size, err := c.FileSize(path)
	if err != nil {
		return ErrProductNotFound{"ftp://" + ip.host + "/" + path}
	}

	r, err := c.Retr(path)
	if err != nil {
		return fmt.Errorf("FTPImageProvider.Retr: %w", err)
	}
	defer r.Close()
	// Closing the connection stops the transfer on cancellation
	stop := context.AfterFunc(ctx, func() { c.Quit() })
	defer stop()

	localZip := filepath.Join(localDir, service.ProductFileName(product, service.ExtensionZIP))
	destFile, err := os.Create(localZip)
	if err != nil {
		return fmt.Errorf("FTPImageProvider.Create: %w", err)
	}
	defer destFile.Close()

	pw := &progressWriter{ctx: ctx, prefix: "ftp:" + product.Name, size: size, period: 0.05}
	if _, err = io.Copy(destFile, io.TeeReader(r, pw)); err != nil {
		os.Remove(localZip)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return service.MakeTemporary(fmt.Errorf("FTPImageProvider.Copy: %w", err))
	}
	return nil
}
