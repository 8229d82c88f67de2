package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/service"
	"github.com/airbusgeo/s2-acquisition/service/log"
)

const (
	scihubProduct       = "%s/Products('%s')/$value"
	scihubProductOnline = "%s/Products('%s')/Online/$value"

	// Number of retries of the requests to the archive
	scihubOnlineRetries       = 3
	scihubReactivationRetries = 10
)

// ScihubArchive is the long-term archive of scihub (DHuS OData API)
// It implements ImageProvider and acquisition.AvailabilityChecker and acquisition.ReactivationRequester
type ScihubArchive struct {
	baseURL      string
	user         string
	pword        string
	online       *service.HTTPClient
	reactivation *service.HTTPClient
}

// NewScihubArchive creates a new client of the archive (e.g. https://scihub.copernicus.eu/dhus/odata/v1)
func NewScihubArchive(baseURL, user, pword string) *ScihubArchive {
	return &ScihubArchive{
		baseURL:      strings.TrimRight(baseURL, "/"),
		user:         user,
		pword:        pword,
		online:       service.NewHTTPClient(user, pword, scihubOnlineRetries),
		reactivation: service.NewHTTPClient(user, pword, scihubReactivationRetries),
	}
}

// WithBackoff sets the unit of the exponential backoff between two retries
func (a *ScihubArchive) WithBackoff(backoff time.Duration) *ScihubArchive {
	a.online.Backoff = backoff
	a.reactivation.Backoff = backoff
	return a
}

// Name implements ImageProvider
func (a *ScihubArchive) Name() string {
	return "Scihub (" + a.baseURL + ")"
}

// IsOnline returns whether the archive serves the product without staging delay.
// Raise AuthError, ErrProductNotFound or TransportError if the archive cannot give a definitive answer.
func (a *ScihubArchive) IsOnline(ctx context.Context, id common.ProductID) (bool, error) {
	body, err := a.online.GetBody(ctx, fmt.Sprintf(scihubProductOnline, a.baseURL, id))
	if err != nil {
		return false, a.archiveError(ctx, "IsOnline", id, err)
	}
	switch strings.ToLower(strings.TrimSpace(string(body))) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, &common.TransportError{Op: "IsOnline", Product: id, Err: fmt.Errorf("unexpected response: %.100q", body)}
}

// RequestReactivation requests the staging of an offline product.
// The archive answers 202 if the request is accepted, 200 if the product is already online (the transfer is not read).
// Raise AuthError or TransportError (after retries); any other answer is Declined.
func (a *ScihubArchive) RequestReactivation(ctx context.Context, id common.ProductID) (common.Outcome, error) {
	resp, err := a.reactivation.Do(ctx, http.MethodGet, fmt.Sprintf(scihubProduct, a.baseURL, id), http.StatusAccepted, http.StatusOK)
	if err != nil {
		code := service.HTTPStatusCode(err)
		if code != 0 && code != http.StatusUnauthorized && !service.Temporary(err) {
			log.Logger(ctx).Sugar().Debugf("reactivation of %s declined: %v", id, err)
			return common.OutcomeDeclined, nil
		}
		return common.OutcomeDeclined, a.archiveError(ctx, "RequestReactivation", id, err)
	}
	resp.Body.Close()
	return common.OutcomeAccepted, nil
}

// Download implements ImageProvider
func (a *ScihubArchive) Download(ctx context.Context, product common.Product, localDir string) error {
	if common.GetConstellationFromProductName(product.Name) != common.Sentinel2 {
		return fmt.Errorf("ScihubArchive: constellation not supported")
	}

	url := fmt.Sprintf(scihubProduct, a.baseURL, product.ID)
	if err := downloadZipWithAuth(ctx, url, localDir, product, "scihub", func(req *http.Request) {
		req.SetBasicAuth(a.user, a.pword)
	}); err != nil {
		return fmt.Errorf("ScihubArchive.%w", err)
	}
	return nil
}

func (a *ScihubArchive) archiveError(ctx context.Context, op string, id common.ProductID, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	switch service.HTTPStatusCode(err) {
	case http.StatusUnauthorized:
		return &common.AuthError{Err: err}
	case http.StatusNotFound:
		return ErrProductNotFound{string(id)}
	}
	return &common.TransportError{Op: op, Product: id, Err: err}
}
