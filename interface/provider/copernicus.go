package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/service"
	"golang.org/x/oauth2"
)

const (
	// CopernicusCatalogURL is the OData API of the Copernicus Data Space
	CopernicusCatalogURL = "https://catalogue.dataspace.copernicus.eu/odata/v1"
	// CopernicusDownloadURL serves the products of the Copernicus Data Space
	CopernicusDownloadURL = "https://zipper.dataspace.copernicus.eu/odata/v1"
	// CopernicusTokenURL delivers the access tokens of the Copernicus Data Space
	CopernicusTokenURL = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
)

// The token is renewed a bit before its expiration, to cover the beginning of the download
const copernicusTokenMargin = 30 * time.Second

// CopernicusImageProvider implements ImageProvider for the Copernicus Data Space
type CopernicusImageProvider struct {
	user        string
	pword       string
	catalogURL  string
	downloadURL string
	tokenURL    string
	client      *service.HTTPClient

	mu     sync.Mutex
	token  string
	expire time.Time
}

// NewCopernicusImageProvider creates a new ImageProvider from the Copernicus Data Space
func NewCopernicusImageProvider(user, pword string) *CopernicusImageProvider {
	return &CopernicusImageProvider{
		user:        user,
		pword:       pword,
		catalogURL:  CopernicusCatalogURL,
		downloadURL: CopernicusDownloadURL,
		tokenURL:    CopernicusTokenURL,
		client:      service.NewHTTPClient("", "", 3),
	}
}

// WithURLs changes the endpoints of the Copernicus Data Space
func (ip *CopernicusImageProvider) WithURLs(catalogURL, downloadURL, tokenURL string) *CopernicusImageProvider {
	ip.catalogURL = strings.TrimRight(catalogURL, "/")
	ip.downloadURL = strings.TrimRight(downloadURL, "/")
	ip.tokenURL = tokenURL
	return ip
}

// Name implements ImageProvider
func (ip *CopernicusImageProvider) Name() string {
	return "Copernicus"
}

// Download implements ImageProvider
func (ip *CopernicusImageProvider) Download(ctx context.Context, product common.Product, localDir string) error {
	if common.GetConstellationFromProductName(product.Name) != common.Sentinel2 {
		return fmt.Errorf("CopernicusImageProvider: constellation not supported")
	}

	// The identifiers of the Data Space are not the ones of scihub
	id, err := ip.productID(ctx, product.Name)
	if err != nil {
		return fmt.Errorf("CopernicusImageProvider.%w", err)
	}

	token, err := ip.loadToken(ctx)
	if err != nil {
		return fmt.Errorf("CopernicusImageProvider.%w", err)
	}

	url := fmt.Sprintf("%s/Products(%s)/$value", ip.downloadURL, id)
	err = downloadZipWithAuth(ctx, url, localDir, product, ip.Name(), func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	})
	if err != nil {
		var aerr *common.AuthError
		if errors.As(err, &aerr) {
			ip.resetToken(token)
		}
		return fmt.Errorf("CopernicusImageProvider.%w", err)
	}
	return nil
}

// productID returns the identifier of the online product in the catalog of the Data Space
func (ip *CopernicusImageProvider) productID(ctx context.Context, name string) (string, error) {
	filter := neturl.QueryEscape(fmt.Sprintf("Name eq '%s.SAFE'", strings.TrimSuffix(name, ".SAFE")))
	body, err := ip.client.GetBody(ctx, ip.catalogURL+"/Products?$filter="+filter)
	if err != nil {
		return "", fmt.Errorf("productID.GetBody: %w", err)
	}
	results := struct {
		Value []struct {
			ID     string `json:"Id"`
			Online bool   `json:"Online"`
		} `json:"value"`
	}{}
	if err := json.Unmarshal(body, &results); err != nil {
		return "", fmt.Errorf("productID.Unmarshal: %w (response: %.200s)", err, body)
	}
	if len(results.Value) == 0 || !results.Value[0].Online {
		return "", ErrProductNotFound{name}
	}
	return results.Value[0].ID, nil
}

// loadToken returns the access token, asking for a new one if it is about to expire
func (ip *CopernicusImageProvider) loadToken(ctx context.Context) (string, error) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if ip.token != "" && time.Now().Add(copernicusTokenMargin).Before(ip.expire) {
		return ip.token, nil
	}

	conf := oauth2.Config{
		ClientID: "cdse-public",
		Endpoint: oauth2.Endpoint{TokenURL: ip.tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	token, err := conf.PasswordCredentialsToken(ctx, ip.user, ip.pword)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var rerr *oauth2.RetrieveError
		if !errors.As(err, &rerr) || rerr.Response == nil {
			return "", service.MakeTemporary(fmt.Errorf("loadToken: %w", err))
		}
		switch code := rerr.Response.StatusCode; {
		case code == http.StatusUnauthorized, code == http.StatusBadRequest:
			// invalid_grant: wrong credentials
			return "", &common.AuthError{Err: fmt.Errorf("loadToken: %w", err)}
		case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
			return "", service.MakeTemporary(fmt.Errorf("loadToken: %w", err))
		}
		return "", fmt.Errorf("loadToken: %w", err)
	}
	ip.token, ip.expire = token.AccessToken, token.Expiry
	return ip.token, nil
}

// resetToken forgets the token if it is still the current one
func (ip *CopernicusImageProvider) resetToken(token string) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if ip.token == token {
		ip.token = ""
	}
}
