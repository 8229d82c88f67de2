package scihub

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/service"
	"github.com/airbusgeo/s2-acquisition/service/log"
	"github.com/go-spatial/geom/encoding/wkt"
)

// DHuSSearchURL is the fallback search endpoint, used when the main one fails
const DHuSSearchURL = "https://scihub.copernicus.eu/dhus"

// Number of results per page
const rows = 100

// Provider searches the products in the scihub catalog (opensearch API)
type Provider struct {
	Username string
	Password string
	// SearchURLs are tried in order until one succeeds (e.g. https://apihub.copernicus.eu/apihub)
	SearchURLs []string

	client *service.HTTPClient
}

// NewProvider creates a catalog on the search url, falling back to DHuSSearchURL
func NewProvider(username, password string, searchURL string) *Provider {
	urls := []string{strings.TrimRight(searchURL, "/")}
	if urls[0] != DHuSSearchURL {
		urls = append(urls, DHuSSearchURL)
	}
	return &Provider{
		Username:   username,
		Password:   password,
		SearchURLs: urls,
		client:     service.NewHTTPClient(username, password, 3),
	}
}

// Query returns the opensearch query of the products
func Query(q common.Query) string {
	startDate := q.Start.UTC().Format("2006-01-02") + "T00:00:00.000Z"
	endDate := q.End.UTC().Format("2006-01-02") + "T23:59:59.999Z"
	parameters := []string{
		"( footprint:\"Intersects(" + q.FootprintWKT + ")\")",
		fmt.Sprintf("(beginPosition:[ %s TO %s ] )", startDate, endDate),
		fmt.Sprintf("(endPosition:[ %s TO %s ] )", startDate, endDate),
		fmt.Sprintf("( platformname:%s )", q.PlatformName),
		fmt.Sprintf("( producttype:%s )", q.ProductType),
		fmt.Sprintf("( cloudcoverpercentage:[ %s TO %s ] )", strconv.FormatFloat(q.CloudCoverMin, 'f', -1, 64), strconv.FormatFloat(q.CloudCoverMax, 'f', -1, 64)),
	}
	return "(" + strings.Join(parameters, " AND ") + ")"
}

// QueryCandidates implements acquisition.Querier
func (s *Provider) QueryCandidates(ctx context.Context, q common.Query) ([]common.Product, error) {
	query := Query(q)

	var rawscenes []map[string]string
	var err error
	for i, url := range s.SearchURLs {
		if rawscenes, err = s.queryScihub(ctx, url+"/search?q=", query); err == nil || ctx.Err() != nil {
			break
		}
		if service.HTTPStatusCode(err) == http.StatusUnauthorized {
			// Same credentials on all the endpoints
			return nil, &common.AuthError{Err: fmt.Errorf("Scihub.QueryCandidates.%w", err)}
		}
		if i < len(s.SearchURLs)-1 {
			log.Logger(ctx).Sugar().Debugf("%s failed with error : %v. Trying %s instead", url, err, s.SearchURLs[i+1])
		}
	}
	if err != nil {
		return nil, fmt.Errorf("Scihub.QueryCandidates.%w", err)
	}

	products := make([]common.Product, 0, len(rawscenes))
	for _, rawscene := range rawscenes {
		product, err := newProduct(rawscene)
		if err != nil {
			return nil, fmt.Errorf("Scihub.QueryCandidates.%w", err)
		}
		products = append(products, product)
	}
	log.Logger(ctx).Sugar().Debugf("%d products found", len(products))
	return products, nil
}

func newProduct(rawscene map[string]string) (common.Product, error) {
	// Check for required elements
	requiredElements := []string{"identifier", "uuid", "beginposition", "footprint"}
	for _, elem := range requiredElements {
		if _, ok := rawscene[elem]; !ok {
			return common.Product{}, fmt.Errorf("newProduct: Missing element " + elem + " in results")
		}
	}

	date, err := time.Parse(time.RFC3339Nano, rawscene["beginposition"])
	if err != nil {
		return common.Product{}, fmt.Errorf("newProduct.TimeParse: %w", err)
	}

	wktAOI := strings.ToUpper(rawscene["footprint"])
	if _, err := wkt.DecodeString(wktAOI); err != nil {
		return common.Product{}, fmt.Errorf("newProduct.wktDecodeString[%s]: %w", wktAOI, err)
	}

	var cloudCover float64
	if cc, ok := rawscene["cloudcoverpercentage"]; ok {
		if cloudCover, err = strconv.ParseFloat(cc, 64); err != nil {
			return common.Product{}, fmt.Errorf("newProduct.ParseFloat[cloudcoverpercentage]: %w", err)
		}
	}

	product := common.Product{
		ID:         common.ProductID(rawscene["uuid"]),
		Name:       rawscene["identifier"],
		Date:       date,
		CloudCover: cloudCover,
		Size:       rawscene["size"],
		Tags: map[string]string{
			common.TagSourceID:             rawscene["identifier"],
			common.TagUUID:                 rawscene["uuid"],
			common.TagFootprint:            wktAOI,
			common.TagIngestionDate:        rawscene["ingestiondate"],
			common.TagOrbitDirection:       rawscene["orbitdirection"],
			common.TagRelativeOrbit:        rawscene["relativeorbitnumber"],
			common.TagOrbit:                rawscene["orbitnumber"],
			common.TagProductType:          rawscene["producttype"],
			common.TagCloudCoverPercentage: rawscene["cloudcoverpercentage"],
			common.TagTile:                 rawscene["tileid"],
		},
	}
	if info, err := common.Info(product.Name); err == nil {
		product.Tags[common.TagConstellation] = "SENTINEL2"
		product.Tags[common.TagSatellite] = "SENTINEL" + info["MISSION_ID"][1:]
		if product.Tags[common.TagTile] == "" {
			product.Tags[common.TagTile] = info["TILE"][1:]
		}
	}
	return product, nil
}

func (s *Provider) queryScihub(ctx context.Context, baseurl, query string) ([]map[string]string, error) {
	// Pagging
	var rawscenes []map[string]string
	nextPage := true
	query = neturl.QueryEscape(query)
	totalPages := "?"
	for index := 0; nextPage; index += rows {
		log.Logger(ctx).Sugar().Debugf("Search page %d/%s", index/rows+1, totalPages)
		url := baseurl + query + fmt.Sprintf("&rows=%d&start=%d", rows, index)
		xmlResults, err := s.client.GetBody(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("queryScihub.GetBody: %w", err)
		}

		// XML Element structure:
		type Element struct {
			Name  string `xml:"name,attr"`
			Value string `xml:",chardata"`
		}

		// Read results to retrieve scenes
		results := struct {
			XMLName xml.Name `xml:"feed"`
			Error   struct {
				Code    string `xml:"code"`
				Message string `xml:"message"`
			} `xml:"error"`
			Entries []struct {
				StrElements    []Element `xml:"str"`
				IntElements    []Element `xml:"int"`
				DoubleElements []Element `xml:"double"`
				DateElements   []Element `xml:"date"`
			} `xml:"entry"`
			Links []struct {
				Rel  string `xml:"rel,attr"`
				Href string `xml:"href,attr"`
			} `xml:"link"`
			TotalResults int `xml:"totalResults"`
		}{}
		if err := xml.Unmarshal(xmlResults, &results); err != nil {
			return nil, fmt.Errorf("queryScihub.Unmarshal : %w (response: %.200s)", err, xmlResults)
		}
		if results.Error.Code != "" {
			return nil, fmt.Errorf("queryScihub : %s[code:%s]", results.Error.Message, results.Error.Code)
		}

		// Merge all elements of the scene into a dict
		for _, entry := range results.Entries {
			rawscene := map[string]string{}
			for _, elems := range [][]Element{entry.StrElements, entry.IntElements, entry.DoubleElements, entry.DateElements} {
				for _, elem := range elems {
					rawscene[elem.Name] = elem.Value
				}
			}
			rawscenes = append(rawscenes, rawscene)
		}

		// Is there a next page ?
		nextPage = false
		for _, link := range results.Links {
			if strings.ToLower(link.Rel) == "next" && link.Href != "" && len(results.Entries) > 0 {
				nextPage = true
			}
		}
		if results.TotalResults != 0 {
			totalPages = strconv.Itoa((results.TotalResults + rows - 1) / rows)
		}
	}

	return rawscenes, nil
}
