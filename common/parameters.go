package common

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"gopkg.in/yaml.v3"
)

// Default values of the parameters
const (
	DefaultArchiveURL    = "https://scihub.copernicus.eu/dhus/odata/v1"
	DefaultSearchURL     = "https://apihub.copernicus.eu/apihub"
	DefaultPlatformName  = "Sentinel-2"
	DefaultProductType   = "S2MSI2A"
	DefaultCloudCoverMax = 10
	DefaultGraceWait     = 30 * time.Minute
	DefaultPollInterval  = time.Minute
	DefaultWorkers       = 4
)

// Parameters of an acquisition, loaded from the parameter file.
// The file is a YAML document: JSON files and python-like dicts
// (e.g. {'AOI': {'geojson': 'aoi.geojson'}}) are also accepted.
type Parameters struct {
	AOI struct {
		GeoJSON   string `yaml:"geojson"`
		StartDate string `yaml:"startDate"`
		EndDate   string `yaml:"endDate"`
	} `yaml:"AOI"`
	Parameters struct {
		ScihubUser          string   `yaml:"scihubUser"`
		ScihubPassword      string   `yaml:"scihubPassword"`
		DataPath            string   `yaml:"dataPath"`
		ArchiveURL          string   `yaml:"archiveURL"`
		SearchURL           string   `yaml:"searchURL"`
		StorageURI          string   `yaml:"storageURI"`
		PostDownloadCommand []string `yaml:"postDownloadCommand"`
	} `yaml:"parameters"`
	Query struct {
		PlatformName  string   `yaml:"platformName"`
		ProductType   string   `yaml:"productType"`
		CloudCoverMin float64  `yaml:"cloudCoverMin"`
		CloudCoverMax *float64 `yaml:"cloudCoverMax"`
	} `yaml:"query"`
	Acquisition struct {
		GraceWait         *time.Duration `yaml:"graceWait"`
		PollInterval      *time.Duration `yaml:"pollInterval"`
		StalenessTimeout  time.Duration  `yaml:"stalenessTimeout"`
		MaxRounds         int            `yaml:"maxRounds"`
		Workers           int            `yaml:"workers"`
		ParallelDownloads int            `yaml:"parallelDownloads"`
		Unarchive         bool           `yaml:"unarchive"`
	} `yaml:"acquisition"`

	// Parsed values
	StartTime time.Time `yaml:"-"`
	EndTime   time.Time `yaml:"-"`
}

// LoadParameters reads, validates and completes the parameter file
func LoadParameters(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "file", Err: err}
	}
	return ParseParameters(data)
}

// ParseParameters validates and completes the parameters
func ParseParameters(data []byte) (*Parameters, error) {
	var p Parameters
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &ConfigError{Field: "file", Err: err}
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.setDefaults()
	return &p, nil
}

func (p *Parameters) validate() error {
	required := []struct{ field, value string }{
		{"AOI.geojson", p.AOI.GeoJSON},
		{"AOI.startDate", p.AOI.StartDate},
		{"AOI.endDate", p.AOI.EndDate},
		{"parameters.scihubUser", p.Parameters.ScihubUser},
		{"parameters.scihubPassword", p.Parameters.ScihubPassword},
		{"parameters.dataPath", p.Parameters.DataPath},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ConfigError{Field: r.field, Err: errors.New("missing")}
		}
	}

	var err error
	if p.StartTime, err = dateparse.ParseIn(p.AOI.StartDate, time.UTC); err != nil {
		return &ConfigError{Field: "AOI.startDate", Err: err}
	}
	if p.EndTime, err = dateparse.ParseIn(p.AOI.EndDate, time.UTC); err != nil {
		return &ConfigError{Field: "AOI.endDate", Err: err}
	}
	if p.EndTime.Before(p.StartTime) {
		return &ConfigError{Field: "AOI.endDate", Err: fmt.Errorf("%s is before startDate %s", p.AOI.EndDate, p.AOI.StartDate)}
	}
	if st, err := os.Stat(p.AOI.GeoJSON); err != nil {
		return &ConfigError{Field: "AOI.geojson", Err: err}
	} else if st.IsDir() {
		return &ConfigError{Field: "AOI.geojson", Err: fmt.Errorf("%s is a directory", p.AOI.GeoJSON)}
	}

	if p.Query.CloudCoverMax != nil && (*p.Query.CloudCoverMax < p.Query.CloudCoverMin || *p.Query.CloudCoverMax > 100) {
		return &ConfigError{Field: "query.cloudCoverMax", Err: fmt.Errorf("must be in [cloudCoverMin, 100]")}
	}
	if p.Query.CloudCoverMin < 0 {
		return &ConfigError{Field: "query.cloudCoverMin", Err: fmt.Errorf("must be positive")}
	}
	if p.Acquisition.MaxRounds < 0 {
		return &ConfigError{Field: "acquisition.maxRounds", Err: fmt.Errorf("must be positive")}
	}
	if p.Acquisition.Workers < 0 || p.Acquisition.ParallelDownloads < 0 {
		return &ConfigError{Field: "acquisition.workers", Err: fmt.Errorf("must be positive")}
	}
	return nil
}

func (p *Parameters) setDefaults() {
	if p.Parameters.ArchiveURL == "" {
		p.Parameters.ArchiveURL = DefaultArchiveURL
	}
	if p.Parameters.SearchURL == "" {
		p.Parameters.SearchURL = DefaultSearchURL
	}
	if p.Query.PlatformName == "" {
		p.Query.PlatformName = DefaultPlatformName
	}
	if p.Query.ProductType == "" {
		p.Query.ProductType = DefaultProductType
	}
	if p.Query.CloudCoverMax == nil {
		v := float64(DefaultCloudCoverMax)
		p.Query.CloudCoverMax = &v
	}
	if p.Acquisition.GraceWait == nil {
		v := DefaultGraceWait
		p.Acquisition.GraceWait = &v
	}
	if p.Acquisition.PollInterval == nil {
		v := DefaultPollInterval
		p.Acquisition.PollInterval = &v
	}
	if p.Acquisition.Workers == 0 {
		p.Acquisition.Workers = DefaultWorkers
	}
	if p.Acquisition.ParallelDownloads == 0 {
		p.Acquisition.ParallelDownloads = 1
	}
}

// Query is the search of the candidate products
type Query struct {
	FootprintWKT  string
	Start, End    time.Time
	PlatformName  string
	ProductType   string
	CloudCoverMin float64
	CloudCoverMax float64
}

// NewQuery creates the catalog query of the parameters, given the footprint of the AOI
func (p *Parameters) NewQuery(footprintWKT string) Query {
	return Query{
		FootprintWKT:  footprintWKT,
		Start:         p.StartTime,
		End:           p.EndTime,
		PlatformName:  p.Query.PlatformName,
		ProductType:   p.Query.ProductType,
		CloudCoverMin: p.Query.CloudCoverMin,
		CloudCoverMax: *p.Query.CloudCoverMax,
	}
}
