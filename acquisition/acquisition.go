// Package acquisition drives the acquisition of products from an archive where
// products are either online or offline (long-term archive): offline products are
// requested for reactivation and reclassified round after round, while the online
// ones are downloaded in the background.
package acquisition

import (
	"context"
	"time"

	"github.com/airbusgeo/s2-acquisition/common"
)

// AvailabilityChecker tells whether the archive serves a product without staging delay.
// It must return an error (not false) when the archive cannot give a definitive answer.
type AvailabilityChecker interface {
	IsOnline(ctx context.Context, id common.ProductID) (bool, error)
}

// ReactivationRequester requests the staging of an offline product.
// An error means that the archive could not be reached (after retries), Declined is a definitive answer.
type ReactivationRequester interface {
	RequestReactivation(ctx context.Context, id common.ProductID) (common.Outcome, error)
}

// Querier returns the candidate products of a query
type Querier interface {
	QueryCandidates(ctx context.Context, q common.Query) ([]common.Product, error)
}

// Downloader transfers the products.
// If some products cannot be transferred, it returns a *common.TransferError listing them.
type Downloader interface {
	DownloadAll(ctx context.Context, products []common.Product) error
}

// Reporter receives the events of the acquisition. It must be safe for concurrent use
// (download events are reported from background goroutines) and must not block.
type Reporter interface {
	Report(ctx context.Context, event common.Event)
}

// Config of the acquisition loop
type Config struct {
	// GraceWait replaces PollInterval in the first round when the first classification found no online product
	GraceWait time.Duration
	// PollInterval between the reactivation requests of a round and the reclassification
	PollInterval time.Duration
	// StalenessTimeout: products offline for longer are not requested anymore (0: no timeout)
	StalenessTimeout time.Duration
	// MaxRounds of reactivation requests (0: unlimited)
	MaxRounds int
	// Workers is the number of parallel requests to the archive (classification and reactivation)
	Workers int
	// ParallelDownloads is the number of download batches that can run at the same time
	ParallelDownloads int
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		GraceWait:         common.DefaultGraceWait,
		PollInterval:      common.DefaultPollInterval,
		Workers:           common.DefaultWorkers,
		ParallelDownloads: 1,
	}
}

// ConfigFromParameters returns the configuration defined in the parameters
func ConfigFromParameters(p *common.Parameters) Config {
	c := DefaultConfig()
	if p.Acquisition.GraceWait != nil {
		c.GraceWait = *p.Acquisition.GraceWait
	}
	if p.Acquisition.PollInterval != nil {
		c.PollInterval = *p.Acquisition.PollInterval
	}
	c.StalenessTimeout = p.Acquisition.StalenessTimeout
	c.MaxRounds = p.Acquisition.MaxRounds
	if p.Acquisition.Workers > 0 {
		c.Workers = p.Acquisition.Workers
	}
	if p.Acquisition.ParallelDownloads > 0 {
		c.ParallelDownloads = p.Acquisition.ParallelDownloads
	}
	return c
}

// Result of an acquisition
type Result struct {
	Run    string        `json:"run"`
	Status common.Status `json:"status"`
	Rounds int           `json:"rounds"`
	// Queried are the candidates, duplicates removed
	Queried    []common.ProductID `json:"queried"`
	Downloaded []common.ProductID `json:"downloaded"`
	Failed     []common.ProductID `json:"failed,omitempty"`
	// StillOffline are the products that were still offline when the loop stopped (MaxRounds, staleness or abort)
	StillOffline []common.ProductID `json:"still_offline,omitempty"`
	// Accepted and Declined are the cumulative reactivation outcomes
	Accepted int       `json:"accepted"`
	Declined int       `json:"declined"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}
