package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/airbusgeo/geocube/interface/messaging"
	"github.com/airbusgeo/geocube/interface/messaging/pgqueue"
	"github.com/airbusgeo/geocube/interface/messaging/pubsub"
	"github.com/airbusgeo/s2-acquisition/acquisition"
	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/downloader"
	"github.com/airbusgeo/s2-acquisition/interface/catalog/scihub"
	"github.com/airbusgeo/s2-acquisition/interface/provider"
	"github.com/airbusgeo/s2-acquisition/interface/reporter/console"
	"github.com/airbusgeo/s2-acquisition/interface/reporter/events"
	"github.com/airbusgeo/s2-acquisition/interface/reporter/status"
	"github.com/airbusgeo/s2-acquisition/service"
	"github.com/airbusgeo/s2-acquisition/service/log"
	"github.com/gorilla/handlers"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// exitStillOffline is the exit code when some products never came online
const exitStillOffline = 2

type config struct {
	ParameterFile string

	// Acquisition tuning (overrides the parameter file)
	MaxRounds        int
	GraceWait        time.Duration
	PollInterval     time.Duration
	StalenessTimeout time.Duration
	Workers          int

	// Products
	StorageURI        string
	LocalProviderPath string
	GSProviderBuckets []string
	FTPMirror         string
	FTPUsername       string
	FTPPassword       string
	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3Prefix          string
	S3AccessKey       string
	S3SecretKey       string
	S3RequesterPays   bool
	EODataAccessKey   string
	EODataSecretKey   string
	CopernicusUser    string
	CopernicusPwd     string
	Unarchive         bool

	// Reporting
	StatusAddr      string
	PsProject       string
	EventTopic      string
	PgqDbConnection string
	EventQueue      string
	Quiet           bool
	Debug           bool
}

func newAppConfig() (*config, error) {
	config := config{}
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <parameter-file>\n", os.Args[0])
		flag.PrintDefaults()
	}

	// Acquisition
	flag.IntVar(&config.MaxRounds, "max-rounds", -1, "maximum number of reactivation rounds (0: unlimited, default: parameter file)")
	flag.DurationVar(&config.GraceWait, "grace-wait", 0, "wait before the first reclassification when no product is online (default: parameter file)")
	flag.DurationVar(&config.PollInterval, "poll-interval", 0, "wait between the reactivation requests and the reclassification (default: parameter file)")
	flag.DurationVar(&config.StalenessTimeout, "staleness-timeout", 0, "products offline for longer are not requested anymore (default: parameter file)")
	flag.IntVar(&config.Workers, "workers", 0, "number of parallel requests to the archive (default: parameter file)")

	// Products
	flag.StringVar(&config.StorageURI, "storage-uri", "", "storage uri (currently supported: local, gs) to export the products to (default: parameter file)")
	flag.StringVar(&config.LocalProviderPath, "local-path", "", "local path or storage uri where products are already stored (optional). To configure a mirror as a potential image Provider.")
	gsProviderBuckets := flag.String("gs-bucket", "", `Google Storage buckets, comma-separated (optional). To configure GS as a potential image Provider.
	bucket can contain several {IDENTIFIER} than will be replaced according to the product name.
	IDENTIFIER must be one of SCENE, MISSION_ID, PRODUCT_LEVEL, DATE(YEAR/MONTH/DAY), TIME(HOUR/MINUTE/SECOND), PDGS, ORBIT, TILE (LATITUDE_BAND/GRID_SQUARE/GRANULE_ID)
	 `)
	flag.StringVar(&config.FTPMirror, "ftp-mirror", "", "ftp path pattern of the zip files, i.e: ftp://ftp.example.org:21/Sentinel-2/{YEAR}/{SCENE}.zip (optional). To configure a FTP mirror as a potential image Provider.")
	flag.StringVar(&config.FTPUsername, "ftp-username", "anonymous", "ftp account username")
	flag.StringVar(&config.FTPPassword, "ftp-password", "", "ftp account password")
	flag.StringVar(&config.EODataAccessKey, "eodata-access-key", "", "Copernicus Data Space S3 access key (optional). To configure the Copernicus Data Space as a potential image Provider.")
	flag.StringVar(&config.EODataSecretKey, "eodata-secret-key", "", "Copernicus Data Space S3 secret key")
	flag.StringVar(&config.S3Bucket, "s3-bucket", "", "S3 bucket where SAFE products are stored (optional). To configure a S3 mirror as a potential image Provider.")
	flag.StringVar(&config.S3Prefix, "s3-prefix", "{SCENE}.SAFE/", "prefix of the SAFE directory of the products in the S3 bucket (see -gs-bucket for the identifiers)")
	flag.StringVar(&config.S3Endpoint, "s3-endpoint", "", "S3 endpoint (default: AWS)")
	flag.StringVar(&config.S3Region, "s3-region", "us-east-1", "S3 region")
	flag.StringVar(&config.S3AccessKey, "s3-access-key", "", "S3 access key")
	flag.StringVar(&config.S3SecretKey, "s3-secret-key", "", "S3 secret key")
	flag.BoolVar(&config.S3RequesterPays, "s3-requester-pays", false, "S3 bucket is requester-pays")
	flag.StringVar(&config.CopernicusUser, "copernicus-username", "", "Copernicus Data Space username (optional). To configure the Copernicus Data Space as a potential image Provider.")
	flag.StringVar(&config.CopernicusPwd, "copernicus-password", "", "Copernicus Data Space password")
	flag.BoolVar(&config.Unarchive, "unarchive", false, "store the products as SAFE directories (default: parameter file)")

	// Reporting
	flag.StringVar(&config.StatusAddr, "status-addr", "", "address to serve the status of the acquisition (e.g. :8080, optional)")
	flag.StringVar(&config.PgqDbConnection, "pgq-connection", "", "enable pgq messaging system with a connection to the database")
	flag.StringVar(&config.EventQueue, "event-queue", "", "name of the pgqueue queue for acquisition events")
	flag.StringVar(&config.PsProject, "ps-project", "", "pubsub project to publish acquisition events")
	flag.StringVar(&config.EventTopic, "event-topic", "", "name of the pubsub topic for acquisition events")
	flag.BoolVar(&config.Quiet, "quiet", false, "do not display the progress on the terminal")
	flag.BoolVar(&config.Debug, "debug", false, "debug logs")

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return nil, &common.ConfigError{Field: "parameter-file", Err: fmt.Errorf("exactly one parameter file expected, got %d arguments", flag.NArg())}
	}
	config.ParameterFile = flag.Arg(0)
	if *gsProviderBuckets != "" {
		config.GSProviderBuckets = strings.Split(*gsProviderBuckets, ",")
	}
	if config.PgqDbConnection != "" && config.EventQueue == "" {
		return nil, &common.ConfigError{Field: "event-queue", Err: errors.New("required with pgq-connection")}
	}
	if config.PsProject != "" && config.EventTopic == "" {
		return nil, &common.ConfigError{Field: "event-topic", Err: errors.New("required with ps-project")}
	}
	return &config, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	result, err := run(ctx)
	stop()
	if err != nil {
		log.Fatal("error", zap.Error(err))
	}
	log.Sync()
	if result.Status == common.StatusStillOffline {
		os.Exit(exitStillOffline)
	}
}

func run(ctx context.Context) (*acquisition.Result, error) {
	config, err := newAppConfig()
	if err != nil {
		return nil, err
	}
	if config.Debug {
		log.SetLevel(zapcore.DebugLevel)
	}

	params, err := common.LoadParameters(config.ParameterFile)
	if err != nil {
		return nil, err
	}
	acqConfig := acquisition.ConfigFromParameters(params)
	if config.MaxRounds >= 0 {
		acqConfig.MaxRounds = config.MaxRounds
	}
	if config.GraceWait > 0 {
		acqConfig.GraceWait = config.GraceWait
	}
	if config.PollInterval > 0 {
		acqConfig.PollInterval = config.PollInterval
	}
	if config.StalenessTimeout > 0 {
		acqConfig.StalenessTimeout = config.StalenessTimeout
	}
	if config.Workers > 0 {
		acqConfig.Workers = config.Workers
	}
	if config.StorageURI == "" {
		config.StorageURI = params.Parameters.StorageURI
	}
	unarchive := config.Unarchive || params.Acquisition.Unarchive

	dataPath := params.Parameters.DataPath
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, &common.ConfigError{Field: "parameters.dataPath", Err: err}
	}

	footprint, err := service.LoadAOI(params.AOI.GeoJSON)
	if err != nil {
		return nil, &common.ConfigError{Field: "AOI.geojson", Err: err}
	}
	query := params.NewQuery(footprint)

	// Archive
	user, pwd := params.Parameters.ScihubUser, params.Parameters.ScihubPassword
	catalog := scihub.NewProvider(user, pwd, params.Parameters.SearchURL)
	archive := provider.NewScihubArchive(params.Parameters.ArchiveURL, user, pwd)

	// Load image providers: mirrors first
	var imageProviders []provider.ImageProvider
	var providerNames []string
	if config.LocalProviderPath != "" {
		local, err := provider.NewStorageImageProvider(ctx, config.LocalProviderPath)
		if err != nil {
			return nil, fmt.Errorf("local-path %s: %w", config.LocalProviderPath, err)
		}
		imageProviders = append(imageProviders, local)
	}
	if len(config.GSProviderBuckets) != 0 {
		imageProviders = append(imageProviders, provider.NewGSImageProvider(config.GSProviderBuckets...))
	}
	if config.S3Bucket != "" {
		s3 := provider.NewS3ImageProvider(config.S3Endpoint, config.S3Region, config.S3Bucket, config.S3Prefix, config.S3AccessKey, config.S3SecretKey)
		if config.S3RequesterPays {
			s3 = s3.WithRequesterPays()
		}
		imageProviders = append(imageProviders, s3)
	}
	if config.EODataAccessKey != "" {
		imageProviders = append(imageProviders, provider.NewEODataImageProvider(config.EODataAccessKey, config.EODataSecretKey))
	}
	if config.FTPMirror != "" {
		imageProviders = append(imageProviders, provider.NewFTPImageProvider(config.FTPMirror, config.FTPUsername, config.FTPPassword))
	}
	if config.CopernicusUser != "" {
		imageProviders = append(imageProviders, provider.NewCopernicusImageProvider(config.CopernicusUser, config.CopernicusPwd))
	}
	imageProviders = append(imageProviders, archive)
	for _, ip := range imageProviders {
		providerNames = append(providerNames, ip.Name())
	}

	options := []downloader.Option{
		downloader.WithUnarchive(unarchive),
		downloader.WithParallelDownloads(params.Acquisition.ParallelDownloads),
	}
	if config.StorageURI != "" {
		storageService, err := service.NewStorageStrategy(ctx, config.StorageURI)
		if err != nil {
			return nil, fmt.Errorf("storage %s: %w", config.StorageURI, err)
		}
		options = append(options, downloader.WithStorage(storageService))
	}
	if len(params.Parameters.PostDownloadCommand) > 0 {
		options = append(options, downloader.WithPostDownloadCommand(params.Parameters.PostDownloadCommand...))
	}
	dl, err := downloader.New(dataPath, imageProviders, options...)
	if err != nil {
		return nil, err
	}

	// Reporters
	reporters := acquisition.MultiReporter{acquisition.LogReporter{}}
	if !config.Quiet {
		c := console.New(os.Stderr)
		defer c.Close()
		reporters = append(reporters, c)
	}
	if config.StatusAddr != "" {
		st := status.New()
		reporters = append(reporters, st)
		headersOk := handlers.AllowedHeaders([]string{"*"})
		originsOk := handlers.AllowedOrigins([]string{"*"})
		methodsOk := handlers.AllowedMethods([]string{"GET", "OPTIONS"})
		s := http.Server{
			Addr:    config.StatusAddr,
			Handler: handlers.CORS(originsOk, headersOk, methodsOk)(st.NewHandler()),
		}
		go func() {
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger(ctx).Error(err.Error())
			}
		}()
		defer s.Shutdown(context.Background())
	}
	eventPublisher, stopPublisher, err := newEventPublisher(ctx, config)
	if err != nil {
		return nil, err
	}
	if eventPublisher != nil {
		defer stopPublisher()
		publisher := events.NewPublisher(eventPublisher, 0)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Logger(ctx).Warn("events", zap.Error(err))
			}
		}()
		reporters = append(reporters, publisher)
	}

	log.Logger(ctx).Sugar().Infof("acquisition of %s products from %s to %s, downloading from %s",
		query.ProductType, params.Parameters.ArchiveURL, dataPath, strings.Join(providerNames, ", "))

	acquirer := acquisition.NewAcquirer(catalog, archive, archive, dl, reporters, acqConfig)
	result, err := acquirer.Run(ctx, query)
	if result != nil {
		if e := service.ToJSON(result, dataPath, "acquisition_"+result.Run+".json"); e != nil {
			log.Logger(ctx).Warn("summary", zap.Error(e))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("acquisition: %w", err)
	}
	return result, nil
}

// newEventPublisher returns the publisher of the acquisition events and the function to stop it,
// or nil if none is configured
func newEventPublisher(ctx context.Context, config *config) (messaging.Publisher, func(), error) {
	switch {
	case config.PgqDbConnection != "":
		db, w, err := pgqueue.SqlConnect(ctx, config.PgqDbConnection)
		if err != nil {
			return nil, nil, fmt.Errorf("pgqueue.SqlConnect: %w", err)
		}
		return pgqueue.NewPublisher(w, config.EventQueue, pgqueue.WithMaxRetries(5)), func() { db.Close() }, nil
	case config.PsProject != "":
		eventTopic, err := pubsub.NewPublisher(ctx, config.PsProject, config.EventTopic, pubsub.WithMaxRetries(5))
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub.NewPublisher: %w", err)
		}
		return eventTopic, eventTopic.Stop, nil
	}
	return nil, nil, nil
}
