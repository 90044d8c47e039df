package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/joho/godotenv"
	"github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"

	"fknsrs.biz/p/vidshare/internal/config"
	"fknsrs.biz/p/vidshare/internal/configreader"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxconfig"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxgeneration"
	"fknsrs.biz/p/vidshare/internal/ctxhttpclient"
	"fknsrs.biz/p/vidshare/internal/ctxjobqueue"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/internal/ctxobjectstore"
	"fknsrs.biz/p/vidshare/internal/ctxtranscoder"
	"fknsrs.biz/p/vidshare/internal/generation"
	"fknsrs.biz/p/vidshare/internal/httpcache"
	"fknsrs.biz/p/vidshare/internal/jobqueue"
	"fknsrs.biz/p/vidshare/internal/logrusstackhook"
	"fknsrs.biz/p/vidshare/internal/migrations"
	"fknsrs.biz/p/vidshare/internal/objectstore"
	"fknsrs.biz/p/vidshare/internal/ratelimit"
	"fknsrs.biz/p/vidshare/internal/sqlitelogger"
	"fknsrs.biz/p/vidshare/internal/transcoder"
	"fknsrs.biz/p/vidshare/internal/uploads"
	"fknsrs.biz/p/vidshare/internal/videos"
	"fknsrs.biz/p/vidshare/internal/workflow"
)

func init() {
	sorm.SetParameterPrefix("?")
}

var cfg = config.Default()

func init() {
	for _, configPath := range []string{"config.toml", "config.yaml", "config.yml"} {
		if st, err := os.Stat(configPath); err == nil && st != nil && !st.IsDir() {
			cfg.Config = configPath
		}
	}
}

type simpleQueryLogger struct {
	logger *logrus.Logger
}

func (s *simpleQueryLogger) LogQuery(query string, args []interface{}) {
	fields := logrus.Fields{
		"db.query":      query,
		"db.args.count": len(args),
	}

	for i, e := range args {
		fields[fmt.Sprintf("db.args.%d", i)] = e
	}

	s.logger.WithFields(fields).Info("sorm query start")
}

func (s *simpleQueryLogger) LogQueryAfter(query string, args []interface{}, duration time.Duration, err error) {
	fields := logrus.Fields{
		"db.query":      query,
		"db.duration":   duration,
		"db.error":      err,
		"db.args.count": len(args),
	}

	for i, e := range args {
		fields[fmt.Sprintf("db.args.%d", i)] = e
	}

	s.logger.WithFields(fields).Info("sorm query finish")
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	if err := configreader.Read(os.Args[0], os.Args[1:], os.Environ(), &cfg); err != nil {
		panic(err)
	}

	ctx = ctxconfig.WithConfig(ctx, cfg)
	ctx = ctxclock.WithClock(ctx, ctxclock.NewRealClock())

	logger := logrus.New()

	logger.SetLevel(cfg.LogLevel)
	if len(cfg.LogDebugLevels) > 0 {
		logger.AddHook(logrusstackhook.NewStackHook(cfg.LogDebugLevels, nil))
	}

	logger.WithFields(logrus.Fields{
		"config.config":             cfg.Config,
		"config.log_level":          cfg.LogLevel,
		"config.log_debug_levels":   cfg.LogDebugLevels,
		"config.log_queries":        cfg.LogQueries,
		"config.log_sorm":           cfg.LogSORM,
		"config.http_addr":          cfg.HTTPAddr,
		"config.database":           cfg.Database,
		"config.http_cache_path":    cfg.HTTPCachePath,
		"config.background_workers": cfg.BackgroundWorkers,
		"config.redis_addr":         cfg.RedisAddr,
		"config.storage_endpoint":   cfg.StorageEndpoint,
		"config.storage_bucket":     cfg.StorageBucket,
		"config.transcoder_url":     cfg.TranscoderBaseURL,
		"config.generation_url":     cfg.GenerationBaseURL,
		"config.generation_model":   cfg.GenerationModel,
		"config.workflow_attempts":  cfg.WorkflowAttempts,
	}).Info("program starting")

	if cfg.LogSORM {
		sorm.SetQueryLogger(&simpleQueryLogger{logger})
	}

	ctx = ctxlogger.WithLogger(ctx, logger)

	dbDriver := "sqlite3"

	if cfg.LogQueries.Enabled {
		dbDriver = "sqlite3:logged"

		sql.Register(dbDriver, sqlitelogger.New(
			&sqlite3.SQLiteDriver{},
			&sqlitelogger.BasicFilter{
				LogSlowerThan: cfg.LogQueries.SlowerThan,
				IgnorePackageStackFrames: []string{
					// standard library
					"database/sql",
					"net/http",
					"runtime",
					// libraries
					"github.com/gorilla/mux",
					"github.com/shogo82148/go-sql-proxy",
					"github.com/urfave/negroni/v2",
					// middleware
					"fknsrs.biz/p/vidshare/internal/ctxauth",
					"fknsrs.biz/p/vidshare/internal/ctxclock",
					"fknsrs.biz/p/vidshare/internal/ctxdb",
					"fknsrs.biz/p/vidshare/internal/ctxjobqueue",
					"fknsrs.biz/p/vidshare/internal/ctxlogger",
					"fknsrs.biz/p/vidshare/internal/ctxtimer",
					"fknsrs.biz/p/vidshare/internal/ratelimit",
					"fknsrs.biz/p/vidshare/internal/sqlitelogger",
					// main
					"main",
				},
				IgnoreFunctionQueries: []string{
					"fknsrs.biz/p/vidshare/internal/jobqueue.(*Worker).Run",
				},
			},
		))
	}

	db, err := sql.Open(dbDriver, "file:"+cfg.Database+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		panic(err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		panic(err)
	}

	ctx = ctxdb.WithDB(ctx, db)

	cacheDB, err := bbolt.Open(cfg.HTTPCachePath, 0600, nil)
	if err != nil {
		panic(err)
	}
	defer cacheDB.Close()

	streamURL, err := url.Parse(cfg.TranscoderStreamURL)
	if err != nil {
		panic(fmt.Errorf("could not parse transcoder stream url: %w", err))
	}

	ctx = ctxhttpclient.WithHTTPClient(ctx, &http.Client{
		Timeout:   time.Second * 30,
		Transport: httpcache.NewTransport(nil, httpcache.NewBBoltStorage(cacheDB), time.Hour, httpcache.HostFilter(streamURL.Host)),
	})

	ctx = ctxtranscoder.WithAPI(ctx, transcoder.New(transcoder.Config{
		BaseURL:     cfg.TranscoderBaseURL,
		TokenID:     cfg.TranscoderTokenID,
		TokenSecret: cfg.TranscoderTokenSecret,
		CORSOrigin:  cfg.TranscoderCORSOrigin,
		StreamURL:   cfg.TranscoderStreamURL,
		ImageURL:    cfg.TranscoderImageURL,
	}))

	if cfg.GenerationAPIKey != "" {
		ctx = ctxgeneration.WithGenerator(ctx, generation.New(cfg.GenerationBaseURL, cfg.GenerationAPIKey, cfg.GenerationModel, cfg.GenerationRequestsPerMinute))
	} else {
		logger.Warn("no generation api key configured; title and description generation will fail")
	}

	if cfg.StorageEndpoint != "" {
		store, err := objectstore.NewMinio(cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey, cfg.StorageBucket, cfg.StoragePublicURL, cfg.StorageSecure)
		if err != nil {
			panic(err)
		}

		if err := store.EnsureBucket(ctx); err != nil {
			panic(err)
		}

		ctx = ctxobjectstore.WithStore(ctx, store)
	} else {
		logger.Warn("no storage endpoint configured; thumbnail and banner uploads will fail")
	}

	limiter := ratelimit.New(redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}), cfg.RateLimitRequests, cfg.RateLimitWindow)

	ctx = ctxjobqueue.WithWorker(ctx, jobqueue.NewWorker(nil))

	if err := registerJobQueueWorkerFunctions(ctx); err != nil {
		panic(err)
	}

	workers := []worker{
		{
			name: "application",
			run: func(ctx context.Context) error {
				return runApplicationWorker(ctx, cfg.HTTPAddr, limiter)
			},
		},
	}

	for i := 0; i < cfg.BackgroundWorkers; i++ {
		workers = append(workers, worker{
			name: fmt.Sprintf("job_queue.%d", i),
			run: func(ctx context.Context) error {
				return runJobQueueWorker(ctx)
			},
		})
	}

	if err := runAllWorkers(ctx, workers); err != nil {
		panic(err)
	}
}

func registerJobQueueWorkerFunctions(ctx context.Context) error {
	l := ctxlogger.GetLogger(ctx)

	l.Info("registering job queue worker functions")

	w := ctxjobqueue.GetWorker(ctx)
	if w == nil {
		return fmt.Errorf("job queue worker not available in context")
	}

	if err := videos.RegisterJobs(w); err != nil {
		return fmt.Errorf("registerJobQueueWorkerFunctions: %w", err)
	}

	if err := uploads.RegisterJobs(w); err != nil {
		return fmt.Errorf("registerJobQueueWorkerFunctions: %w", err)
	}

	if err := workflow.Register(w); err != nil {
		return fmt.Errorf("registerJobQueueWorkerFunctions: %w", err)
	}

	return nil
}
