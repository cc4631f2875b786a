package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"rubicon/flightlog/internal/api"
	"rubicon/flightlog/internal/catalog"
	"rubicon/flightlog/internal/common"
	"rubicon/flightlog/internal/config"
	"rubicon/flightlog/internal/constants"
	"rubicon/flightlog/internal/db"
	"rubicon/flightlog/internal/db/repositories"
	"rubicon/flightlog/internal/geo"
	"rubicon/flightlog/internal/ingest"
	"rubicon/flightlog/internal/logging"
	"rubicon/flightlog/internal/metrics"
	"rubicon/flightlog/internal/sheet"
	"rubicon/flightlog/internal/workers"
)

// App is the composition root shared by the server and the CLI.
type App struct {
	Config  *config.Config
	ORM     *gorm.DB
	SQLX    *sqlx.DB
	Redis   *redis.Client
	Metrics *metrics.Registry

	Records     *repositories.FlightRecordRepo
	Checkpoints *repositories.CheckpointRepo
	References  *repositories.ReferenceEntityRepo

	Catalog  *catalog.Catalog
	Importer *ingest.Importer
	Resolver *geo.Resolver
	Backfill *workers.CoordinateBackfill
	Queue    common.BackfillQueue
}

// New connects to the store (and Redis when enabled) and wires every component.
// reg receives the metrics; pass prometheus.NewRegistry() where nothing scrapes.
func New(cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	orm, err := db.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlxDB, err := db.OpenSQLX(cfg.DB, orm)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlx connection: %w", err)
	}

	layout := sheet.DefaultLayout()
	if cfg.Import.LayoutFile != "" {
		if layout, err = sheet.LoadLayout(cfg.Import.LayoutFile); err != nil {
			return nil, err
		}
	}

	a := &App{
		Config:      cfg,
		ORM:         orm,
		SQLX:        sqlxDB,
		Metrics:     metrics.NewRegistry(reg),
		Records:     repositories.NewFlightRecordRepo(orm),
		Checkpoints: repositories.NewCheckpointRepo(orm),
		References:  repositories.NewReferenceEntityRepo(orm),
	}

	var lock common.FileLock = common.NewLocalFileLock()
	var queue common.BackfillQueue = common.NewLocalBackfillQueue(1024)
	if cfg.Redis.Enabled {
		a.Redis = common.NewRedisClient(cfg.Redis)
		lock = common.NewRedisFileLock(a.Redis, string(constants.CachePrefixFileLock))
		queue = common.NewRedisBackfillQueue(a.Redis, cfg.Backfill.Stream, constants.BackfillConsumerGroup)
	}
	a.Queue = queue

	a.Catalog = catalog.New(a.References, common.NewCacheService(0, 0), cfg.CatalogCacheTTL, a.Metrics)

	policy := sheet.DefaultLookAheadPolicy()
	policy.EmptyRunThreshold = cfg.Import.EmptyRunThreshold
	policy.Window = cfg.Import.LookAheadWindow

	a.Importer = ingest.NewImporter(ingest.Deps{
		Checkpoints: a.Checkpoints,
		Records:     a.Records,
		Index:       repositories.NewFlightIndexRepo(sqlxDB),
		Crews:       repositories.NewCrewRepo(orm),
		Catalog:     a.Catalog,
		Lock:        lock,
		Queue:       queue,
		Metrics:     a.Metrics,
	}, ingest.Options{
		BatchSize:       cfg.Import.BatchSize,
		DefaultStartRow: cfg.Import.StartRow,
		CrewPrefixes:    cfg.Import.CrewPrefixes,
		Layout:          layout,
		Policy:          policy,
	})

	a.Resolver = geo.NewResolver(geo.NewEngine(geo.DefaultZoneConfig(), geo.NewTransformCache()), a.Records)
	a.Backfill = workers.NewCoordinateBackfill(a.Records, a.Resolver, a.Metrics, cfg.Backfill.SweepsPerSecond)

	logging.Info("[App] Components initialized",
		"db_driver", cfg.DB.Driver,
		"redis", cfg.Redis.Enabled,
	)
	return a, nil
}

// APIDependencies exposes the components to the HTTP handlers.
func (a *App) APIDependencies() *api.Dependencies {
	return &api.Dependencies{
		Importer:          a.Importer,
		Checkpoints:       a.Importer.Checkpoints(),
		Records:           a.Records,
		Resolver:          a.Resolver,
		Backfill:          a.Backfill,
		SourceDir:         a.Config.Import.SourceDir,
		BackfillBatchSize: a.Config.Backfill.BatchSize,
	}
}

// HealthChecks lists the dependencies /healthCheck pings.
func (a *App) HealthChecks() map[string]api.Pinger {
	checks := map[string]api.Pinger{"database": a.SQLX}
	if a.Redis != nil {
		checks["redis"] = api.PingFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}
	return checks
}

// Close ends open import sessions and releases connections.
func (a *App) Close() {
	a.Importer.Close()
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if sqlDB, err := a.ORM.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
