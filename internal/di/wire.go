// Package di wires the process's dependency graph in one place: database
// connection, repositories, the settings store, the external collaborators
// (reasoning invoker, vector/graph knowledge clients), the pipeline, the
// scheduler, the watchlist manager, the reliability services, the service
// loop, and the admin HTTP server. Every dependency is constructed exactly
// once here and passed down by constructor argument; nothing in the rest of
// the tree reaches for a global.
package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quietridge/analystd/internal/calendar"
	"github.com/quietridge/analystd/internal/config"
	"github.com/quietridge/analystd/internal/database"
	"github.com/quietridge/analystd/internal/events"
	"github.com/quietridge/analystd/internal/ingest"
	"github.com/quietridge/analystd/internal/knowledgeclient"
	"github.com/quietridge/analystd/internal/pipeline"
	"github.com/quietridge/analystd/internal/reasoning"
	"github.com/quietridge/analystd/internal/reliability"
	"github.com/quietridge/analystd/internal/retrieval"
	"github.com/quietridge/analystd/internal/scheduler"
	"github.com/quietridge/analystd/internal/server"
	"github.com/quietridge/analystd/internal/service"
	"github.com/quietridge/analystd/internal/settings"
	"github.com/quietridge/analystd/internal/store"
	"github.com/quietridge/analystd/internal/watchlist"
	"github.com/rs/zerolog"
)

// Container holds every long-lived component the process needs, constructed
// and ready to run. Close releases everything that owns a resource (at
// present, just the database connection).
type Container struct {
	DB *database.DB

	Stocks    *store.StockRepository
	Schedules *store.ScheduleRepository
	Runs      *store.RunRepository
	Analysis  *store.AnalysisRepository
	Status    *store.ServiceStatusRepository
	Audit     *store.AuditRepository

	Settings *settings.Store
	Calendar *calendar.Calendar
	Events   *events.Manager

	Pipeline   *pipeline.Engine
	Scheduler  *scheduler.Scheduler
	Watchlist  *watchlist.Manager

	ObjectStore reliability.ObjectStore
	Backups     *reliability.BackupService
	Restore     *reliability.RestoreService
	DailyJob    *reliability.DailyMaintenanceJob
	WeeklyJob   *reliability.WeeklyMaintenanceJob

	Service *service.Service
	Server  *server.Server

	log zerolog.Logger
}

// Wire constructs a Container from cfg. host identifies the current process
// for the service's single-instance guard and heartbeat row (typically
// os.Hostname(), or gopsutil's host.Info().Hostname — resolved at the
// cmd/server/main.go call site, not here). On any construction failure, every
// resource opened so far is released before the error is returned.
func Wire(cfg *config.Config, host string, pid int, log zerolog.Logger) (*Container, error) {
	c := &Container{log: log}

	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("%s/analystd.db", cfg.DataDir),
		Profile: database.ProfileLedger,
		Name:    "analystd",
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	c.DB = db

	if err := db.Migrate(); err != nil {
		c.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	c.Events = events.NewManager(log)

	c.Stocks = store.NewStockRepository(db.Conn())
	c.Schedules = store.NewScheduleRepository(db.Conn())
	c.Runs = store.NewRunRepository(db.Conn())
	c.Analysis = store.NewAnalysisRepository(db.Conn())
	c.Status = store.NewServiceStatusRepository(db.Conn())
	c.Audit = store.NewAuditRepository(db.Conn())

	c.Settings = settings.New(db.Conn(), c.Events)

	cal, err := calendar.New(cfg.TradingTimezone, cfg.MarketHolidays)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("build calendar: %w", err)
	}
	c.Calendar = cal

	c.Watchlist = watchlist.New(c.Stocks, c.Events, log)

	invoker := reasoning.New(cfg.ReasoningBinaryPath, cfg.DataDir,
		func() bool { return c.Settings.GetBool(settings.KeyDryRunMode) },
		func() []string { return splitCommaList(c.Settings.GetString(settings.KeyReasoningEnvWhitelist)) },
	)

	var vectorStore *knowledgeclient.VectorStoreClient
	var graphStore *knowledgeclient.GraphStoreClient
	if cfg.VectorStoreURL != "" {
		vectorStore = knowledgeclient.NewVectorStoreClient(cfg.VectorStoreURL, cfg.ExternalStoreTimeout, log)
	}
	if cfg.GraphStoreURL != "" {
		graphStore = knowledgeclient.NewGraphStoreClient(cfg.GraphStoreURL, cfg.ExternalStoreTimeout, log)
	}

	fanout := ingest.New(vectorStoreOrNil(vectorStore), graphStoreOrNil(graphStore), log)
	enricher := retrieval.NewStoreEnricher(c.Analysis)
	retrievalBuilder := retrieval.NewBuilder(retrievalStoreOrNil(vectorStore), retrievalGraphOrNil(graphStore), enricher, log)

	c.Pipeline = pipeline.New(
		c.Stocks, c.Runs, c.Analysis, c.Status, c.Settings,
		pipeline.NewDefaultPromptBuilder(), invoker, fanout,
		vectorStoreOrNil(vectorStore), retrievalBuilder, c.Events, cfg.AnalysesDir, log,
	)

	c.Scheduler = scheduler.New(c.Schedules, c.Stocks, c.Runs, c.Status, c.Settings, c.Calendar, c.Pipeline, log)

	if cfg.S3Bucket != "" {
		objStore, err := reliability.NewS3Store(context.Background(), reliability.S3Config{
			Bucket: cfg.S3Bucket, Region: cfg.S3Region, Endpoint: cfg.S3Endpoint,
			AccessKeyID: cfg.S3AccessKeyID, SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("build object store: %w", err)
		}
		c.ObjectStore = objStore
		c.Backups = reliability.NewBackupService(c.DB, c.ObjectStore, cfg.BackupStageDir, c.Events, log)
	}
	c.Restore = reliability.NewRestoreService(c.ObjectStore, cfg.DataDir, c.Events, log)

	c.DailyJob = reliability.NewDailyMaintenanceJob(c.DB, c.Backups, cfg.DataDir, log)
	c.WeeklyJob = reliability.NewWeeklyMaintenanceJob(c.DB, log)

	c.Service = service.New(
		c.Status, c.Scheduler, c.Calendar,
		time.Duration(cfg.TickIntervalSec)*time.Second, pid, host,
		c.DailyJob, c.WeeklyJob, c.Watchlist, log,
	)

	c.Server = server.New(server.Config{
		Port:      cfg.Port,
		Status:    c.Status,
		Schedules: c.Schedules,
		Audit:     c.Audit,
		DevMode:   cfg.DevMode,
	}, log)

	return c, nil
}

// Close releases every resource the Container owns. Safe to call on a
// partially constructed Container (e.g. from a failed Wire).
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// vectorStoreOrNil/graphStoreOrNil/retrievalStoreOrNil/retrievalGraphOrNil
// convert a possibly-nil concrete client into the interface type its
// consumer expects. A plain `var x retrieval.VectorStore = vectorStore`
// would produce a non-nil interface wrapping a nil pointer when
// vectorStore is nil, which breaks every "nil means disabled" nil check
// downstream — these helpers keep the interface itself nil in that case.
func vectorStoreOrNil(c *knowledgeclient.VectorStoreClient) ingest.VectorEmbedder {
	if c == nil {
		return nil
	}
	return c
}

func graphStoreOrNil(c *knowledgeclient.GraphStoreClient) ingest.GraphExtractor {
	if c == nil {
		return nil
	}
	return c
}

func retrievalStoreOrNil(c *knowledgeclient.VectorStoreClient) retrieval.VectorStore {
	if c == nil {
		return nil
	}
	return c
}

func retrievalGraphOrNil(c *knowledgeclient.GraphStoreClient) retrieval.GraphStore {
	if c == nil {
		return nil
	}
	return c
}

// splitCommaList parses a comma-separated settings value, trimming
// whitespace and dropping empty elements.
func splitCommaList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
