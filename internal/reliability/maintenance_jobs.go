package reliability

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/quietridge/analystd/internal/database"
	"github.com/rs/zerolog"
)

// criticalFreeGB is the free-space floor below which daily maintenance
// halts rather than proceeds: running analyses against a filesystem this
// close to full risks a corrupt write mid-snapshot.
const criticalFreeGB = 0.5

// lowFreeGB only logs a warning; the service keeps running.
const lowFreeGB = 5.0

// DailyMaintenanceJob runs the persistence layer's daily upkeep: an
// integrity check, a WAL checkpoint, a disk-space guard, and a check that
// the most recent backup is actually retrievable. It satisfies
// service.MaintenanceRunner.
type DailyMaintenanceJob struct {
	db      *database.DB
	backups *BackupService
	dataDir string
	log     zerolog.Logger
}

// NewDailyMaintenanceJob creates a DailyMaintenanceJob. backups may be nil
// if no object store is configured, in which case backup verification is
// skipped rather than failing the whole job.
func NewDailyMaintenanceJob(db *database.DB, backups *BackupService, dataDir string, log zerolog.Logger) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		db: db, backups: backups, dataDir: dataDir,
		log: log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Run executes the daily maintenance job. An integrity-check failure or a
// disk-space critical condition halts it with an error; every other step
// logs and continues, so one slow/unreachable object store never blocks WAL
// upkeep.
func (j *DailyMaintenanceJob) Run() error {
	start := time.Now()
	j.log.Info().Msg("daily maintenance started")

	if err := j.db.HealthCheck(context.Background()); err != nil {
		j.log.Error().Err(err).Msg("integrity check failed")
		return fmt.Errorf("daily maintenance: integrity check failed: %w", err)
	}

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	if j.backups != nil {
		if err := j.verifyLatestBackup(context.Background()); err != nil {
			j.log.Error().Err(err).Msg("backup verification failed; most recent backup may be unusable")
		}
	}

	j.log.Info().Dur("duration_ms", time.Since(start)).Msg("daily maintenance completed")
	return nil
}

// Name identifies this job for the cron scheduler's logs.
func (j *DailyMaintenanceJob) Name() string { return "daily_maintenance" }

func (j *DailyMaintenanceJob) checkDiskSpace() error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(j.dataDir, &stat); err != nil {
		return fmt.Errorf("daily maintenance: stat filesystem: %w", err)
	}

	availableGB := float64(stat.Bavail*uint64(stat.Bsize)) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Msg("disk space checked")

	if availableGB < criticalFreeGB {
		j.log.Error().Float64("available_gb", availableGB).Msg("critical: insufficient disk space, halting maintenance")
		return fmt.Errorf("daily maintenance: only %.2f GB free, critical threshold is %.2f GB", availableGB, criticalFreeGB)
	}
	if availableGB < lowFreeGB {
		j.log.Warn().Float64("available_gb", availableGB).Msg("disk space running low")
	}
	return nil
}

// verifyLatestBackup downloads and checksums the most recent uploaded
// backup without installing it, confirming it would actually restore.
func (j *DailyMaintenanceJob) verifyLatestBackup(ctx context.Context) error {
	backups, err := j.backups.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found")
	}

	latest := backups[0]
	for _, b := range backups {
		if b.Timestamp.After(latest.Timestamp) {
			latest = b
		}
	}

	if _, _, err := j.backups.downloadAndVerify(ctx, latest.Object); err != nil {
		return err
	}

	j.log.Debug().Str("object", latest.Object).Msg("latest backup verified")
	return nil
}

// WeeklyMaintenanceJob runs a VACUUM to reclaim space left behind by a
// week of inserts and deletes. It satisfies service.MaintenanceRunner.
type WeeklyMaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewWeeklyMaintenanceJob creates a WeeklyMaintenanceJob.
func NewWeeklyMaintenanceJob(db *database.DB, log zerolog.Logger) *WeeklyMaintenanceJob {
	return &WeeklyMaintenanceJob{db: db, log: log.With().Str("job", "weekly_maintenance").Logger()}
}

// Run executes the weekly maintenance job.
func (j *WeeklyMaintenanceJob) Run() error {
	start := time.Now()
	j.log.Info().Msg("weekly maintenance started")

	statsBefore, err := j.db.GetStats()
	if err != nil {
		j.log.Warn().Err(err).Msg("failed to read stats before VACUUM")
	}

	if err := j.db.Vacuum(); err != nil {
		return fmt.Errorf("weekly maintenance: VACUUM failed: %w", err)
	}

	statsAfter, err := j.db.GetStats()
	if err == nil && statsBefore != nil {
		j.log.Info().
			Int64("size_before_bytes", statsBefore.SizeBytes).
			Int64("size_after_bytes", statsAfter.SizeBytes).
			Dur("duration_ms", time.Since(start)).
			Msg("weekly maintenance completed")
	} else {
		j.log.Info().Dur("duration_ms", time.Since(start)).Msg("weekly maintenance completed")
	}
	return nil
}

// Name identifies this job for the cron scheduler's logs.
func (j *WeeklyMaintenanceJob) Name() string { return "weekly_maintenance" }
