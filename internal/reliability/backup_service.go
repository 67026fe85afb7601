package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quietridge/analystd/internal/database"
	"github.com/quietridge/analystd/internal/events"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const backupObjectPrefix = "analystd-backup-"

// Manifest describes one backup archive's contents, encoded with msgpack
// and uploaded alongside the archive itself.
type Manifest struct {
	ID         string    `msgpack:"id"`
	Timestamp  time.Time `msgpack:"timestamp"`
	DBFilename string    `msgpack:"db_filename"`
	SizeBytes  int64     `msgpack:"size_bytes"`
	Checksum   string    `msgpack:"checksum"`
}

// BackupInfo is one backup as reported by a bucket listing.
type BackupInfo struct {
	Object    string
	Timestamp time.Time
	SizeBytes int64
	AgeHours  int64
}

// BackupService snapshots the persistence layer's database (VACUUM INTO a
// temp file, so writers are never blocked), archives it as tar.gz with a
// SHA-256 checksum, and uploads the archive plus its msgpack manifest to an
// ObjectStore. Rotate deletes backups older than a retention age in days,
// never keeping fewer than the 3 newest regardless of age.
type BackupService struct {
	db       *database.DB
	store    ObjectStore
	stageDir string
	events   *events.Manager
	log      zerolog.Logger
}

// NewBackupService creates a BackupService. stageDir is a scratch directory
// for the snapshot/archive before upload; it is created if missing and the
// per-run staging file is always removed afterward.
func NewBackupService(db *database.DB, store ObjectStore, stageDir string, evtManager *events.Manager, log zerolog.Logger) *BackupService {
	return &BackupService{
		db: db, store: store, stageDir: stageDir, events: evtManager,
		log: log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUpload snapshots the database, archives it, and uploads the
// result plus its manifest to the configured ObjectStore.
func (s *BackupService) CreateAndUpload(ctx context.Context) error {
	start := time.Now()

	if err := os.MkdirAll(s.stageDir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	runID := uuid.NewString()
	snapshotPath := filepath.Join(s.stageDir, runID+".db")
	defer os.Remove(snapshotPath)

	if _, err := s.db.Conn().ExecContext(ctx, `VACUUM INTO ?`, snapshotPath); err != nil {
		s.emitFailure(err)
		return fmt.Errorf("snapshot database: %w", err)
	}

	checksum, err := checksumFile(snapshotPath)
	if err != nil {
		s.emitFailure(err)
		return fmt.Errorf("checksum snapshot: %w", err)
	}

	info, err := os.Stat(snapshotPath)
	if err != nil {
		s.emitFailure(err)
		return fmt.Errorf("stat snapshot: %w", err)
	}

	manifest := Manifest{
		ID:         runID,
		Timestamp:  time.Now().UTC(),
		DBFilename: "analystd.db",
		SizeBytes:  info.Size(),
		Checksum:   checksum,
	}

	archivePath := filepath.Join(s.stageDir, runID+".tar.gz")
	defer os.Remove(archivePath)
	manifestBytes, err := msgpack.Marshal(manifest)
	if err != nil {
		s.emitFailure(err)
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := archiveSnapshot(archivePath, snapshotPath, manifest.DBFilename, manifestBytes); err != nil {
		s.emitFailure(err)
		return fmt.Errorf("archive snapshot: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		s.emitFailure(err)
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()
	archiveInfo, err := archiveFile.Stat()
	if err != nil {
		s.emitFailure(err)
		return fmt.Errorf("stat archive: %w", err)
	}

	objectKey := backupObjectPrefix + manifest.Timestamp.Format("2006-01-02-150405") + ".tar.gz"
	if err := s.store.Upload(ctx, objectKey, archiveFile, archiveInfo.Size()); err != nil {
		s.emitFailure(err)
		return fmt.Errorf("upload archive: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(start)).
		Str("object", objectKey).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("backup completed")
	if s.events != nil {
		s.events.Emit(events.BackupCompleted, "reliability", &events.BackupCompletedData{
			ManifestID: manifest.ID, SizeBytes: archiveInfo.Size(), Object: objectKey,
		})
	}
	return nil
}

func (s *BackupService) emitFailure(err error) {
	s.log.Error().Err(err).Msg("backup failed")
	if s.events != nil {
		s.events.Emit(events.BackupFailed, "reliability", &events.BackupFailedData{Error: err.Error()})
	}
}

// ListBackups returns every backup object under the configured bucket,
// newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupObjectPrefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	now := time.Now()
	out := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ".tar.gz") {
			continue
		}
		out = append(out, BackupInfo{
			Object:    obj.Key,
			Timestamp: obj.LastModified,
			SizeBytes: obj.SizeBytes,
			AgeHours:  int64(now.Sub(obj.LastModified).Hours()),
		})
	}
	return out, nil
}

// minBackupsToKeep is the retention floor: rotation never drops below this
// count regardless of age.
const minBackupsToKeep = 3

// Rotate deletes backups older than retentionDays, keeping at least
// minBackupsToKeep regardless of age. retentionDays == 0 means "keep
// everything beyond the minimum."
func (s *BackupService) Rotate(ctx context.Context, retentionDays int) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= minBackupsToKeep {
		return nil
	}

	var cutoff time.Time
	if retentionDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -retentionDays)
	}

	deleted := 0
	for i, b := range backups {
		if i < minBackupsToKeep {
			continue
		}
		if retentionDays == 0 {
			continue
		}
		if b.Timestamp.Before(cutoff) {
			if err := s.store.Delete(ctx, b.Object); err != nil {
				s.log.Error().Err(err).Str("object", b.Object).Msg("failed to delete old backup")
				continue
			}
			deleted++
		}
	}

	s.log.Info().Int("deleted", deleted).Int("remaining", len(backups)-deleted).Msg("backup rotation complete")
	return nil
}

// downloadAndVerify downloads objectKey, extracts it to a scratch directory,
// and confirms its database file's checksum matches its manifest, without
// installing anything. Used by daily maintenance to confirm the most
// recent backup would actually restore.
func (s *BackupService) downloadAndVerify(ctx context.Context, objectKey string) (io.ReadCloser, *Manifest, error) {
	reader, err := s.store.Download(ctx, objectKey)
	if err != nil {
		return nil, nil, fmt.Errorf("download %s: %w", objectKey, err)
	}
	defer reader.Close()

	tmpDir, err := os.MkdirTemp(s.stageDir, "verify-*")
	if err != nil {
		return nil, nil, fmt.Errorf("create verify staging dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	manifest, dbPath, err := extractArchive(reader, tmpDir)
	if err != nil {
		return nil, nil, fmt.Errorf("extract %s: %w", objectKey, err)
	}

	if err := verifyChecksum(dbPath, manifest.Checksum); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", objectKey, err)
	}
	return nil, manifest, nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}

// archiveSnapshot writes dbPath under dbName and manifestBytes under
// "manifest.msgpack" into a tar.gz at archivePath.
func archiveSnapshot(archivePath, dbPath, dbName string, manifestBytes []byte) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer archiveFile.Close()

	gz := gzip.NewWriter(archiveFile)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	if err := addFileToTar(tw, dbPath, dbName); err != nil {
		return err
	}
	return addBytesToTar(tw, "manifest.msgpack", manifestBytes)
}

func addFileToTar(tw *tar.Writer, path, nameInArchive string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	if err := tw.WriteHeader(&tar.Header{
		Name: nameInArchive, Size: info.Size(), Mode: int64(info.Mode()), ModTime: info.ModTime(),
	}); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func addBytesToTar(tw *tar.Writer, nameInArchive string, data []byte) error {
	if err := tw.WriteHeader(&tar.Header{
		Name: nameInArchive, Size: int64(len(data)), Mode: 0o644, ModTime: time.Now(),
	}); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}
