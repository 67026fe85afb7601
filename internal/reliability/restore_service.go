package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quietridge/analystd/internal/events"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// restoreMarkerName is the staged-restore marker file: its presence in
// dataDir, containing the backup object key to restore, means a restore
// was requested and must be applied on the next process start before the
// database is opened.
const restoreMarkerName = ".restore_pending"

// RestoreService implements the "stage now, apply on next boot" pattern:
// an operator (or a future admin action) stages a restore by writing the
// marker file; RestoreService checks for it at process start, before any
// database connection is opened, and applies it if present.
type RestoreService struct {
	store   ObjectStore
	dataDir string
	events  *events.Manager
	log     zerolog.Logger
}

// NewRestoreService creates a RestoreService. store may be nil if no
// restore backend is configured — CheckPendingRestore still reports a
// staged marker, but ExecuteStagedRestore fails loudly rather than silently
// skipping, since a stuck marker left un-applied would mask a requested
// restore forever.
func NewRestoreService(store ObjectStore, dataDir string, evtManager *events.Manager, log zerolog.Logger) *RestoreService {
	return &RestoreService{
		store: store, dataDir: dataDir, events: evtManager,
		log: log.With().Str("service", "restore").Logger(),
	}
}

func (s *RestoreService) markerPath() string {
	return filepath.Join(s.dataDir, restoreMarkerName)
}

// StageRestore writes the marker file naming objectKey as the backup to
// restore from on the next process start.
func (s *RestoreService) StageRestore(objectKey string) error {
	return os.WriteFile(s.markerPath(), []byte(objectKey), 0o644)
}

// CheckPendingRestore reports whether a restore marker is present.
func (s *RestoreService) CheckPendingRestore() (bool, error) {
	_, err := os.Stat(s.markerPath())
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat restore marker: %w", err)
	}
	return true, nil
}

// ExecuteStagedRestore downloads the backup named by the marker, verifies
// its checksum against the embedded manifest, and overwrites the data
// directory's database file with the restored copy. The marker is removed
// only after a fully successful restore.
func (s *RestoreService) ExecuteStagedRestore(ctx context.Context) error {
	objectKeyBytes, err := os.ReadFile(s.markerPath())
	if err != nil {
		return fmt.Errorf("read restore marker: %w", err)
	}
	objectKey := string(objectKeyBytes)

	if s.store == nil {
		return fmt.Errorf("restore staged for %q but no object store is configured", objectKey)
	}

	reader, err := s.store.Download(ctx, objectKey)
	if err != nil {
		s.emitFailure(err)
		return fmt.Errorf("download backup %s: %w", objectKey, err)
	}
	defer reader.Close()

	tmpDir, err := os.MkdirTemp(s.dataDir, "restore-*")
	if err != nil {
		s.emitFailure(err)
		return fmt.Errorf("create restore staging dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	manifest, dbPath, err := extractArchive(reader, tmpDir)
	if err != nil {
		s.emitFailure(err)
		return fmt.Errorf("extract backup %s: %w", objectKey, err)
	}

	checksum, err := checksumFile(dbPath)
	if err != nil {
		s.emitFailure(err)
		return fmt.Errorf("checksum restored database: %w", err)
	}
	if checksum != manifest.Checksum {
		err := fmt.Errorf("checksum mismatch for %s: manifest says %s, got %s", objectKey, manifest.Checksum, checksum)
		s.emitFailure(err)
		return err
	}

	destPath := filepath.Join(s.dataDir, manifest.DBFilename)
	if err := copyFile(dbPath, destPath); err != nil {
		s.emitFailure(err)
		return fmt.Errorf("install restored database: %w", err)
	}

	if err := os.Remove(s.markerPath()); err != nil {
		s.log.Warn().Err(err).Msg("restored database successfully but failed to clear marker")
	}

	s.log.Info().Str("object", objectKey).Str("manifest_id", manifest.ID).Msg("restore completed")
	if s.events != nil {
		s.events.Emit(events.RestoreCompleted, "reliability", &events.RestoreCompletedData{ManifestID: manifest.ID})
	}
	return nil
}

func (s *RestoreService) emitFailure(err error) {
	s.log.Error().Err(err).Msg("restore failed")
	if s.events != nil {
		s.events.Emit(events.RestoreFailed, "reliability", &events.RestoreFailedData{Error: err.Error()})
	}
}

// extractArchive unpacks a tar.gz backup archive into destDir and returns
// its manifest plus the extracted database file's path.
func extractArchive(r io.Reader, destDir string) (*Manifest, string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, "", fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)

	var manifest *Manifest
	var dbPath string

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("read tar entry: %w", err)
		}

		destPath := filepath.Join(destDir, filepath.Base(hdr.Name))
		out, err := os.Create(destPath)
		if err != nil {
			return nil, "", fmt.Errorf("create %s: %w", destPath, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return nil, "", fmt.Errorf("write %s: %w", destPath, err)
		}
		out.Close()

		if hdr.Name == "manifest.msgpack" {
			data, err := os.ReadFile(destPath)
			if err != nil {
				return nil, "", fmt.Errorf("read manifest: %w", err)
			}
			var m Manifest
			if err := msgpack.Unmarshal(data, &m); err != nil {
				return nil, "", fmt.Errorf("decode manifest: %w", err)
			}
			manifest = &m
		} else {
			dbPath = destPath
		}
	}

	if manifest == nil {
		return nil, "", fmt.Errorf("archive has no manifest.msgpack entry")
	}
	if dbPath == "" {
		return nil, "", fmt.Errorf("archive has no database entry")
	}
	return manifest, dbPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// verifyChecksum is a small standalone helper used by maintenance's backup
// verification step, independent of a RestoreService instance.
func verifyChecksum(path, want string) error {
	got, err := checksumFile(path)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("checksum mismatch: want %s, got %s", want, got)
	}
	return nil
}
