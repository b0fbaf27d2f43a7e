package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Backup file prefixes. All backups live flat in the backup directory and
// are named <prefix>-<epochMillis>.json.
const (
	prefixAuto       = "auto-backup"
	prefixCorrupted  = "corrupted"
	prefixPreRestore = "pre-restore"
	prefixLegacy     = "legacy-migration"
)

// backupName builds a collision-free backup file name. Millisecond stamps
// can collide under fast successive saves; the stamp is bumped until the
// name is free.
func (s *Store) backupName(prefix string) string {
	ms := s.now().UnixMilli()
	for {
		name := filepath.Join(s.backupDir, fmt.Sprintf("%s-%d.json", prefix, ms))
		if _, err := os.Stat(name); os.IsNotExist(err) {
			return name
		}
		ms++
	}
}

// writeBackupLocked writes raw bytes into the backup directory under the
// given prefix.
func (s *Store) writeBackupLocked(prefix string, raw []byte) error {
	return os.WriteFile(s.backupName(prefix), raw, 0o600)
}

// backupCurrentLocked copies the current on-disk document into the backup
// directory.
func (s *Store) backupCurrentLocked(prefix string) error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	return s.writeBackupLocked(prefix, raw)
}

// pruneBackupsLocked trims automatic backups down to the retention count,
// oldest first. Quarantine and pre-restore snapshots are never pruned.
func (s *Store) pruneBackupsLocked() {
	autos := s.listBackupsLocked(prefixAuto)
	if len(autos) <= s.retention {
		return
	}
	for _, b := range autos[:len(autos)-s.retention] {
		if err := os.Remove(filepath.Join(s.backupDir, b.Name)); err != nil {
			s.logger.Warn("backup prune failed for %s: %v", b.Name, err)
		}
	}
}

// BackupInfo describes one backup file.
type BackupInfo struct {
	Name      string
	CreatedAt time.Time
	Size      int64
}

// listBackupsLocked returns backups matching prefix (all prefixes when
// empty), oldest first.
func (s *Store) listBackupsLocked(prefix string) []BackupInfo {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return nil
	}

	var out []BackupInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix+"-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupInfo{
			Name:      name,
			CreatedAt: stampFromName(name, info.ModTime()),
			Size:      info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// stampFromName recovers the creation stamp from the epoch-millis file
// name, falling back to the file mtime for foreign names.
func stampFromName(name string, fallback time.Time) time.Time {
	base := strings.TrimSuffix(name, ".json")
	idx := strings.LastIndexByte(base, '-')
	if idx < 0 {
		return fallback
	}
	var ms int64
	if _, err := fmt.Sscanf(base[idx+1:], "%d", &ms); err != nil {
		return fallback
	}
	return time.UnixMilli(ms)
}

// ListBackups returns every backup in the backup directory, oldest first.
func (s *Store) ListBackups() []BackupInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listBackupsLocked("")
}

// RestoreBackup replaces the live document with the named backup. The
// current document is snapshotted first so a restore is itself reversible.
// The backup must pass the same validation as a startup load.
func (s *Store) RestoreBackup(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if filepath.Base(name) != name {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, name)
	}
	raw, err := os.ReadFile(filepath.Join(s.backupDir, name))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, name)
	}
	if err != nil {
		return err
	}

	if err := ValidateRaw(raw); err != nil {
		return err
	}

	if _, err := os.Stat(s.path); err == nil {
		if err := s.backupCurrentLocked(prefixPreRestore); err != nil {
			return err
		}
	}

	if err := s.decodeLocked(raw); err != nil {
		return err
	}
	s.logger.Info("restored configuration from backup %s", name)
	return s.persistLocked(false)
}
