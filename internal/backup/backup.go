// Package backup snapshots the SQLite habit database before operations that
// rewrite it (schema migrations, forced re-initialization, restores).
package backup

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/microhabits/internal/constants"
	"github.com/julianstephens/microhabits/internal/logger"
)

const (
	// MaxSnapshots is how many snapshots are kept after rotation
	MaxSnapshots = 14
	// DirName is the snapshot directory, created next to the database
	DirName = "backups"

	filePrefix  = constants.AppName + "-"
	fileSuffix  = ".db"
	stampLayout = "20060102-150405"
)

// Snapshot describes one backup file.
type Snapshot struct {
	Path    string
	TakenAt time.Time
	// Label names the operation that triggered the snapshot, empty for manual ones
	Label string
	Size  int64
}

type Manager struct {
	dbPath string
	dir    string
	keep   int
	now    func() time.Time
}

func NewManager(dbPath string) *Manager {
	return &Manager{
		dbPath: dbPath,
		dir:    filepath.Join(filepath.Dir(dbPath), DirName),
		keep:   MaxSnapshots,
		now:    time.Now,
	}
}

// Dir returns the snapshot directory
func (m *Manager) Dir() string {
	return m.dir
}

// Create snapshots the database and rotates old snapshots.
func (m *Manager) Create(label string) (Snapshot, error) {
	snap, err := m.create(label)
	if err != nil {
		return Snapshot{}, err
	}
	if err := m.rotate(); err != nil {
		logger.Warn("Failed to rotate old backups", "dir", m.dir, "error", err)
	}
	return snap, nil
}

func (m *Manager) create(label string) (Snapshot, error) {
	if _, err := os.Stat(m.dbPath); err != nil {
		return Snapshot{}, fmt.Errorf("database does not exist: %s", m.dbPath)
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return Snapshot{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	label = sanitizeLabel(label)
	takenAt := m.now().UTC().Truncate(time.Second)
	path, err := m.uniquePath(takenAt, label)
	if err != nil {
		return Snapshot{}, err
	}

	if err := vacuumInto(m.dbPath, path); err != nil {
		logger.Debug("VACUUM INTO failed, copying file", "error", err)
		if err := copyFile(m.dbPath, path); err != nil {
			return Snapshot{}, fmt.Errorf("failed to backup database: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to stat backup: %w", err)
	}
	logger.Info("Created database backup", "path", path, "label", label)
	return Snapshot{Path: path, TakenAt: takenAt, Label: label, Size: info.Size()}, nil
}

func (m *Manager) uniquePath(takenAt time.Time, label string) (string, error) {
	base := filePrefix + takenAt.Format(stampLayout)
	if label != "" {
		base += "-" + label
	}
	path := filepath.Join(m.dir, base+fileSuffix)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
		if n > 100 {
			return "", fmt.Errorf("failed to generate unique backup filename")
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s.%d%s", base, n, fileSuffix))
	}
}

// List returns the snapshots in the backup directory, newest first.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	snaps := []Snapshot{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		takenAt, label, ok := parseName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snaps = append(snaps, Snapshot{
			Path:    filepath.Join(m.dir, entry.Name()),
			TakenAt: takenAt,
			Label:   label,
			Size:    info.Size(),
		})
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		if !snaps[i].TakenAt.Equal(snaps[j].TakenAt) {
			return snaps[i].TakenAt.After(snaps[j].TakenAt)
		}
		return snaps[i].Path > snaps[j].Path
	})
	return snaps, nil
}

func (m *Manager) rotate() error {
	snaps, err := m.List()
	if err != nil {
		return err
	}
	for i := m.keep; i < len(snaps); i++ {
		if err := os.Remove(snaps[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", snaps[i].Path, err)
		}
	}
	return nil
}

// Restore replaces the database with the snapshot at path. The current
// database is snapshotted first. The caller must close any open connection.
func (m *Manager) Restore(path string) (Snapshot, error) {
	if _, err := os.Stat(path); err != nil {
		return Snapshot{}, fmt.Errorf("backup file does not exist: %s", path)
	}
	if err := verify(path); err != nil {
		return Snapshot{}, fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	var previous Snapshot
	if _, err := os.Stat(m.dbPath); err == nil {
		// not rotated, so the file being restored cannot be removed under us
		previous, err = m.create("pre-restore")
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to backup current database before restore: %w", err)
		}
	}

	tmp := m.dbPath + ".restore.tmp"
	if err := copyFile(path, tmp); err != nil {
		return Snapshot{}, fmt.Errorf("failed to copy backup file: %w", err)
	}
	if err := os.Rename(tmp, m.dbPath); err != nil {
		_ = os.Remove(tmp)
		return Snapshot{}, fmt.Errorf("failed to restore database: %w", err)
	}

	logger.Info("Restored database backup", "from", path)
	return previous, nil
}

func parseName(name string) (time.Time, string, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, "", false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	if len(rest) < len(stampLayout) {
		return time.Time{}, "", false
	}

	takenAt, err := time.ParseInLocation(stampLayout, rest[:len(stampLayout)], time.UTC)
	if err != nil {
		return time.Time{}, "", false
	}

	suffix := rest[len(stampLayout):]
	if suffix != "" && suffix[0] != '-' && suffix[0] != '.' {
		return time.Time{}, "", false
	}
	// drop the ".N" collision counter
	if i := strings.LastIndex(suffix, "."); i >= 0 {
		suffix = suffix[:i]
	}
	label := strings.TrimPrefix(suffix, "-")
	return takenAt, label, true
}

func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '_':
			b.WriteRune('-')
		}
	}
	return b.String()
}

func vacuumInto(src, dst string) error {
	db, err := sql.Open("sqlite", "file:"+src+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("VACUUM INTO ?", dst)
	return err
}

func verify(path string) error {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()

	var count int
	return db.QueryRow("SELECT COUNT(*) FROM sqlite_master").Scan(&count)
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
	return out.Sync()
}
