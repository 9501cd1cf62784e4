package assets

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"serverdeck/internal/fsutil"
)

const (
	stampFile   = ".assets-stamp"
	iconMapFile = "item-icon-map.json"
)

// archiveStamp is the archive's modification time in milliseconds. The cache
// is rebuilt whenever it changes; filesystems that do not preserve mtime
// force a rebuild on every run.
func archiveStamp(archivePath string) (string, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(info.ModTime().UnixMilli(), 10), nil
}

func (m *Manager) upToDate(archivePath string) bool {
	stamp, err := archiveStamp(archivePath)
	if err != nil {
		return false
	}
	recorded, err := os.ReadFile(filepath.Join(m.cacheDir, stampFile))
	if err != nil || strings.TrimSpace(string(recorded)) != stamp {
		return false
	}
	iconMap, err := os.ReadFile(filepath.Join(m.cacheDir, iconMapFile))
	if err != nil {
		return false
	}
	// "{}" means a previous pass found no redirects, which only happens with
	// a broken archive.
	return len(strings.TrimSpace(string(iconMap))) > 2
}

func (m *Manager) writeStamp(archivePath string) error {
	stamp, err := archiveStamp(archivePath)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(filepath.Join(m.cacheDir, stampFile), 0o644, strings.NewReader(stamp), false)
}
