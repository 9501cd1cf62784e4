// Package assets maintains a local cache of the icons the control panel
// shows, extracted from the game's Assets.zip next to the server directory.
package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/singleflight"

	"serverdeck/internal/broadcast"
	"serverdeck/internal/fsutil"
	"serverdeck/internal/logging"
	"serverdeck/internal/metrics"
)

const (
	archiveName  = "Assets.zip"
	cacheDirName = "asset-cache"
	extractKey   = "extract"
)

var ErrArchiveMissing = errors.New("Assets.zip not found")

// ExtractionResult is reported to UI surfaces as-is.
type ExtractionResult struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	TotalFiles int    `json:"totalFiles"`
}

type Options struct {
	// DataDir holds the cache directory.
	DataDir     string
	Logger      *logging.Logger
	Broadcaster broadcast.Broadcaster
	Metrics     *metrics.Registry
}

type Manager struct {
	cacheDir    string
	logger      *logging.Logger
	broadcaster broadcast.Broadcaster
	metrics     *metrics.Registry
	group       singleflight.Group

	openArchive func(path string) (*zip.ReadCloser, error)
}

func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = broadcast.Discard{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Default
	}
	return &Manager{
		cacheDir:    filepath.Join(opts.DataDir, cacheDirName),
		logger:      opts.Logger.Component("assets"),
		broadcaster: opts.Broadcaster,
		metrics:     opts.Metrics,
		openArchive: zip.OpenReader,
	}
}

func (m *Manager) CacheDir() string {
	return m.cacheDir
}

// AreCached reports whether a previous extraction completed. It does not
// check freshness against the archive.
func (m *Manager) AreCached() bool {
	return fsutil.Exists(filepath.Join(m.cacheDir, stampFile)) && fsutil.Exists(filepath.Join(m.cacheDir, iconMapFile))
}

// ArchivePath is where the archive is expected for serverDir.
func ArchivePath(serverDir string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(serverDir)), archiveName)
}

// Extract brings the cache up to date with the archive beside serverDir.
// Concurrent callers share a single pass and receive the same result. ctx
// bounds only how long this caller waits; the pass itself runs to
// completion for the callers still waiting on it.
func (m *Manager) Extract(ctx context.Context, serverDir string) ExtractionResult {
	if ctx == nil {
		ctx = context.Background()
	}
	results := m.group.DoChan(extractKey, func() (any, error) {
		return m.run(serverDir), nil
	})
	select {
	case res := <-results:
		return res.Val.(ExtractionResult)
	case <-ctx.Done():
		return ExtractionResult{Success: false, Error: ctx.Err().Error()}
	}
}

func (m *Manager) run(serverDir string) ExtractionResult {
	_ = m.broadcaster.Broadcast(broadcast.ChannelAssetsExtracting, nil)
	result := m.extract(serverDir)
	m.metrics.RecordExtraction(result.TotalFiles, !result.Success)
	if result.Success {
		_ = m.broadcaster.Broadcast(broadcast.ChannelAssetsReady, map[string]int{"totalFiles": result.TotalFiles})
		m.logger.Info("asset cache ready", map[string]string{
			"cache_dir":   m.cacheDir,
			"total_files": strconv.Itoa(result.TotalFiles),
		})
	} else {
		_ = m.broadcaster.Broadcast(broadcast.ChannelAssetsError, map[string]string{"error": result.Error})
		m.logger.Warn("asset extraction failed", map[string]string{"error": result.Error})
	}
	return result
}

func (m *Manager) extract(serverDir string) ExtractionResult {
	archivePath := ArchivePath(serverDir)
	if !fsutil.Exists(archivePath) {
		return failure(ErrArchiveMissing)
	}
	if m.upToDate(archivePath) {
		m.logger.Debug("asset cache up to date", map[string]string{"archive": archivePath})
		return ExtractionResult{Success: true, TotalFiles: 0}
	}

	if err := os.MkdirAll(m.cacheDir, 0o755); err != nil {
		return failure(fmt.Errorf("create cache directory: %w", err))
	}
	archive, err := m.openArchive(archivePath)
	if err != nil {
		return failure(err)
	}

	total, err := m.extractArchive(archive)
	if err == nil {
		err = m.writeIconMap(m.buildIconMap(archive))
	}
	closeErr := archive.Close()
	if err != nil {
		return failure(err)
	}
	if closeErr != nil {
		return failure(closeErr)
	}
	if err := m.writeStamp(archivePath); err != nil {
		return failure(fmt.Errorf("write stamp: %w", err))
	}
	return ExtractionResult{Success: true, TotalFiles: total}
}

func failure(err error) ExtractionResult {
	return ExtractionResult{Success: false, Error: err.Error()}
}
