package assets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"serverdeck/internal/fsutil"
)

type rule struct {
	prefix string
	subdir string
}

// Archive prefixes copied into the cache, flattened into subdir.
var rules = []rule{
	{prefix: "Common/Icons/ItemsGenerated/", subdir: "items"},
	{prefix: "Common/Icons/Items/EditorTools/", subdir: "items"},
	{prefix: "Common/UI/Custom/Pages/Memories/npcs/", subdir: "npcs"},
	{prefix: "Common/UI/WorldMap/MapMarkers/", subdir: "map-markers"},
	{prefix: "Common/UI/Custom/Pages/Memories/Tiles/", subdir: "memory-ui"},
	{prefix: "Common/UI/Custom/Pages/Memories/categories/", subdir: "memory-ui/categories"},
}

const itemDefinitionPrefix = "Server/Item/Items/"

type itemDefinition struct {
	Icon string `json:"Icon"`
}

func (m *Manager) extractArchive(archive *zip.ReadCloser) (int, error) {
	total := 0
	for _, r := range rules {
		dest := filepath.Join(m.cacheDir, filepath.FromSlash(r.subdir))
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return total, fmt.Errorf("create %s: %w", r.subdir, err)
		}
		for _, file := range archive.File {
			if !strings.HasPrefix(file.Name, r.prefix) || !strings.HasSuffix(strings.ToLower(file.Name), ".png") {
				continue
			}
			if file.FileInfo().IsDir() {
				continue
			}
			name := path.Base(file.Name)
			if err := extractEntry(file, filepath.Join(dest, name)); err != nil {
				return total, fmt.Errorf("extract %s: %w", file.Name, err)
			}
			total++
		}
	}
	return total, nil
}

func extractEntry(file *zip.File, destPath string) error {
	reader, err := file.Open()
	if err != nil {
		return err
	}
	defer reader.Close()
	return fsutil.WriteFileAtomic(destPath, 0o644, reader, false)
}

// buildIconMap records items whose icon file is named differently from the
// item. Items that already share a name need no entry.
func (m *Manager) buildIconMap(archive *zip.ReadCloser) map[string]string {
	redirects := map[string]string{}
	for _, file := range archive.File {
		if !strings.HasPrefix(file.Name, itemDefinitionPrefix) || !strings.HasSuffix(file.Name, ".json") {
			continue
		}
		definition, err := readItemDefinition(file)
		if err != nil {
			m.logger.Debug("skipping item definition", map[string]string{
				"entry": file.Name,
				"error": err.Error(),
			})
			continue
		}
		if definition.Icon == "" {
			continue
		}
		itemID := strings.TrimSuffix(path.Base(file.Name), ".json")
		iconName := strings.TrimSuffix(path.Base(definition.Icon), ".png")
		if itemID != iconName {
			redirects[itemID] = iconName
		}
	}
	return redirects
}

func readItemDefinition(file *zip.File) (itemDefinition, error) {
	var definition itemDefinition
	reader, err := file.Open()
	if err != nil {
		return definition, err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return definition, err
	}
	err = json.Unmarshal(data, &definition)
	return definition, err
}

func (m *Manager) writeIconMap(redirects map[string]string) error {
	data, err := json.Marshal(redirects)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(filepath.Join(m.cacheDir, iconMapFile), 0o644, bytes.NewReader(data), false)
}
