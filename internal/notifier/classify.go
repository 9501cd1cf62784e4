package notifier

import "strings"

type Category string

const (
	CategoryPlayers  Category = "players"
	CategoryWarps    Category = "warps"
	CategoryWorldMap Category = "worldMap"
	CategoryMods     Category = "mods"
	CategoryMemories Category = "memories"
)

// Classify maps a changed path to the data category the UI must refresh.
// Both separators are accepted. Rules are checked in order and the first
// match wins.
func Classify(path string) (Category, bool) {
	p := normalize(path)
	switch {
	case strings.Contains(p, "/universe/players/") && strings.HasSuffix(p, ".json"):
		return CategoryPlayers, true
	case strings.HasSuffix(p, "/universe/memories.json"):
		return CategoryMemories, true
	case strings.HasSuffix(p, "/universe/warps.json"):
		return CategoryWarps, true
	case strings.Contains(p, "/chunks/") && strings.HasSuffix(p, ".region.bin"):
		return CategoryWorldMap, true
	case strings.HasSuffix(p, "/BlockMapMarkers.json"):
		return CategoryWorldMap, true
	case strings.Contains(p, "/mods/"):
		return CategoryMods, true
	}
	return "", false
}

// Ignored reports hidden paths and editor backups.
func Ignored(path string) bool {
	p := normalize(path)
	if strings.HasSuffix(p, ".bak") {
		return true
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == "." || segment == "" {
			continue
		}
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

func normalize(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}
