package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DataFile describes one discovered input file
type DataFile struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// dataExtensions lists the formats FileSource can read
var dataExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
}

// DiscoverDataFiles lists the CSV and xlsx files directly inside dir,
// sorted by name. Daily drops named by date therefore load in date order.
// Hidden files and Excel lock files (~$...) are skipped.
func DiscoverDataFiles(dir string) ([]DataFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []DataFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if !dataExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, DataFile{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
