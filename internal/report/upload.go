package report

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cpicli/internal/loader"
)

// Upload copies a generated report to the object store under prefix and
// returns the object name
func Upload(ctx context.Context, store loader.ObjectStore, filePath, prefix string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open report: %w", err)
	}
	defer file.Close()

	name := filepath.Base(filePath)
	object := path.Join(strings.TrimSuffix(prefix, "/"), name)
	engine := strings.TrimPrefix(filepath.Ext(name), ".")

	if err := store.Put(ctx, object, ContentType(engine), file); err != nil {
		return "", fmt.Errorf("upload report to %s: %w", object, err)
	}
	return object, nil
}
