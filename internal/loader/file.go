package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "cpicli/internal/errors"
	"cpicli/internal/table"
)

// FileSource reads CSV files or xlsx workbooks from local disk
type FileSource struct {
	pricesPath     string
	categoriesPath string
	logger         *slog.Logger
}

// NewFileSource creates a source over two local paths. The format follows
// the extension: .xlsx is read as a workbook, anything else as CSV. A
// directory is read as the union of its CSV and xlsx files.
func NewFileSource(pricesPath, categoriesPath string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		pricesPath:     pricesPath,
		categoriesPath: categoriesPath,
		logger:         logger,
	}
}

// LoadPrices implements Source
func (s *FileSource) LoadPrices(ctx context.Context, from, to time.Time) (*table.Table, error) {
	t, err := s.load(ctx, PriceTable, s.pricesPath)
	if err != nil {
		return nil, err
	}
	filtered := filterByDate(t, from, to)
	s.logger.InfoContext(ctx, "loaded price file",
		slog.String("path", s.pricesPath),
		slog.Int("rows", t.Len()),
		slog.Int("in_range", filtered.Len()))
	return filtered, nil
}

// LoadCategories implements Source
func (s *FileSource) LoadCategories(ctx context.Context) (*table.Table, error) {
	t, err := s.load(ctx, CategoryTable, s.categoriesPath)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "loaded category file",
		slog.String("path", s.categoriesPath),
		slog.Int("rows", t.Len()))
	return t, nil
}

// Close implements Source
func (s *FileSource) Close() error { return nil }

func (s *FileSource) load(ctx context.Context, name, path string) (*table.Table, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return s.loadDir(ctx, name, path)
	}
	return s.loadFile(ctx, name, path)
}

// loadDir merges every data file in dir. All files must share the first
// file's columns.
func (s *FileSource) loadDir(ctx context.Context, name, dir string) (*table.Table, error) {
	files, err := DiscoverDataFiles(dir)
	if err != nil {
		return nil, apperrors.NewSourceError("list "+name+" directory", err).WithContext("path", dir)
	}
	if len(files) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s files in %s", name, dir))
	}

	var merged *table.Table
	for _, f := range files {
		t, err := s.loadFile(ctx, name, f.Path)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = t
			continue
		}
		if err := appendTable(merged, t); err != nil {
			return nil, apperrors.NewParsingError("merge "+f.Name, err)
		}
	}

	s.logger.DebugContext(ctx, "merged data files",
		slog.String("table", name),
		slog.String("dir", dir),
		slog.Int("files", len(files)))
	return merged, nil
}

func (s *FileSource) loadFile(ctx context.Context, name, path string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadWorkbook(path, name)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s file %s", name, path))
		}
		return nil, apperrors.NewSourceError("open "+name+" file", err).WithContext("path", path)
	}
	defer f.Close()

	return ReadCSV(f, name)
}

// ReadCSV reads a headed CSV stream into a table. A leading UTF-8 BOM is
// tolerated and every row must have the header's width.
func ReadCSV(r io.Reader, name string) (*table.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table.New(name), nil
		}
		return nil, apperrors.NewParsingError("read "+name+" header", err)
	}

	t := table.New(name, canonicalColumns(normalizeHeader(header))...)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("read "+name+" row", err)
		}
		row := make([]any, len(record))
		for i, v := range record {
			row[i] = v
		}
		if err := t.Append(row...); err != nil {
			return nil, apperrors.NewParsingError("read "+name+" row", err)
		}
	}
	return t, nil
}

// ReadWorkbook reads the sheet named after the table (singular or plural,
// any case) or else the first sheet of an xlsx workbook.
func ReadWorkbook(path, name string) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s workbook %s", name, path))
		}
		return nil, apperrors.NewParsingError("open "+name+" workbook", err).WithContext("path", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("sheet in %s", path))
	}
	sheet := sheets[0]
	for _, candidate := range sheets {
		n := strings.ToLower(strings.TrimSpace(candidate))
		if n == name || n == name+"s" || (name == CategoryTable && n == "categories") {
			sheet = candidate
			break
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError("read sheet "+sheet, err)
	}
	if len(rows) == 0 {
		return table.New(name), nil
	}

	header := canonicalColumns(normalizeHeader(rows[0]))
	t := table.New(name, header...)
	for _, record := range rows[1:] {
		// GetRows trims trailing empty cells
		row := make([]any, len(header))
		empty := true
		for i := range header {
			if i < len(record) {
				row[i] = record[i]
				if strings.TrimSpace(record[i]) != "" {
					empty = false
				}
			} else {
				row[i] = ""
			}
		}
		if empty {
			continue
		}
		t.MustAppend(row...)
	}
	return t, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}
