package report

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"cpicli/internal/cpi"
	"cpicli/internal/loader"
	"cpicli/internal/shared/testutil"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2023, m, d, 0, 0, 0, 0, time.UTC)
}

func samplePoints() []cpi.Point {
	return []cpi.Point{
		{Date: day(1, 1), Index: 1, HasData: true},
		{Date: day(1, 15), Index: 1.02, HasData: true},
		{Date: day(1, 20), Index: 1.02, HasData: false},
		{Date: day(2, 1), Index: 1.0375, HasData: true},
	}
}

func TestGenerateEngines(t *testing.T) {
	tests := []struct {
		engine string
		verify func(t *testing.T, path string)
	}{
		{
			engine: EnginePNG,
			verify: func(t *testing.T, path string) {
				f, err := os.Open(path)
				require.NoError(t, err)
				defer f.Close()
				img, err := png.Decode(f)
				require.NoError(t, err)
				assert.Equal(t, chartWidth, img.Bounds().Dx())
				assert.Equal(t, chartHeight, img.Bounds().Dy())
			},
		},
		{
			engine: EngineXLSX,
			verify: func(t *testing.T, path string) {
				f, err := excelize.OpenFile(path)
				require.NoError(t, err)
				defer f.Close()
				rows, err := f.GetRows(seriesSheet)
				require.NoError(t, err)
				require.Len(t, rows, 5)
				assert.Equal(t, []string{"date", "cpi_index", "has_data"}, rows[0])
				assert.Equal(t, "2023-02-01", rows[4][0])
				assert.Equal(t, "103.75", rows[4][1])
				assert.Equal(t, "FALSE", rows[3][2])
			},
		},
		{
			engine: EngineCSV,
			verify: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				require.NoError(t, err)
				text := string(bytes.TrimPrefix(content, []byte("\ufeff")))
				assert.True(t, strings.HasPrefix(text, "date,cpi_index\n"))
				assert.Contains(t, text, "2023-01-01,100.0000\n")
				assert.Contains(t, text, "2023-02-01,103.7500\n")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			path := filepath.Join(t.TempDir(), "out", FileName(tt.engine, day(2, 1)))

			err := Generate(samplePoints(), Options{Path: path, Engine: tt.engine, Scale: 100, Logger: logger})
			require.NoError(t, err)
			tt.verify(t, path)
			assert.True(t, logs.ContainsMessage("report written"))
		})
	}
}

func TestGenerateErrors(t *testing.T) {
	dir := t.TempDir()

	err := Generate(nil, Options{Path: filepath.Join(dir, "x.png"), Engine: EnginePNG})
	assert.ErrorIs(t, err, ErrEmptySeries)
	assert.EqualError(t, err, "report data is empty")

	err = Generate(samplePoints(), Options{Path: filepath.Join(dir, "x.svg"), Engine: "svg"})
	assert.ErrorIs(t, err, ErrUnsupportedEngine)
	assert.Contains(t, err.Error(), "unsupported plot engine")
	assert.NoFileExists(t, filepath.Join(dir, "x.svg"))
}

func TestGenerateSinglePoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "single.png")
	err := Generate([]cpi.Point{{Date: day(1, 1), Index: 1, HasData: true}}, Options{Path: path, Engine: EnginePNG})
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestFileNameAndContentType(t *testing.T) {
	assert.Equal(t, "cpi_20230201.png", FileName("PNG", day(2, 1)))
	assert.Equal(t, "image/png", ContentType(EnginePNG))
	assert.Equal(t, "text/csv", ContentType(EngineCSV))
	assert.Contains(t, ContentType(EngineXLSX), "spreadsheetml")
	assert.Equal(t, "application/octet-stream", ContentType("gif"))
}

func TestPadRange(t *testing.T) {
	lo, hi := padRange(100, 100)
	assert.Equal(t, 99.0, lo)
	assert.Equal(t, 101.0, hi)

	lo, hi = padRange(100, 110)
	assert.InDelta(t, 99.5, lo, 1e-9)
	assert.InDelta(t, 110.5, hi, 1e-9)
}

type recordingStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func (s *recordingStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	data, ok := s.objects[name]
	if !ok {
		return nil, loader.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *recordingStore) List(context.Context, string) ([]string, error) { return nil, nil }

func (s *recordingStore) Put(_ context.Context, name, contentType string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[name] = data
	s.contentTypes[name] = contentType
	return nil
}

func (s *recordingStore) Close() error { return nil }

func TestUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpi_20230201.csv")
	require.NoError(t, Generate(samplePoints(), Options{Path: path, Engine: EngineCSV}))

	store := &recordingStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
	object, err := Upload(context.Background(), store, path, "reports/")
	require.NoError(t, err)
	assert.Equal(t, "reports/cpi_20230201.csv", object)
	assert.Equal(t, "text/csv", store.contentTypes[object])

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, store.objects[object])

	_, err = Upload(context.Background(), store, filepath.Join(t.TempDir(), "missing.png"), "")
	assert.Error(t, err)
}
