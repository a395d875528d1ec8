package parser

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/linkfinder/backend/internal/config"
	"github.com/linkfinder/backend/internal/models"
	"go.uber.org/zap"
)

// Loader turns a workbook file into the three LinkFinder collections.
type Loader struct {
	registry *Registry
	layout   *config.Layout
	logger   *zap.Logger
}

// NewLoader creates a Loader. A nil layout means config.DefaultLayout and a
// nil registry means the global registry.
func NewLoader(registry *Registry, layout *config.Layout, logger *zap.Logger) *Loader {
	if registry == nil {
		registry = GetGlobalRegistry()
	}
	if layout == nil {
		layout = config.DefaultLayout()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{registry: registry, layout: layout, logger: logger}
}

// Accepts returns an ErrUnsupportedFormat error when no decoder handles
// fileName.
func (l *Loader) Accepts(fileName string) error {
	_, err := l.registry.FindDecoder(fileName)
	return err
}

// LoadFile opens path and loads it, using displayName to pick the decoder.
// Stored uploads have no extension on disk, so the original name is passed
// separately.
func (l *Loader) LoadFile(path, displayName string) (*models.Workbook, error) {
	if err := l.Accepts(displayName); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()
	return l.Load(f, displayName)
}

// Load decodes r, picking the decoder from fileName's extension.
func (l *Loader) Load(r io.ReadSeeker, fileName string) (*models.Workbook, error) {
	d, err := l.registry.FindDecoder(fileName)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := d.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", fileName, err)
	}

	wb, err := l.Extract(raw)
	if err != nil {
		return nil, err
	}
	wb.Name = fileName
	wb.LoadedAt = time.Now()

	l.logger.Info("workbook loaded",
		zap.String("file", fileName),
		zap.String("decoder", d.Name()),
		zap.Int("links", len(wb.Links)),
		zap.Int("buildings", len(wb.Buildings)),
		zap.Int("files", len(wb.Files)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return wb, nil
}

// Extract applies the layout to an already decoded workbook.
func (l *Loader) Extract(raw *RawWorkbook) (*models.Workbook, error) {
	wb := &models.Workbook{
		Links:     make([]models.LinkRow, 0),
		Buildings: make([]string, 0),
		Files:     make([]models.FileEntry, 0),
	}

	links, err := l.rows(raw, l.layout.Links)
	if err != nil {
		return nil, err
	}
	li := l.layout.Links
	for _, row := range links {
		wb.Links = append(wb.Links, models.LinkRow{
			Link:        cell(row, li.Index(config.ColumnLink)),
			Stage:       cell(row, li.Index(config.ColumnStage)),
			Participant: cell(row, li.Index(config.ColumnParticipant)),
		})
	}

	buildings, err := l.rows(raw, l.layout.Buildings)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(buildings))
	bi := l.layout.Buildings.Index(config.ColumnBuilding)
	for _, row := range buildings {
		b := cell(row, bi)
		if b == "" {
			continue
		}
		if _, dup := seen[b]; dup {
			continue
		}
		seen[b] = struct{}{}
		wb.Buildings = append(wb.Buildings, b)
	}

	files, err := l.rows(raw, l.layout.Files)
	if err != nil {
		return nil, err
	}
	fi := l.layout.Files
	for _, row := range files {
		wb.Files = append(wb.Files, models.FileEntry{
			Stage:       cell(row, fi.Index(config.ColumnStage)),
			Participant: cell(row, fi.Index(config.ColumnParticipant)),
			Filename:    cell(row, fi.Index(config.ColumnFilename)),
		})
	}

	return wb, nil
}

// rows returns the data rows of a sheet: header rows and blank rows dropped.
func (l *Loader) rows(raw *RawWorkbook, sheet config.SheetLayout) ([][]string, error) {
	all, ok := raw.Sheet(sheet.Sheet)
	if !ok {
		if sheet.Optional {
			l.logger.Debug("optional sheet absent", zap.String("sheet", sheet.Sheet))
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet.Sheet)
	}

	var out [][]string
	for i, row := range all {
		if i < l.layout.HeaderRows || isBlank(row) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
