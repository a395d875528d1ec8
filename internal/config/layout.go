package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Column names understood by the workbook loader.
const (
	ColumnLink        = "Link"
	ColumnStage       = "Stage"
	ColumnParticipant = "Participant"
	ColumnBuilding    = "Building"
	ColumnFilename    = "Filename"
)

// SheetLayout names a sheet and the positional meaning of its columns.
type SheetLayout struct {
	Sheet    string   `yaml:"sheet"`
	Columns  []string `yaml:"columns"`
	Optional bool     `yaml:"optional,omitempty"`
}

// Index returns the zero-based position of column, or -1.
func (s SheetLayout) Index(column string) int {
	for i, c := range s.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Layout describes where the loader finds its three collections.
type Layout struct {
	HeaderRows int         `yaml:"header_rows"`
	Links      SheetLayout `yaml:"links"`
	Buildings  SheetLayout `yaml:"buildings"`
	Files      SheetLayout `yaml:"files"`
}

// DefaultLayout is the layout of the reference workbook: sheets Links,
// Buildings and an optional Filename sheet, each with one header row.
func DefaultLayout() *Layout {
	return &Layout{
		HeaderRows: 1,
		Links: SheetLayout{
			Sheet:   "Links",
			Columns: []string{ColumnLink, ColumnStage, ColumnParticipant},
		},
		Buildings: SheetLayout{
			Sheet:   "Buildings",
			Columns: []string{ColumnBuilding},
		},
		Files: SheetLayout{
			Sheet:    "Filename",
			Columns:  []string{ColumnStage, ColumnParticipant, ColumnFilename},
			Optional: true,
		},
	}
}

// LoadLayout reads a YAML layout file. An empty path yields DefaultLayout.
func LoadLayout(path string) (*Layout, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open layout file: %w", err)
	}
	defer f.Close()
	return ParseLayout(f)
}

// ParseLayout decodes a YAML layout. Sections left out keep their defaults.
func ParseLayout(r io.Reader) (*Layout, error) {
	layout := DefaultLayout()
	if err := yaml.NewDecoder(r).Decode(layout); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return layout, nil
}

// Validate checks that every sheet names the columns the loader needs.
func (l *Layout) Validate() error {
	if l.HeaderRows < 0 {
		return fmt.Errorf("header_rows must not be negative")
	}
	required := []struct {
		name    string
		sheet   SheetLayout
		columns []string
	}{
		{"links", l.Links, []string{ColumnLink, ColumnStage, ColumnParticipant}},
		{"buildings", l.Buildings, []string{ColumnBuilding}},
		{"files", l.Files, []string{ColumnStage, ColumnParticipant, ColumnFilename}},
	}
	for _, r := range required {
		if r.sheet.Sheet == "" {
			return fmt.Errorf("layout %s: sheet name is required", r.name)
		}
		for _, c := range r.columns {
			if r.sheet.Index(c) < 0 {
				return fmt.Errorf("layout %s: missing column %q", r.name, c)
			}
		}
	}
	return nil
}
