// Package parser decodes spreadsheet workbooks into LinkFinder collections.
package parser

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when no decoder accepts a file.
	ErrUnsupportedFormat = errors.New("unsupported workbook format")
	// ErrSheetNotFound is returned when a required sheet is absent.
	ErrSheetNotFound = errors.New("sheet not found")
)

// RawWorkbook is a decoded workbook: every sheet as rows of cell text.
type RawWorkbook struct {
	SheetOrder []string
	Sheets     map[string][][]string
}

// NewRawWorkbook returns an empty RawWorkbook.
func NewRawWorkbook() *RawWorkbook {
	return &RawWorkbook{Sheets: make(map[string][][]string)}
}

// AddSheet appends a sheet. A repeated name replaces the earlier rows.
func (w *RawWorkbook) AddSheet(name string, rows [][]string) {
	if _, ok := w.Sheets[name]; !ok {
		w.SheetOrder = append(w.SheetOrder, name)
	}
	w.Sheets[name] = rows
}

// Sheet returns the rows of the sheet called name.
func (w *RawWorkbook) Sheet(name string) ([][]string, bool) {
	rows, ok := w.Sheets[name]
	return rows, ok
}

// Decoder defines the interface for workbook decoders.
type Decoder interface {
	// Name returns the unique name of the decoder.
	Name() string
	// Extensions lists the lower-case file extensions handled, with dot.
	Extensions() []string
	// CanDecode returns true if this decoder can handle the given file name.
	CanDecode(fileName string) bool
	// Decode reads the whole workbook.
	Decode(r io.ReadSeeker) (*RawWorkbook, error)
}

func hasExtension(fileName string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
