package parser

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXDecoder reads Office Open XML workbooks.
type XLSXDecoder struct{}

// NewXLSXDecoder creates a new XLSXDecoder.
func NewXLSXDecoder() *XLSXDecoder {
	return &XLSXDecoder{}
}

func (d *XLSXDecoder) Name() string { return "xlsx" }

func (d *XLSXDecoder) Extensions() []string {
	return []string{".xlsx", ".xlsm", ".xltx", ".xltm"}
}

func (d *XLSXDecoder) CanDecode(fileName string) bool {
	return hasExtension(fileName, d.Extensions())
}

// Decode reads every sheet as formatted cell text.
func (d *XLSXDecoder) Decode(r io.ReadSeeker) (*RawWorkbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	wb := NewRawWorkbook()
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheetName, err)
		}
		wb.AddSheet(sheetName, rows)
	}
	return wb, nil
}
