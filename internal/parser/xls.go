package parser

import (
	"fmt"
	"io"

	"github.com/extrame/xls"
)

// XLSDecoder reads legacy BIFF (.xls) workbooks.
type XLSDecoder struct {
	charset string
}

// NewXLSDecoder creates a new XLSDecoder.
func NewXLSDecoder() *XLSDecoder {
	return &XLSDecoder{charset: "utf-8"}
}

func (d *XLSDecoder) Name() string { return "xls" }

func (d *XLSDecoder) Extensions() []string {
	return []string{".xls"}
}

func (d *XLSDecoder) CanDecode(fileName string) bool {
	return hasExtension(fileName, d.Extensions())
}

// Decode reads every sheet. Missing BIFF rows come back as empty rows so
// row positions match the sheet.
func (d *XLSDecoder) Decode(r io.ReadSeeker) (*RawWorkbook, error) {
	book, err := xls.OpenReader(r, d.charset)
	if err != nil {
		return nil, fmt.Errorf("opening xls: %w", err)
	}

	wb := NewRawWorkbook()
	for i := 0; i < book.NumSheets(); i++ {
		sheet := book.GetSheet(i)
		if sheet == nil {
			continue
		}
		var rows [][]string
		for m := 0; m <= int(sheet.MaxRow); m++ {
			row := sheet.Row(m)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for n := 0; n < row.LastCol(); n++ {
				cells = append(cells, row.Col(n))
			}
			rows = append(rows, cells)
		}
		wb.AddSheet(sheet.Name, rows)
	}
	return wb, nil
}
