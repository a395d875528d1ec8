package testutil

import (
	"testing"

	"github.com/xuri/excelize/v2"
)

// Sheet is one sheet of a generated test workbook. Rows include the header.
type Sheet struct {
	Name string
	Rows [][]string
}

// BuildXLSX renders sheets into an in-memory xlsx file.
func BuildXLSX(t testing.TB, sheets ...Sheet) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			t.Fatalf("create sheet %s: %v", s.Name, err)
		}
		for r, row := range s.Rows {
			cellRef, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			values := make([]interface{}, len(row))
			for c, v := range row {
				values[c] = v
			}
			if err := f.SetSheetRow(s.Name, cellRef, &values); err != nil {
				t.Fatalf("write row: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// StandardSheets returns the three reference sheets with a header row each.
// A nil files argument leaves the Filename sheet out.
func StandardSheets(links [][]string, buildings []string, files [][]string) []Sheet {
	sheets := []Sheet{
		{Name: "Links", Rows: append([][]string{{"Link", "Stage", "Participant"}}, links...)},
	}
	b := [][]string{{"Building"}}
	for _, name := range buildings {
		b = append(b, []string{name})
	}
	sheets = append(sheets, Sheet{Name: "Buildings", Rows: b})
	if files != nil {
		sheets = append(sheets, Sheet{
			Name: "Filename",
			Rows: append([][]string{{"Stage", "Participant", "Filename"}}, files...),
		})
	}
	return sheets
}
