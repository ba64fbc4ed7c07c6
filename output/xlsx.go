package output

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	// maxSheetRows is the row limit of a worksheet, including the header.
	maxSheetRows = excelize.TotalRows
	// maxCellChars is the character limit of a single cell.
	maxCellChars = excelize.TotalCellChars
	// maxSheetName is the length limit of a sheet name.
	maxSheetName = excelize.MaxSheetNameLength
)

// WriteXLSX writes a workbook with the table as a sheet named after the
// table. Tables with more rows than a sheet can hold continue on numbered
// sheets, each with its own header. Overlong cells are truncated.
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()
	var (
		header = t.Header()
		name   = sheetName(t.Name, 1)
		page   = 1
		sw     *excelize.StreamWriter
		row    int
	)
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return err
	}
	begin := func(sheet string) error {
		var err error
		if sw, err = f.NewStreamWriter(sheet); err != nil {
			return err
		}
		row = 1
		return sw.SetRow("A1", cells(header))
	}
	if err := begin(name); err != nil {
		return err
	}
	for _, rec := range t.Records {
		if row == maxSheetRows {
			if err := sw.Flush(); err != nil {
				return err
			}
			page++
			name = sheetName(t.Name, page)
			if _, err := f.NewSheet(name); err != nil {
				return err
			}
			if err := begin(name); err != nil {
				return err
			}
		}
		row++
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells(t.Row(rec))); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

func sheetName(name string, page int) string {
	if name == "" {
		name = "Sheet"
	}
	suffix := ""
	if page > 1 {
		suffix = fmt.Sprintf("_%d", page)
	}
	if n := maxSheetName - len(suffix); len(name) > n {
		name = name[:n]
	}
	return name + suffix
}

func cells(row []string) []interface{} {
	vs := make([]interface{}, len(row))
	for i, v := range row {
		vs[i] = truncateCell(v)
	}
	return vs
}

func truncateCell(s string) string {
	if utf8.RuneCountInString(s) <= maxCellChars {
		return s
	}
	var n int
	for i := range s {
		if n == maxCellChars {
			return s[:i]
		}
		n++
	}
	return s
}
