package excel

import (
	"fmt"
	"strconv"
	"strings"

	"dashboard_report_bot/internal/domain/spreadsheet"

	"github.com/xuri/excelize/v2"
)

type xlsxWorkbook struct {
	file *excelize.File
}

func openXLSX(path string) (*xlsxWorkbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("error opening xlsx file %s: %w", path, err)
	}
	return &xlsxWorkbook{file: f}, nil
}

func (w *xlsxWorkbook) Sheet(name string) (spreadsheet.Sheet, error) {
	idx, err := w.file.GetSheetIndex(name)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", spreadsheet.ErrSheetNotFound, name)
	}
	rows, err := w.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("error reading rows of sheet %s: %w", name, err)
	}
	sheet := &xlsxSheet{file: w.file, name: name, rows: rows}
	sheet.maxRow, sheet.maxCol = dimension(w.file, name)
	return sheet, nil
}

// dimension reads the used range recorded in the sheet; zero when there is none.
func dimension(f *excelize.File, sheet string) (maxRow, maxCol int) {
	ref, err := f.GetSheetDimension(sheet)
	if err != nil || ref == "" {
		return 0, 0
	}
	parts := strings.Split(ref, ":")
	col, row, err := excelize.CellNameToCoordinates(parts[len(parts)-1])
	if err != nil {
		return 0, 0
	}
	return row, col
}

func (w *xlsxWorkbook) Close() error {
	return w.file.Close()
}

type xlsxSheet struct {
	file   *excelize.File
	name   string
	rows   [][]string
	maxRow int
	maxCol int
}

func (s *xlsxSheet) Name() string { return s.name }

// Row returns the cells physically stored in the row. GetRows pads gaps before a
// value with "" and trims blanks after it, so every position is checked against the
// worksheet itself.
func (s *xlsxSheet) Row(index int) (spreadsheet.Row, bool) {
	if index < 1 || (index > len(s.rows) && index > s.maxRow) {
		return nil, false
	}
	var raw []string
	if index <= len(s.rows) {
		raw = s.rows[index-1]
	}
	width := max(len(raw), s.maxCol)

	cells := make([]spreadsheet.Cell, 0, len(raw))
	for col := 1; col <= width; col++ {
		value := ""
		if col <= len(raw) {
			value = raw[col-1]
		}
		if value == "" && !s.stored(col, index) {
			continue
		}
		cells = append(cells, s.cell(col, index, value))
	}
	if len(cells) == 0 {
		return nil, false
	}
	return xlsxRow(cells), true
}

// stored reports whether an empty position holds a cell record of its own.
func (s *xlsxSheet) stored(col, row int) bool {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	if typ, err := s.file.GetCellType(s.name, name); err == nil && typ != excelize.CellTypeUnset {
		return true
	}
	if formula, err := s.file.GetCellFormula(s.name, name); err == nil && formula != "" {
		return true
	}
	style, err := s.file.GetCellStyle(s.name, name)
	return err == nil && style != 0
}

func (s *xlsxSheet) cell(col, row int, raw string) *xlsxCell {
	c := &xlsxCell{col: col, row: row, raw: raw}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		c.typ = spreadsheet.CellUnknown
		return c
	}

	stored, err := s.file.GetCellType(s.name, name)
	if err != nil {
		c.typ = spreadsheet.CellUnknown
		return c
	}
	valueType := classify(stored, raw)

	formula, err := s.file.GetCellFormula(s.name, name)
	if err == nil && formula != "" {
		c.typ = spreadsheet.CellFormula
		c.cached = valueType
		return c
	}
	c.typ = valueType
	return c
}

// classify maps the stored cell type and raw value to a spreadsheet.CellType.
// excelize reports a formula's cached string result as CellTypeFormula ("str").
func classify(stored excelize.CellType, raw string) spreadsheet.CellType {
	switch stored {
	case excelize.CellTypeBool:
		return spreadsheet.CellBoolean
	case excelize.CellTypeError:
		return spreadsheet.CellUnknown
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		if raw == "" {
			return spreadsheet.CellBlank
		}
		return spreadsheet.CellString
	case excelize.CellTypeDate:
		if _, err := strconv.ParseFloat(raw, 64); err == nil {
			return spreadsheet.CellNumeric
		}
		return spreadsheet.CellString
	}
	if raw == "" {
		return spreadsheet.CellBlank
	}
	if _, err := strconv.ParseFloat(raw, 64); err == nil {
		return spreadsheet.CellNumeric
	}
	return spreadsheet.CellString
}

type xlsxRow []spreadsheet.Cell

func (r xlsxRow) Cells() []spreadsheet.Cell { return r }

type xlsxCell struct {
	col, row int
	raw      string
	typ      spreadsheet.CellType
	cached   spreadsheet.CellType
}

func (c *xlsxCell) Column() int                      { return c.col }
func (c *xlsxCell) Row() int                         { return c.row }
func (c *xlsxCell) Type() spreadsheet.CellType       { return c.typ }
func (c *xlsxCell) CachedType() spreadsheet.CellType { return c.cached }
func (c *xlsxCell) Text() string                     { return c.raw }

func (c *xlsxCell) Float() float64 {
	f, _ := strconv.ParseFloat(c.raw, 64)
	return f
}

func (c *xlsxCell) Bool() bool {
	return c.raw == "1" || strings.EqualFold(c.raw, "true")
}
