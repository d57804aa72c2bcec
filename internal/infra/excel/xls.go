package excel

import (
	"fmt"
	"strconv"
	"strings"

	"dashboard_report_bot/internal/domain/spreadsheet"

	"github.com/extrame/xls"
)

// xls values come back as formatted strings, so types are inferred from the text.
type xlsWorkbook struct {
	book *xls.WorkBook
}

func openXLS(path string) (*xlsWorkbook, error) {
	book, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("error opening xls file %s: %w", path, err)
	}
	return &xlsWorkbook{book: book}, nil
}

func (w *xlsWorkbook) Sheet(name string) (spreadsheet.Sheet, error) {
	for i := 0; i < w.book.NumSheets(); i++ {
		if s := w.book.GetSheet(i); s != nil && s.Name == name {
			return &xlsSheet{sheet: s}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", spreadsheet.ErrSheetNotFound, name)
}

// Close is a no-op: extrame/xls reads the whole file on open.
func (w *xlsWorkbook) Close() error {
	return nil
}

type xlsSheet struct {
	sheet *xls.WorkSheet
}

func (s *xlsSheet) Name() string { return s.sheet.Name }

func (s *xlsSheet) Row(index int) (spreadsheet.Row, bool) {
	if index < 1 || index-1 > int(s.sheet.MaxRow) {
		return nil, false
	}
	row := s.sheet.Row(index - 1)
	if row == nil {
		return nil, false
	}
	return xlsRow(rowCells(index, row.FirstCol(), row.LastCol(), row.Col)), true
}

// rowCells walks [first, last) and keeps only columns that hold a value. extrame/xls
// answers "" both for a missing column and for a BLANK record, so stored blanks are
// dropped along with the gaps.
func rowCells(index, first, last int, text func(int) string) []spreadsheet.Cell {
	cells := make([]spreadsheet.Cell, 0)
	for col := first; col < last; col++ {
		value := text(col)
		if value == "" {
			continue
		}
		cells = append(cells, newXLSCell(col+1, index, value))
	}
	return cells
}

type xlsRow []spreadsheet.Cell

func (r xlsRow) Cells() []spreadsheet.Cell { return r }

type xlsCell struct {
	col, row int
	text     string
	num      float64
	typ      spreadsheet.CellType
}

func newXLSCell(col, row int, text string) *xlsCell {
	c := &xlsCell{col: col, row: row, text: text}
	switch {
	case strings.TrimSpace(text) == "":
		c.typ = spreadsheet.CellBlank
	case strings.EqualFold(text, "true") || strings.EqualFold(text, "false"):
		c.typ = spreadsheet.CellBoolean
	default:
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			c.typ, c.num = spreadsheet.CellNumeric, f
		} else {
			c.typ = spreadsheet.CellString
		}
	}
	return c
}

func (c *xlsCell) Column() int                      { return c.col }
func (c *xlsCell) Row() int                         { return c.row }
func (c *xlsCell) Type() spreadsheet.CellType       { return c.typ }
func (c *xlsCell) CachedType() spreadsheet.CellType { return spreadsheet.CellUnknown }
func (c *xlsCell) Float() float64                   { return c.num }
func (c *xlsCell) Text() string                     { return c.text }
func (c *xlsCell) Bool() bool                       { return strings.EqualFold(c.text, "true") }
