package datafile

import (
	"strconv"
	"time"

	"dashboard_report_bot/internal/domain/spreadsheet"

	"github.com/google/uuid"
)

// CellValue is one extracted cell of an uploaded file.
type CellValue struct {
	FormID        uuid.UUID
	FormSectionID uuid.UUID
	FileSourceID  uuid.UUID
	SheetName     string
	Column        string
	Row           int
	Value         any
	Type          spreadsheet.CellType
	CreatedAt     time.Time
}

func (v *CellValue) SetCell(sheet string, at spreadsheet.Coordinate, typ spreadsheet.CellType, value any) {
	v.SheetName = sheet
	v.Column, _ = spreadsheet.LettersFromColumnIndex(at.Column)
	v.Row = at.Row
	v.Type = typ
	v.Value = value
}

func (v *CellValue) Location() string {
	return v.Column + strconv.Itoa(v.Row)
}

// EncodeValue renders the value as the text stored alongside its type.
func EncodeValue(value any) string {
	switch x := value.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	}
	return spreadsheet.UnknownValue
}

// DecodeValue converts stored text back to a typed value, keeping the text when it does not parse.
func DecodeValue(text string, typ spreadsheet.CellType) any {
	switch typ {
	case spreadsheet.CellNumeric:
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f
		}
	case spreadsheet.CellBoolean:
		if b, err := strconv.ParseBool(text); err == nil {
			return b
		}
	}
	return text
}

// CellValues groups one upload's cells by sheet, then by A1 location.
type CellValues struct {
	Source *FileSource
	Sheets map[string]map[string]*CellValue
}

func NewCellValues(source *FileSource) *CellValues {
	return &CellValues{Source: source, Sheets: make(map[string]map[string]*CellValue)}
}

func (c *CellValues) Add(v *CellValue) {
	sheet, ok := c.Sheets[v.SheetName]
	if !ok {
		sheet = make(map[string]*CellValue)
		c.Sheets[v.SheetName] = sheet
	}
	sheet[v.Location()] = v
}

// Get returns the value at location of sheet, or nil.
func (c *CellValues) Get(sheet, location string) *CellValue {
	return c.Sheets[sheet][location]
}
