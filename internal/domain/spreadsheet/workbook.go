package spreadsheet

import (
	"fmt"
	"strings"
)

var ErrSheetNotFound = fmt.Errorf("sheet not found")
var ErrUnsupportedFormat = fmt.Errorf("unsupported spreadsheet format")

// CellType tags the kind of value a cell (or a formula's cached result) holds.
type CellType int

const (
	CellUnknown CellType = iota
	CellBlank
	CellBoolean
	CellNumeric
	CellString
	CellFormula
)

var cellTypeNames = map[CellType]string{
	CellUnknown: "unknown",
	CellBlank:   "blank",
	CellBoolean: "boolean",
	CellNumeric: "numeric",
	CellString:  "string",
	CellFormula: "formula",
}

func (t CellType) String() string {
	if name, ok := cellTypeNames[t]; ok {
		return name
	}
	return cellTypeNames[CellUnknown]
}

func ParseCellType(s string) CellType {
	for t, name := range cellTypeNames {
		if strings.EqualFold(name, s) {
			return t
		}
	}
	return CellUnknown
}

// Format is a supported spreadsheet container.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

func FormatFromExtension(ext string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))); f {
	case FormatXLSX, FormatXLS:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// Workbook is a decoded spreadsheet file.
type Workbook interface {
	// Sheet returns ErrSheetNotFound when the workbook has no sheet with that name.
	Sheet(name string) (Sheet, error)
	Close() error
}

type Sheet interface {
	Name() string
	// Row looks up a 1-based row; ok is false when the row is not stored.
	Row(index int) (row Row, ok bool)
}

type Row interface {
	// Cells lists only the cells physically stored in the row.
	Cells() []Cell
}

// Cell exposes a decoded cell. For formula cells the typed accessors return the
// cached result described by CachedType.
type Cell interface {
	Column() int
	Row() int
	Type() CellType
	CachedType() CellType
	Float() float64
	Text() string
	Bool() bool
}

// Opener decodes the file at path in the given format.
type Opener interface {
	Open(path string, format Format) (Workbook, error)
}
