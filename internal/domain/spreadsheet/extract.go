package spreadsheet

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// UnknownValue is stored for cells whose type cannot be resolved.
const UnknownValue = "Unknown value"

// Target receives one extracted cell. Values are pre-seeded by the caller's factory
// with whatever identifies the bundle they belong to.
type Target interface {
	SetCell(sheet string, at Coordinate, typ CellType, value any)
}

// ExtractRegion reads every stored cell of sheetName inside [begin, end].
func ExtractRegion[V Target](wb Workbook, sheetName string, begin, end Coordinate, newValue func() V, logger logrus.FieldLogger) ([]V, error) {
	sheet, err := wb.Sheet(sheetName)
	if err != nil {
		return nil, err
	}

	log := logger.WithFields(logrus.Fields{
		"sheet":  sheetName,
		"region": fmt.Sprintf("%s:%s", begin.Location(), end.Location()),
	})

	values := make([]V, 0)
	for r := begin.Row; r <= end.Row; r++ {
		row, ok := sheet.Row(r)
		if !ok {
			log.WithField("row", r).Warn("Row not found in sheet, skipping")
			continue
		}
		for _, cell := range row.Cells() {
			if cell.Column() < begin.Column || cell.Column() > end.Column {
				continue
			}
			typ, value := resolve(cell, cell.Type(), false)
			at := Coordinate{Column: cell.Column(), Row: cell.Row()}
			if typ == CellUnknown {
				log.WithFields(logrus.Fields{
					"cell":      at.Location(),
					"cell_type": cell.Type().String(),
				}).Warn("Unrecognized cell type")
			}
			v := newValue()
			v.SetCell(sheetName, at, typ, value)
			values = append(values, v)
		}
	}
	return values, nil
}

// resolve maps a cell to its stored type and value. A formula is resolved once more
// through its cached result type; a cached result that is itself a formula is Unknown.
func resolve(cell Cell, typ CellType, cached bool) (CellType, any) {
	switch typ {
	case CellBlank:
		return CellString, ""
	case CellNumeric:
		return CellNumeric, cell.Float()
	case CellString:
		return CellString, cell.Text()
	case CellBoolean:
		return CellBoolean, cell.Bool()
	case CellFormula:
		if !cached {
			return resolve(cell, cell.CachedType(), true)
		}
	}
	return CellUnknown, UnknownValue
}
