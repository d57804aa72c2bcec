// internal/infra/excel/opener.go
package excel

import (
	"fmt"

	"dashboard_report_bot/internal/domain/spreadsheet"
)

// Opener decodes xlsx files with excelize and legacy xls files with extrame/xls.
type Opener struct{}

func NewOpener() *Opener {
	return &Opener{}
}

func (o *Opener) Open(path string, format spreadsheet.Format) (spreadsheet.Workbook, error) {
	switch format {
	case spreadsheet.FormatXLSX:
		return openXLSX(path)
	case spreadsheet.FormatXLS:
		return openXLS(path)
	}
	return nil, fmt.Errorf("%w: %q", spreadsheet.ErrUnsupportedFormat, string(format))
}
