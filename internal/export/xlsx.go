package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	reportSheet = "Reporte"
	notesSheet  = "Notas"
	tableRow    = 6
)

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// WriteXLSX renders vm as a workbook: header block, table, statistics
// block and, when any note is set, a "Notas" sheet.
func WriteXLSX(w io.Writer, vm ViewModel) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1F4E78"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}

	set := func(col, row int, v interface{}) error {
		return f.SetCellValue(reportSheet, cell(col, row), v)
	}

	program := vm.Program.Nombre
	if vm.Program.Horario != "" {
		program += " (" + vm.Program.Horario + ")"
	}
	headerBlock := [][2]string{
		{"Programa", program},
		{"Periodo", vm.Period},
		{"Generado", vm.GeneratedAt.Format("02/01/2006 15:04")},
	}
	if err := set(1, 1, "Reporte de transmisión de filiales"); err != nil {
		return err
	}
	if err := f.SetCellStyle(reportSheet, cell(1, 1), cell(1, 1), title); err != nil {
		return err
	}
	for i, kv := range headerBlock {
		if err := set(1, i+2, kv[0]); err != nil {
			return err
		}
		if err := set(2, i+2, kv[1]); err != nil {
			return err
		}
		if err := f.SetCellStyle(reportSheet, cell(1, i+2), cell(1, i+2), bold); err != nil {
			return err
		}
	}

	headers := vm.Headers()
	for i, h := range headers {
		if err := set(i+1, tableRow, h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(reportSheet, cell(1, tableRow), cell(len(headers), tableRow), header); err != nil {
		return err
	}

	row := tableRow + 1
	for _, r := range vm.Rows {
		for i, v := range vm.Values(r) {
			if err := set(i+1, row, v); err != nil {
				return err
			}
		}
		row++
	}

	row++
	if err := set(1, row, "Estadísticas"); err != nil {
		return err
	}
	if err := f.SetCellStyle(reportSheet, cell(1, row), cell(1, row), bold); err != nil {
		return err
	}
	for _, kv := range vm.StatLines() {
		row++
		if err := set(1, row, kv[0]); err != nil {
			return err
		}
		if err := set(2, row, kv[1]); err != nil {
			return err
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(reportSheet, "A", "A", 24); err != nil {
		return err
	}
	if len(headers) > 1 {
		if err := f.SetColWidth(reportSheet, "B", lastCol, 18); err != nil {
			return err
		}
	}

	if len(vm.Notes) > 0 {
		if _, err := f.NewSheet(notesSheet); err != nil {
			return fmt.Errorf("creating notes sheet: %w", err)
		}
		if err := f.SetCellValue(notesSheet, "A1", "Filial"); err != nil {
			return err
		}
		if err := f.SetCellValue(notesSheet, "B1", "Nota"); err != nil {
			return err
		}
		if err := f.SetCellStyle(notesSheet, "A1", "B1", header); err != nil {
			return err
		}
		for i, n := range vm.Notes {
			if err := f.SetCellValue(notesSheet, cell(1, i+2), n.Affiliate); err != nil {
				return err
			}
			if err := f.SetCellValue(notesSheet, cell(2, i+2), n.Content); err != nil {
				return err
			}
		}
		if err := f.SetColWidth(notesSheet, "A", "A", 24); err != nil {
			return err
		}
		if err := f.SetColWidth(notesSheet, "B", "B", 80); err != nil {
			return err
		}
	}

	return f.Write(w)
}
