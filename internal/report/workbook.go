package report

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/fields"
	"github.com/a3tai/proposal-builder/internal/resolve"
)

const (
	FieldsSheet = "Fields"
	ErrorsSheet = "Errors"

	// StateRemoved marks a field dropped as unresolved
	StateRemoved = "removed"
)

// WorkbookPath returns the audit workbook path for a proposal output file
func WorkbookPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_fields.xlsx"
}

// FieldState returns how a field's final value was produced
func FieldState(res *resolve.Resolution, name string) string {
	if slices.Contains(res.Removed, name) {
		return StateRemoved
	}
	if o, ok := res.Origins[name]; ok {
		return string(o)
	}
	return ""
}

// BuildWorkbook returns an XLSX audit of every field spec and every file
// error of a run
func BuildWorkbook(specs []fields.Spec, res *resolve.Resolution, errs []perrors.FileError) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", FieldsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ErrorsSheet); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}

	rows := [][]any{{"Field", "Source", "Currency", "Date", "Value", "State"}}
	for _, s := range specs {
		rows = append(rows, []any{s.Name, string(s.Source), s.IsCurrency, s.IsDate, res.Values[s.Name], FieldState(res, s.Name)})
	}
	if err := writeRows(f, FieldsSheet, rows); err != nil {
		return nil, err
	}

	rows = [][]any{{"File", "Kind", "Reason"}}
	for _, e := range errs {
		rows = append(rows, []any{e.File, e.Kind.String(), e.Reason})
	}
	if err := writeRows(f, ErrorsSheet, rows); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(FieldsSheet, "A", "A", 28)
	_ = f.SetColWidth(FieldsSheet, "E", "E", 48)
	_ = f.SetColWidth(ErrorsSheet, "A", "A", 36)
	_ = f.SetColWidth(ErrorsSheet, "C", "C", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteWorkbook builds the audit workbook and saves it to path
func WriteWorkbook(path string, specs []fields.Spec, res *resolve.Resolution, errs []perrors.FileError) error {
	data, err := BuildWorkbook(specs, res, errs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
