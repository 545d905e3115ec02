package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"attendance-sheet-go/models"
)

const exportSheetName = "Roster"

// ImportStudentsFromExcel reads a spreadsheet and adds each row to the store.
// The first sheet is used and its first row is a header.
// Columns: A = student ID, B = name, C = class.
// Rows with a missing field or an already registered ID are skipped.
func ImportStudentsFromExcel(ctx context.Context, store StudentStore, file io.Reader, logger *zap.Logger) (models.ImportResult, error) {
	var result models.ImportResult

	f, err := excelize.OpenReader(file)
	if err != nil {
		return result, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("failed to close excel file", zap.Error(err))
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return result, errors.New("excel file does not contain any sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return result, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}

	for i, row := range rows {
		if i == 0 {
			continue
		}

		var student models.Student
		if len(row) > 0 {
			student.ID = row[0]
		}
		if len(row) > 1 {
			student.Name = row[1]
		}
		if len(row) > 2 {
			student.ClassName = row[2]
		}

		_, err := store.Add(ctx, student)
		switch {
		case err == nil:
			result.Imported++
		case errors.Is(err, ErrMissingField), errors.Is(err, ErrDuplicateID):
			logger.Debug("skipping roster row", zap.Int("row", i+1), zap.String("id", student.ID), zap.Error(err))
			result.Skipped++
		default:
			return result, fmt.Errorf("import stopped at row %d: %w", i+1, err)
		}
	}

	logger.Info("roster import finished",
		zap.String("sheet", sheetName),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// ExportStudentsToExcel writes the roster into a single-sheet workbook
func ExportStudentsToExcel(students []models.Student) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := []interface{}{"No", "ID", "Name", "Class"}
	if err := f.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, s := range students {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{i + 1, s.ID, s.Name, s.ClassName}
		if err := f.SetSheetRow(exportSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(exportSheetName, "C", "C", 32); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf, nil
}
